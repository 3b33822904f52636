package server

import (
	"reflect"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Addr != "127.0.0.1:8080" {
		t.Errorf("Expected default address 127.0.0.1:8080, got %s", cfg.Addr)
	}
	if cfg.HTTPAddr != "" {
		t.Errorf("Expected HTTP to be disabled by default, got %s", cfg.HTTPAddr)
	}
	if cfg.LobbyName != "HALL" || cfg.LobbyAdmin != "SERVER" {
		t.Errorf("Expected lobby HALL administered by SERVER, got %s/%s", cfg.LobbyName, cfg.LobbyAdmin)
	}
	if cfg.MaxMembers != 5 {
		t.Errorf("Expected 5 members per channel, got %d", cfg.MaxMembers)
	}
	if cfg.Commands.Join != "JOIN" || cfg.Commands.Kick != "KICK" {
		t.Errorf("Unexpected command verbs %+v", cfg.Commands)
	}
	if cfg.KickRequiresAdmin {
		t.Error("Expected KICK to be open to every member by default")
	}
	if !cfg.AllowEmptyNick {
		t.Error("Expected empty nicknames to be allowed by default")
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("Unexpected rate limit %+v", cfg.RateLimit)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("CHAT_ADDR", "0.0.0.0:9000")
	t.Setenv("CHAT_HTTP_ADDR", " :9001 ")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, https://b.example")
	t.Setenv("MAX_LINE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("LOBBY_NAME", "&main")
	t.Setenv("LOBBY_ADMIN", "root")
	t.Setenv("DEFAULT_TOPIC", "hello")
	t.Setenv("MAX_MEMBERS", "50")
	t.Setenv("MAILBOX_SIZE", "64")
	t.Setenv("CLIENT_QUEUE_SIZE", "32")
	t.Setenv("MAX_PENDING_DELIVERIES", "16")
	t.Setenv("KICK_REQUIRES_ADMIN", "true")
	t.Setenv("ALLOW_EMPTY_NICK", "false")
	t.Setenv("SHUTDOWN_TIMEOUT", "9")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := NewConfigFromEnv()

	if cfg.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr: got %s", cfg.Addr)
	}
	if cfg.HTTPAddr != ":9001" {
		t.Errorf("HTTPAddr: got %q", cfg.HTTPAddr)
	}
	if want := []string{"http://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins: got %v", cfg.AllowedOrigins)
	}
	if cfg.MaxLineSize != 1024 {
		t.Errorf("MaxLineSize: got %d", cfg.MaxLineSize)
	}
	if cfg.RateLimit.Burst != 20 || cfg.RateLimit.RefillInterval != 3*time.Second {
		t.Errorf("RateLimit: got %+v", cfg.RateLimit)
	}
	if cfg.LobbyName != "&main" || cfg.LobbyAdmin != "root" || cfg.DefaultTopic != "hello" {
		t.Errorf("Lobby: got %s %s %q", cfg.LobbyName, cfg.LobbyAdmin, cfg.DefaultTopic)
	}
	if cfg.MaxMembers != 50 || cfg.MailboxSize != 64 || cfg.ClientQueueSize != 32 {
		t.Errorf("Sizes: got %d %d %d", cfg.MaxMembers, cfg.MailboxSize, cfg.ClientQueueSize)
	}
	if cfg.MaxPendingDeliveries != 16 {
		t.Errorf("MaxPendingDeliveries: got %d", cfg.MaxPendingDeliveries)
	}
	if !cfg.KickRequiresAdmin || cfg.AllowEmptyNick {
		t.Errorf("Flags: got kick=%v empty=%v", cfg.KickRequiresAdmin, cfg.AllowEmptyNick)
	}
	if cfg.ShutdownTimeout != 9*time.Second {
		t.Errorf("ShutdownTimeout: got %v", cfg.ShutdownTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_LINE_SIZE", "-1")
	t.Setenv("RATE_LIMIT_BURST", "lots")
	t.Setenv("MAX_MEMBERS", "0")
	t.Setenv("KICK_REQUIRES_ADMIN", "maybe")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg := NewConfigFromEnv()
	def := defaultConfig()

	if cfg.MaxLineSize != def.MaxLineSize {
		t.Errorf("MaxLineSize: got %d", cfg.MaxLineSize)
	}
	if cfg.RateLimit.Burst != def.RateLimit.Burst {
		t.Errorf("RateLimit.Burst: got %d", cfg.RateLimit.Burst)
	}
	if cfg.MaxMembers != def.MaxMembers {
		t.Errorf("MaxMembers: got %d", cfg.MaxMembers)
	}
	if cfg.KickRequiresAdmin != def.KickRequiresAdmin {
		t.Errorf("KickRequiresAdmin: got %v", cfg.KickRequiresAdmin)
	}
	if cfg.ShutdownTimeout != def.ShutdownTimeout {
		t.Errorf("ShutdownTimeout: got %v", cfg.ShutdownTimeout)
	}
}

func TestSanitizeConfig(t *testing.T) {
	cfg := sanitizeConfig(Config{
		MaxMembers:      1,
		ClientQueueSize: 1,
		Commands:        CommandConfig{Join: "  "},
		AllowedOrigins:  []string{"http://a.example"},
	})
	def := defaultConfig()

	if cfg.MaxMembers != 1 {
		t.Errorf("Expected explicit MaxMembers to be kept, got %d", cfg.MaxMembers)
	}
	if cfg.ClientQueueSize != def.ClientQueueSize {
		t.Errorf("Expected a queue too small for attach to be replaced, got %d", cfg.ClientQueueSize)
	}
	if cfg.Commands != def.Commands {
		t.Errorf("Expected default commands, got %+v", cfg.Commands)
	}
	if cfg.LobbyName != def.LobbyName || cfg.Addr != def.Addr || cfg.MailboxSize != def.MailboxSize {
		t.Errorf("Expected defaults for zero fields, got %+v", cfg)
	}
	if cfg.AllowEmptyNick {
		t.Error("Expected an explicit false AllowEmptyNick to be kept")
	}
}
