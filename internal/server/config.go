// Package server provides configuration helpers that define runtime defaults,
// validation, and the fixed chat vocabulary (lobby, commands, limits) of the
// broker.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection line rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// CommandConfig holds the command verbs recognised at the start of a line.
type CommandConfig struct {
	Join string
	Kick string
}

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP address for line clients.
	Addr string
	// HTTPAddr serves health, WebSocket and channel listing endpoints. Empty disables it.
	HTTPAddr       string
	AllowedOrigins []string
	MaxLineSize    int64
	WriteTimeout   time.Duration
	RateLimit      RateLimitConfig

	LobbyName            string
	LobbyAdmin           string
	DefaultTopic         string
	MaxMembers           int
	MaxChannelNameLength int
	Commands             CommandConfig

	InvalidChannelNameError string
	InvalidChannelNameHint  string

	MailboxSize     int
	ClientQueueSize int
	// MaxPendingDeliveries caps actor-to-actor deliveries waiting on a full mailbox.
	MaxPendingDeliveries int

	KickRequiresAdmin bool
	AllowEmptyNick    bool

	ShutdownTimeout time.Duration
	LogLevel        string
}

const (
	defaultAddr                 = "127.0.0.1:8080"
	defaultMaxLineSize          = 4096
	defaultWriteTimeout         = 10 * time.Second
	defaultLobbyName            = "HALL"
	defaultLobbyAdmin           = "SERVER"
	defaultTopic                = "Default Topic of the Channel."
	defaultMaxMembers           = 5
	defaultMaxChannelNameLen    = 200
	defaultMailboxSize          = 256
	defaultClientQueueSize      = 256
	defaultMaxPendingDeliveries = 1024
	defaultShutdownTimeout      = 5 * time.Second
	defaultInvalidChannelError  = "INVALID_CHANNEL_NAME_ERROR"
	defaultInvalidChannelHint   = `Channels names are strings (beginning with a '&' or '#' character) of
length up to 200 characters.  Apart from the the requirement that the
first character being either '&' or '#'; the only restriction on a
channel name is that it may not contain any spaces (' '), a control G
(^G or ASCII 7), or a comma (',' which is used as a list item
separator by the protocol).`
)

func defaultConfig() Config {
	return Config{
		Addr:                    defaultAddr,
		HTTPAddr:                "",
		AllowedOrigins:          []string{"http://localhost:8080"},
		MaxLineSize:             defaultMaxLineSize,
		WriteTimeout:            defaultWriteTimeout,
		RateLimit:               RateLimitConfig{Burst: 5, RefillInterval: time.Second},
		LobbyName:               defaultLobbyName,
		LobbyAdmin:              defaultLobbyAdmin,
		DefaultTopic:            defaultTopic,
		MaxMembers:              defaultMaxMembers,
		MaxChannelNameLength:    defaultMaxChannelNameLen,
		Commands:                CommandConfig{Join: "JOIN", Kick: "KICK"},
		InvalidChannelNameError: defaultInvalidChannelError,
		InvalidChannelNameHint:  defaultInvalidChannelHint,
		MailboxSize:             defaultMailboxSize,
		ClientQueueSize:         defaultClientQueueSize,
		MaxPendingDeliveries:    defaultMaxPendingDeliveries,
		KickRequiresAdmin:       false,
		AllowEmptyNick:          true,
		ShutdownTimeout:         defaultShutdownTimeout,
		LogLevel:                "info",
	}
}

// sanitizeConfig replaces zero or invalid values with defaults.
func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = def.MaxLineSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.LobbyName == "" {
		cfg.LobbyName = def.LobbyName
	}
	if cfg.LobbyAdmin == "" {
		cfg.LobbyAdmin = def.LobbyAdmin
	}
	if cfg.DefaultTopic == "" {
		cfg.DefaultTopic = def.DefaultTopic
	}
	if cfg.MaxMembers <= 0 {
		cfg.MaxMembers = def.MaxMembers
	}
	if cfg.MaxChannelNameLength <= 0 {
		cfg.MaxChannelNameLength = def.MaxChannelNameLength
	}
	if strings.TrimSpace(cfg.Commands.Join) == "" {
		cfg.Commands.Join = def.Commands.Join
	}
	if strings.TrimSpace(cfg.Commands.Kick) == "" {
		cfg.Commands.Kick = def.Commands.Kick
	}
	if cfg.InvalidChannelNameError == "" {
		cfg.InvalidChannelNameError = def.InvalidChannelNameError
	}
	if cfg.InvalidChannelNameHint == "" {
		cfg.InvalidChannelNameHint = def.InvalidChannelNameHint
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = def.MailboxSize
	}
	// Attaching needs room for a rebind and a snapshot.
	if cfg.ClientQueueSize < 2 {
		cfg.ClientQueueSize = def.ClientQueueSize
	}
	if cfg.MaxPendingDeliveries <= 0 {
		cfg.MaxPendingDeliveries = def.MaxPendingDeliveries
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("CHAT_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if addr, ok := os.LookupEnv("CHAT_HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(addr)
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_LINE_SIZE"); maxSize != "" {
		cfg.MaxLineSize = parseInt64Value(maxSize, cfg.MaxLineSize)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
	if name := os.Getenv("LOBBY_NAME"); name != "" {
		cfg.LobbyName = name
	}
	if admin := os.Getenv("LOBBY_ADMIN"); admin != "" {
		cfg.LobbyAdmin = admin
	}
	if topic := os.Getenv("DEFAULT_TOPIC"); topic != "" {
		cfg.DefaultTopic = topic
	}
	if members := os.Getenv("MAX_MEMBERS"); members != "" {
		cfg.MaxMembers = parseIntValue(members, cfg.MaxMembers)
	}
	if size := os.Getenv("MAILBOX_SIZE"); size != "" {
		cfg.MailboxSize = parseIntValue(size, cfg.MailboxSize)
	}
	if size := os.Getenv("CLIENT_QUEUE_SIZE"); size != "" {
		cfg.ClientQueueSize = parseIntValue(size, cfg.ClientQueueSize)
	}
	if pending := os.Getenv("MAX_PENDING_DELIVERIES"); pending != "" {
		cfg.MaxPendingDeliveries = parseIntValue(pending, cfg.MaxPendingDeliveries)
	}
	if v := os.Getenv("KICK_REQUIRES_ADMIN"); v != "" {
		cfg.KickRequiresAdmin = parseBoolValue(v, cfg.KickRequiresAdmin)
	}
	if v := os.Getenv("ALLOW_EMPTY_NICK"); v != "" {
		cfg.AllowEmptyNick = parseBoolValue(v, cfg.AllowEmptyNick)
	}
	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseBoolValue(value string, defaultValue bool) bool {
	if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
