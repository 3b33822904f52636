package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/flavluc/chat/internal/logging"
	"github.com/flavluc/chat/internal/server"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D4FF"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

func main() {
	config := server.NewConfigFromEnv()
	logging.Setup(os.Stderr, config.LogLevel)

	switch len(os.Args) {
	case 1:
	case 3:
		config.Addr = net.JoinHostPort(os.Args[1], os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [<ip> <port>]\n", os.Args[0])
		os.Exit(2)
	}

	srv := server.NewServer(*config)
	if err := srv.Start(); err != nil {
		slog.Error("failed to start server", "err", err)
		os.Exit(1)
	}

	fmt.Println(titleStyle.Render("chat server") + " " + dimStyle.Render("listening on "+srv.Addr()))
	if addr := srv.HTTPAddr(); addr != "" {
		fmt.Println(dimStyle.Render("  websocket ws://" + addr + "/ws  channels http://" + addr + "/channels"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutdown signal received")
	if err := srv.Shutdown(config.ShutdownTimeout); err != nil {
		slog.Error("shutdown finished with errors", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
