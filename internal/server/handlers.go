package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flavluc/chat/internal/protocol"
	"github.com/flavluc/chat/internal/transport"
)

const channelsRequestTimeout = 2 * time.Second

// WebSocketHandler upgrades the request and hands the connection to the hub as
// a line stream. The first text message carries the nickname, exactly as the
// first line does over TCP.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	stream := transport.NewWebSocketStream(conn, transport.WebSocketOptions{
		MaxLineSize:  s.cfg.MaxLineSize,
		WriteTimeout: s.cfg.WriteTimeout,
	})
	if err := s.hub.Connect(stream); err != nil {
		s.logger.Warn("rejecting websocket connection", "remote", r.RemoteAddr, "err", err)
		_ = stream.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chat server is running!")
}

// ChannelsHandler lists a snapshot of every channel as JSON.
func (s *Server) ChannelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), channelsRequestTimeout)
	defer cancel()

	snapshots, err := s.hub.Snapshots(ctx)
	if err != nil {
		s.logger.Warn("channel listing failed", "err", err)
		http.Error(w, "channel listing unavailable", http.StatusServiceUnavailable)
		return
	}
	if snapshots == nil {
		snapshots = []protocol.Snapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshots); err != nil {
		slog.Debug("error writing channel listing", "err", err)
	}
}
