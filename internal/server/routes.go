package server

import "net/http"

// Routes returns the HTTP mux: health check, WebSocket endpoint and channel listing.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/channels", s.ChannelsHandler)
	return mux
}
