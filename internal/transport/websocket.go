package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketOptions tunes liveness and size limits of a WebSocketStream.
type WebSocketOptions struct {
	MaxLineSize  int64
	WriteTimeout time.Duration
	PongWait     time.Duration
	PingPeriod   time.Duration
}

func (o WebSocketOptions) withDefaults() WebSocketOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	return o
}

// WebSocketStream carries one chat line per text message. A text message that
// holds several newline separated lines is split into separate lines.
type WebSocketStream struct {
	conn    *websocket.Conn
	opts    WebSocketOptions
	pending []string

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketStream wraps an upgraded connection and starts its ping loop.
func NewWebSocketStream(conn *websocket.Conn, opts WebSocketOptions) *WebSocketStream {
	opts = opts.withDefaults()
	s := &WebSocketStream{
		conn: conn,
		opts: opts,
		done: make(chan struct{}),
	}
	if opts.MaxLineSize > 0 {
		conn.SetReadLimit(opts.MaxLineSize)
	}
	s.setupReadConnection()
	go s.pingLoop()
	return s
}

// setupReadConnection configures the read deadline and the pong handler that
// extends it.
func (s *WebSocketStream) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait)); err != nil {
		slog.Debug("set initial read deadline failed", "remote", s.RemoteAddr(), "err", err)
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})
}

func (s *WebSocketStream) pingLoop() {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				if !IsExpectedCloseError(err) {
					slog.Debug("websocket ping failed", "remote", s.RemoteAddr(), "err", err)
				}
				return
			}
		}
	}
}

// ReadLine returns the next line. Binary messages are ignored.
func (s *WebSocketStream) ReadLine() (string, error) {
	for len(s.pending) == 0 {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return "", s.translateReadError(err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		text := strings.TrimRight(string(data), "\r\n")
		for _, line := range strings.Split(text, "\n") {
			s.pending = append(s.pending, strings.TrimSuffix(line, "\r"))
		}
	}

	line := s.pending[0]
	s.pending = s.pending[1:]
	return line, nil
}

func (s *WebSocketStream) translateReadError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		return ErrLineTooLong
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	return err
}

// WriteLine sends p as one text message.
func (s *WebSocketStream) WriteLine(p []byte) error {
	return s.write(websocket.TextMessage, p)
}

func (s *WebSocketStream) write(messageType int, p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return s.conn.WriteMessage(messageType, p)
}

// Close sends a close frame when possible and closes the connection.
func (s *WebSocketStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := s.write(websocket.CloseMessage, msg); werr != nil && !IsExpectedCloseError(werr) {
			slog.Debug("websocket close frame failed", "remote", s.RemoteAddr(), "err", werr)
		}
		err = s.conn.Close()
	})
	return err
}

// RemoteAddr returns the peer address.
func (s *WebSocketStream) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
