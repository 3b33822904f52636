package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// TCPStream frames a net.Conn as newline-terminated lines.
type TCPStream struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	writeTimeout time.Duration

	writeMu sync.Mutex
}

// NewTCPStream wraps conn. Lines longer than maxLineSize bytes end the stream
// with ErrLineTooLong. A zero writeTimeout disables write deadlines.
func NewTCPStream(conn net.Conn, maxLineSize int, writeTimeout time.Duration) *TCPStream {
	if maxLineSize <= 0 {
		maxLineSize = bufio.MaxScanTokenSize
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(maxLineSize, 4096)), maxLineSize)

	return &TCPStream{
		conn:         conn,
		scanner:      scanner,
		writeTimeout: writeTimeout,
	}
}

// ReadLine returns the next line without its trailing "\n" or "\r\n".
func (s *TCPStream) ReadLine() (string, error) {
	if s.scanner.Scan() {
		return strings.TrimSuffix(s.scanner.Text(), "\r"), nil
	}
	err := s.scanner.Err()
	if err == nil {
		return "", io.EOF
	}
	if errors.Is(err, bufio.ErrTooLong) {
		return "", ErrLineTooLong
	}
	return "", err
}

// WriteLine writes p followed by a newline.
func (s *TCPStream) WriteLine(p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	buf := make([]byte, 0, len(p)+1)
	buf = append(buf, p...)
	buf = append(buf, '\n')
	if _, err := s.conn.Write(buf); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying connection.
func (s *TCPStream) Close() error {
	return s.conn.Close()
}

// RemoteAddr returns the peer address.
func (s *TCPStream) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
