// Package testhelpers provides common utilities for testing the chat server.
//
// It holds the HTTP assertions and the line and WebSocket dialers shared by the
// server's integration tests.
package testhelpers

import (
	"bufio"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flavluc/chat/internal/protocol"
)

// DefaultTimeout bounds every blocking helper.
const DefaultTimeout = 5 * time.Second

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It fails the test if the request cannot be created or executed.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: DefaultTimeout,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// ConnectWebSocket dials url with the given Origin header. An empty origin
// sends no header. The handshake response is returned for status checks.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultTimeout,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// LineClient is a raw TCP chat client.
type LineClient struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// DialLine connects to addr and sends nick as the first line.
func DialLine(t *testing.T, addr, nick string) *LineClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &LineClient{conn: conn, scanner: bufio.NewScanner(conn)}
	if err := c.Send(nick); err != nil {
		t.Fatalf("Failed to send nickname: %v", err)
	}
	return c
}

// Send writes one line.
func (c *LineClient) Send(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// Receive reads and decodes the next result. It returns net.ErrClosed once the
// server has closed the connection.
func (c *LineClient) Receive() (protocol.ClientResult, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		return nil, err
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, net.ErrClosed
	}
	return protocol.DecodeResult(c.scanner.Bytes())
}

// Close closes the connection.
func (c *LineClient) Close() error {
	return c.conn.Close()
}

// ReceiveWebSocket reads and decodes the next result from a WebSocket connection.
func ReceiveWebSocket(conn *websocket.Conn) (protocol.ClientResult, error) {
	if err := conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		return nil, err
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResult(payload)
}

// SnapshotOf extracts the channel snapshot carried by a CommandSuccess.
func SnapshotOf(t *testing.T, result protocol.ClientResult) protocol.Snapshot {
	t.Helper()

	success, ok := result.(protocol.CommandSuccess)
	if !ok {
		t.Fatalf("Expected CommandSuccess, got %#v", result)
	}
	snapshot, err := success.Snapshot()
	if err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	return snapshot
}
