package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/flavluc/chat/internal/protocol"
)

// Incoming is one decoded line from the server, a line that could not be
// decoded, or, when Closed is set, the error that ended the connection.
type Incoming struct {
	Result protocol.ClientResult
	Err    error
	Closed bool
}

// Conn is a line connection to the chat server.
type Conn struct {
	conn     net.Conn
	incoming chan Incoming

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to addr and sends nick as the first line.
func Dial(addr, nick string, timeout time.Duration) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := newConn(conn)
	if err := c.Send(nick); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("send nickname: %w", err)
	}
	return c, nil
}

func newConn(conn net.Conn) *Conn {
	c := &Conn{
		conn:     conn,
		incoming: make(chan Incoming, 64),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer close(c.incoming)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		result, err := protocol.DecodeResult(scanner.Bytes())
		if err != nil {
			c.incoming <- Incoming{Err: fmt.Errorf("undecodable line %q: %w", scanner.Text(), err)}
			continue
		}
		c.incoming <- Incoming{Result: result}
	}

	err := scanner.Err()
	if err == nil || errors.Is(err, net.ErrClosed) {
		err = io.EOF
	}
	c.incoming <- Incoming{Err: err, Closed: true}
}

// Incoming delivers decoded results. It is closed after the final error.
func (c *Conn) Incoming() <-chan Incoming {
	return c.incoming
}

// Send writes one line.
func (c *Conn) Send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// Close closes the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}
