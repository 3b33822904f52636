package protocol

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrMailboxFull is returned by non-blocking sends when the queue has no room.
	ErrMailboxFull = errors.New("mailbox full")
	// ErrMailboxClosed is returned when sending to a client mailbox that was closed.
	ErrMailboxClosed = errors.New("mailbox closed")
)

// Mailbox is the sending handle of a hub or channel inbox.
type Mailbox struct {
	name string
	ch   chan Event
}

// NewMailbox creates a bounded inbox and returns the shareable handle together
// with the receiving end, which belongs to the owning actor alone.
func NewMailbox(name string, size int) (*Mailbox, <-chan Event) {
	if size <= 0 {
		size = 1
	}
	ch := make(chan Event, size)
	return &Mailbox{name: name, ch: ch}, ch
}

// Name returns the name of the actor that owns the mailbox.
func (m *Mailbox) Name() string {
	return m.name
}

// Post enqueues ev, waiting for room until ctx is done.
func (m *Mailbox) Post(ctx context.Context, ev Event) error {
	select {
	case m.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPost enqueues ev only if the inbox has room.
func (m *Mailbox) TryPost(ev Event) error {
	select {
	case m.ch <- ev:
		return nil
	default:
		return ErrMailboxFull
	}
}

// ClientMailbox is the sending handle of one connection's outbound queue.
// Closing it tells the connection's writer to stop.
type ClientMailbox struct {
	id      uuid.UUID
	actions chan Action
	done    chan struct{}
	once    sync.Once
}

// NewClientMailbox creates a bounded action queue and returns the handle
// together with the receiving end for the connection writer.
func NewClientMailbox(size int) (*ClientMailbox, <-chan Action) {
	if size <= 0 {
		size = 1
	}
	actions := make(chan Action, size)
	return &ClientMailbox{
		id:      uuid.New(),
		actions: actions,
		done:    make(chan struct{}),
	}, actions
}

// ID identifies the connection in logs.
func (c *ClientMailbox) ID() uuid.UUID {
	return c.id
}

// Send enqueues a without blocking.
func (c *ClientMailbox) Send(a Action) error {
	select {
	case <-c.done:
		return ErrMailboxClosed
	default:
	}

	select {
	case c.actions <- a:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Close marks the mailbox closed. It is safe to call more than once.
func (c *ClientMailbox) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the mailbox is closed.
func (c *ClientMailbox) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has been called.
func (c *ClientMailbox) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
