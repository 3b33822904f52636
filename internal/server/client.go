package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/flavluc/chat/internal/protocol"
	"github.com/flavluc/chat/internal/transport"
)

// connection is the reader/writer pair serving one stream. The reader posts
// lines to whichever channel the writer last bound it to, and reads nothing
// until the first binding.
type connection struct {
	stream      protocol.Stream
	nick        string
	mailbox     *protocol.ClientMailbox
	actions     <-chan protocol.Action
	current     atomic.Pointer[protocol.Mailbox]
	hub         *protocol.Mailbox
	bound       chan struct{}
	bindOnce    sync.Once
	rateLimiter *rateLimiter
	group       *actorGroup
	logger      *slog.Logger
}

// serveConnection performs the nickname handshake on stream, asks hub to admit
// the nickname and starts the pumps.
func serveConnection(group *actorGroup, stream protocol.Stream, hub *protocol.Mailbox, cfg Config) {
	stop := context.AfterFunc(group.ctx, func() { _ = stream.Close() })

	// A failed handshake leaves the nickname empty; the reader then sees the
	// same error and departs.
	line, err := stream.ReadLine()
	if err != nil && !transport.IsExpectedCloseError(err) {
		slog.Debug("nickname handshake failed", "remote", stream.RemoteAddr(), "err", err)
	}
	nick := strings.TrimSpace(line)

	mailbox, actions := protocol.NewClientMailbox(cfg.ClientQueueSize)
	logger := slog.With("conn", mailbox.ID(), "remote", stream.RemoteAddr(), "nick", nick)

	if nick == "" && !cfg.AllowEmptyNick {
		logger.Info("rejecting connection without a nickname")
		stop()
		rejectNickname(stream, logger)
		return
	}

	c := &connection{
		stream:      stream,
		nick:        nick,
		mailbox:     mailbox,
		actions:     actions,
		hub:         hub,
		bound:       make(chan struct{}),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		group:       group,
		logger:      logger,
	}
	// The admission is queued ahead of the reader's Depart.
	if err := hub.Post(group.ctx, protocol.Admit{Nick: nick, Client: mailbox}); err != nil {
		logger.Debug("admission abandoned, server stopping", "err", err)
		stop()
		mailbox.Close()
		c.closeStream()
		return
	}
	logger.Info("client connected")

	group.spawn(func() {
		defer stop()
		c.writePump()
	})
	group.spawn(c.readPump)
}

func rejectNickname(stream protocol.Stream, logger *slog.Logger) {
	payload, err := protocol.EncodeResult(protocol.CommandFailure{
		Error: protocol.ErrCodeInvalidNickname,
		Hint:  "The first line must be a non-empty nickname.",
	})
	if err == nil {
		if err := stream.WriteLine(payload); err != nil && !transport.IsExpectedCloseError(err) {
			logger.Warn("failed to write nickname rejection", "err", err)
		}
	}
	if err := stream.Close(); err != nil && !transport.IsExpectedCloseError(err) {
		logger.Warn("error closing rejected connection", "err", err)
	}
}

func (c *connection) readPump() {
	defer func() {
		// Closing first makes any in-flight attach of this client a no-op.
		c.mailbox.Close()
		depart := protocol.Depart{Nick: c.nick, Client: c.mailbox}
		if current := c.current.Load(); current != nil {
			c.group.deliver(current, depart)
		}
		c.group.deliver(c.hub, depart)
		c.closeStream()
	}()

	select {
	case <-c.bound:
	case <-c.mailbox.Done():
		return
	case <-c.group.ctx.Done():
		return
	}

	for {
		line, err := c.stream.ReadLine()
		if err != nil {
			c.handleReadError(err)
			return
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if !c.checkRateLimit() {
			continue
		}

		if err := c.current.Load().Post(c.group.ctx, protocol.Message{Nick: c.nick, Text: text, Client: c.mailbox}); err != nil {
			return
		}
	}
}

// handleReadError logs the reason the reader stopped at a level matching how
// expected it is.
func (c *connection) handleReadError(err error) {
	switch {
	case errors.Is(err, transport.ErrLineTooLong):
		c.logger.Warn("line exceeded maximum size, closing connection")
	case transport.IsExpectedCloseError(err):
		c.logger.Info("client disconnected")
	default:
		c.logger.Warn("read error", "err", err)
	}
}

func (c *connection) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn("rate limit exceeded, discarding line")
		return false
	}
	return true
}

func (c *connection) writePump() {
	defer func() {
		c.mailbox.Close()
		c.closeStream()
	}()

	for {
		select {
		case <-c.mailbox.Done():
			return
		case action := <-c.actions:
			if !c.apply(action) {
				return
			}
		}
	}
}

// apply performs one action and returns false when the pump should stop.
func (c *connection) apply(action protocol.Action) bool {
	switch a := action.(type) {
	case protocol.Send:
		return c.writeResult(a.Result)
	case protocol.Rebind:
		if a.Channel != nil {
			c.current.Store(a.Channel)
			c.bindOnce.Do(func() { close(c.bound) })
			c.logger.Debug("bound to channel", "channel", a.Channel.Name())
		}
		return true
	case protocol.Close:
		c.logger.Info("closing connection", "reason", a.Reason)
		return false
	default:
		c.logger.Warn("ignoring unknown action")
		return true
	}
}

func (c *connection) writeResult(result protocol.ClientResult) bool {
	payload, err := protocol.EncodeResult(result)
	if err != nil {
		c.logger.Error("failed to encode result", "err", err)
		return true
	}
	if err := c.stream.WriteLine(payload); err != nil {
		if !transport.IsExpectedCloseError(err) {
			c.logger.Warn("write error", "err", err)
		}
		return false
	}
	return true
}

func (c *connection) closeStream() {
	if err := c.stream.Close(); err != nil && !transport.IsExpectedCloseError(err) {
		c.logger.Debug("error closing stream", "err", err)
	}
}
