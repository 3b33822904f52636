// Package server coordinates connection admission, the channel registry and
// cross-channel migration through the Hub actor.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/flavluc/chat/internal/protocol"
)

var (
	// ErrHubStopped is returned by hub operations after Shutdown.
	ErrHubStopped = errors.New("hub stopped")
	// ErrChannelNotFound is returned when a channel name is not registered.
	ErrChannelNotFound = errors.New("channel not found")
)

// Hub is the single entry point for new connections. It owns the registry of
// channel mailboxes and is the only actor that creates channels. It also owns
// the nicknames in use: a nickname is reserved on admission and held until the
// connection departs, whichever channel the client is in.
type Hub struct {
	cfg      Config
	mailbox  *protocol.Mailbox
	inbox    <-chan protocol.Event
	channels map[string]*protocol.Mailbox
	nicks    map[string]*protocol.ClientMailbox
	lobby    *protocol.Mailbox
	logger   *slog.Logger

	group  *actorGroup
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub for cfg. Zero fields of cfg take their defaults. The hub
// does nothing until Run is called.
func NewHub(cfg Config) *Hub {
	cfg = sanitizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	mailbox, inbox := protocol.NewMailbox("hub", cfg.MailboxSize)

	return &Hub{
		cfg:      cfg,
		mailbox:  mailbox,
		inbox:    inbox,
		channels: make(map[string]*protocol.Mailbox),
		nicks:    make(map[string]*protocol.ClientMailbox),
		logger:   slog.With("actor", "hub"),
		group:    newActorGroup(ctx, cfg.MaxPendingDeliveries),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Mailbox returns the hub's inbox handle.
func (h *Hub) Mailbox() *protocol.Mailbox {
	return h.mailbox
}

// Run starts the lobby and processes hub events until Shutdown. It should be
// called once, in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	h.lobby = h.startChannel(h.cfg.LobbyName, h.cfg.LobbyAdmin, true)
	h.logger.Info("hub started", "lobby", h.cfg.LobbyName, "max_members", h.cfg.MaxMembers)

	for {
		select {
		case <-h.group.ctx.Done():
			h.logger.Info("hub stopping", "channels", len(h.channels))
			return
		case ev := <-h.inbox:
			h.handle(ev)
		}
	}
}

// handle processes one event. A panic is logged and swallowed so a malformed
// event never takes the hub down.
func (h *Hub) handle(ev protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic handling event", "event", fmt.Sprintf("%T", ev), "panic", r)
		}
	}()

	switch ev := ev.(type) {
	case protocol.Connection:
		if ev.Stream == nil {
			h.logger.Warn("ignoring connection without a stream")
			return
		}
		h.group.deliver(h.lobby, ev)
	case protocol.Command:
		h.command(ev)
	case protocol.Depart:
		h.release(ev.Nick, ev.Client)
	case protocol.LookupRequest:
		answer(h.logger, ev.Reply, h.channels[ev.Name])
	case protocol.ListRequest:
		refs := make([]protocol.ChannelRef, 0, len(h.channels))
		for name, mb := range h.channels {
			refs = append(refs, protocol.ChannelRef{Name: name, Mailbox: mb})
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
		answer(h.logger, ev.Reply, refs)
	default:
		h.logger.Warn("hub dropped unexpected event", "event", fmt.Sprintf("%T", ev))
	}
}

func (h *Hub) command(cmd protocol.Command) {
	switch cmd := cmd.(type) {
	case protocol.Admit:
		h.admit(cmd)
	case protocol.Join:
		h.join(cmd)
	default:
		h.logger.Warn("hub dropped unknown command", "command", fmt.Sprintf("%T", cmd))
	}
}

// admit reserves the nickname of a new connection and attaches it to the
// lobby. A nickname held by a live connection is refused.
func (h *Hub) admit(cmd protocol.Admit) {
	if cmd.Client == nil {
		h.logger.Warn("ignoring admission without a client mailbox", "nick", cmd.Nick)
		return
	}
	if cmd.Client.Closed() {
		return
	}

	if holder, ok := h.nicks[cmd.Nick]; ok && holder != cmd.Client {
		if !holder.Closed() {
			h.logger.Info("admission rejected, nickname in use", "nick", cmd.Nick, "conn", cmd.Client.ID())
			h.refuse(cmd.Client, protocol.ErrCodeNicknameInUse,
				fmt.Sprintf("The nickname %q is already in use.", cmd.Nick))
			return
		}
		// The holder is gone and its Depart has not arrived yet.
		h.logger.Debug("reclaiming nickname of closed connection", "nick", cmd.Nick, "conn", holder.ID())
	}

	h.nicks[cmd.Nick] = cmd.Client
	h.group.deliver(h.lobby, protocol.ClientAttach{Nick: cmd.Nick, Client: cmd.Client})
}

// refuse reports a failed admission and ends the connection.
func (h *Hub) refuse(client *protocol.ClientMailbox, code, hint string) {
	if err := client.Send(protocol.Send{Result: protocol.CommandFailure{Error: code, Hint: hint}}); err != nil {
		client.Close()
		return
	}
	if err := client.Send(protocol.Close{Reason: code}); err != nil {
		client.Close()
	}
}

// release frees nick when it is still held by client.
func (h *Hub) release(nick string, client *protocol.ClientMailbox) {
	if holder, ok := h.nicks[nick]; ok && holder == client {
		delete(h.nicks, nick)
		h.logger.Debug("nickname released", "nick", nick, "nicknames", len(h.nicks))
	}
}

// join forwards a detached client to the named channel, creating the channel
// first when the name is new. Lookup and creation happen on the hub goroutine,
// so concurrent joins to a new name create it exactly once.
func (h *Hub) join(cmd protocol.Join) {
	if cmd.Client == nil {
		h.logger.Warn("ignoring join without a client mailbox", "nick", cmd.Nick, "channel", cmd.Channel)
		return
	}

	target, ok := h.channels[cmd.Channel]
	if !ok {
		target = h.startChannel(cmd.Channel, cmd.Nick, false)
		h.logger.Info("channel created", "channel", cmd.Channel, "admin", cmd.Nick, "channels", len(h.channels))
	}

	h.group.deliver(target, protocol.ClientAttach{
		Nick:   cmd.Nick,
		Client: cmd.Client,
		Origin: cmd.Origin,
	})
}

func (h *Hub) startChannel(name, admin string, lobby bool) *protocol.Mailbox {
	ch := newChannel(channelInfo{
		name:     name,
		topic:    h.cfg.DefaultTopic,
		admin:    admin,
		capacity: h.cfg.MaxMembers,
	}, lobby, h.mailbox, h.cfg, h.group)

	h.channels[name] = ch.mailbox
	h.group.spawn(ch.run)
	return ch.mailbox
}

// Connect hands an accepted stream to the hub.
func (h *Hub) Connect(stream protocol.Stream) error {
	if h.group.ctx.Err() != nil {
		return ErrHubStopped
	}
	if err := h.mailbox.Post(h.group.ctx, protocol.Connection{Stream: stream}); err != nil {
		return ErrHubStopped
	}
	return nil
}

// Lookup returns the mailbox of the named channel.
func (h *Hub) Lookup(ctx context.Context, name string) (*protocol.Mailbox, error) {
	mb, err := ask(ctx, h.group.ctx, h.mailbox, func(reply chan<- *protocol.Mailbox) protocol.Event {
		return protocol.LookupRequest{Name: name, Reply: reply}
	})
	if err != nil {
		return nil, err
	}
	if mb == nil {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	return mb, nil
}

// Channels lists every registered channel ordered by name.
func (h *Hub) Channels(ctx context.Context) ([]protocol.ChannelRef, error) {
	return ask(ctx, h.group.ctx, h.mailbox, func(reply chan<- []protocol.ChannelRef) protocol.Event {
		return protocol.ListRequest{Reply: reply}
	})
}

// Snapshot returns the current state of the named channel.
func (h *Hub) Snapshot(ctx context.Context, name string) (protocol.Snapshot, error) {
	mb, err := h.Lookup(ctx, name)
	if err != nil {
		return protocol.Snapshot{}, err
	}
	return h.snapshotOf(ctx, mb)
}

// Snapshots returns the state of every channel ordered by name.
func (h *Hub) Snapshots(ctx context.Context) ([]protocol.Snapshot, error) {
	refs, err := h.Channels(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]protocol.Snapshot, 0, len(refs))
	for _, ref := range refs {
		s, err := h.snapshotOf(ctx, ref.Mailbox)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", ref.Name, err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

func (h *Hub) snapshotOf(ctx context.Context, mb *protocol.Mailbox) (protocol.Snapshot, error) {
	return ask(ctx, h.group.ctx, mb, func(reply chan<- protocol.Snapshot) protocol.Event {
		return protocol.SnapshotRequest{Reply: reply}
	})
}

// Shutdown stops the hub and every channel, closes all client connections and
// waits for their goroutines, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")
	h.cancel()

	deadline := time.After(timeout)
	select {
	case <-h.done:
	case <-deadline:
		h.logger.Warn("hub shutdown timeout reached before the hub loop exited")
		return context.DeadlineExceeded
	}

	finished := make(chan struct{})
	go func() {
		h.group.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-deadline:
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
