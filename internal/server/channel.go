package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/flavluc/chat/internal/protocol"
)

type channelInfo struct {
	name     string
	topic    string
	admin    string
	capacity int
}

// channel is the actor owning one room: its info, its members and the
// broadcast between them. All state is touched only from run.
type channel struct {
	info    channelInfo
	lobby   bool
	mailbox *protocol.Mailbox
	inbox   <-chan protocol.Event
	hub     *protocol.Mailbox
	members map[string]*protocol.ClientMailbox

	cfg    Config
	group  *actorGroup
	logger *slog.Logger
	now    func() time.Time
}

func newChannel(info channelInfo, lobby bool, hub *protocol.Mailbox, cfg Config, group *actorGroup) *channel {
	mailbox, inbox := protocol.NewMailbox(info.name, cfg.MailboxSize)
	return &channel{
		info:    info,
		lobby:   lobby,
		mailbox: mailbox,
		inbox:   inbox,
		hub:     hub,
		members: make(map[string]*protocol.ClientMailbox),
		cfg:     cfg,
		group:   group,
		logger:  slog.With("channel", info.name),
		now:     time.Now,
	}
}

func (c *channel) run() {
	for {
		select {
		case <-c.group.ctx.Done():
			c.closeMembers()
			return
		case ev := <-c.inbox:
			c.handle(ev)
		}
	}
}

func (c *channel) handle(ev protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic handling event", "event", fmt.Sprintf("%T", ev), "panic", r)
		}
	}()

	switch ev := ev.(type) {
	case protocol.Connection:
		c.accept(ev.Stream)
	case protocol.ClientAttach:
		c.pruneClosed()
		c.attach(ev)
	case protocol.Message:
		c.message(ev)
	case protocol.Depart:
		c.depart(ev)
	case protocol.SnapshotRequest:
		c.pruneClosed()
		answer(c.logger, ev.Reply, c.snapshot())
	default:
		c.logger.Warn("channel dropped unexpected event", "event", fmt.Sprintf("%T", ev))
	}
}

// accept starts the connection pair for stream. The pair asks the hub for
// admission once the nickname has been read.
func (c *channel) accept(stream protocol.Stream) {
	if stream == nil {
		c.logger.Warn("ignoring connection without a stream")
		return
	}
	c.group.spawn(func() {
		serveConnection(c.group, stream, c.hub, c.cfg)
	})
}

// attach registers a client. The Rebind and the snapshot are queued before the
// member is inserted, and nothing else runs on this channel in between.
func (c *channel) attach(ev protocol.ClientAttach) {
	if ev.Client == nil {
		c.logger.Warn("ignoring attach without a client mailbox", "nick", ev.Nick)
		return
	}
	if ev.Client.Closed() {
		c.logger.Debug("attach skipped, connection already gone", "nick", ev.Nick, "conn", ev.Client.ID())
		return
	}

	if existing, ok := c.members[ev.Nick]; ok {
		if existing == ev.Client {
			return
		}
		c.rejectAttach(ev, protocol.ErrCodeNicknameInUse,
			fmt.Sprintf("The nickname %q is already in use in %s.", ev.Nick, c.info.name))
		return
	}
	if len(c.members) >= c.info.capacity {
		c.rejectAttach(ev, protocol.ErrCodeChannelFull,
			fmt.Sprintf("%s is full (%d members).", c.info.name, c.info.capacity))
		return
	}

	if err := c.sendTo(ev.Nick, ev.Client, protocol.Rebind{Channel: c.mailbox}); err != nil {
		return
	}
	result, err := protocol.NewSnapshotResult(c.snapshotWith(ev.Nick))
	if err != nil {
		c.logger.Error("failed to build snapshot", "nick", ev.Nick, "err", err)
		return
	}
	if err := c.sendTo(ev.Nick, ev.Client, protocol.Send{Result: result}); err != nil {
		return
	}

	c.members[ev.Nick] = ev.Client
	c.logger.Info("member attached", "nick", ev.Nick, "conn", ev.Client.ID(), "members", len(c.members))
}

// rejectAttach reports the failure to the client, then returns it to the
// channel it came from, or ends the connection when there is none.
func (c *channel) rejectAttach(ev protocol.ClientAttach, code, hint string) {
	c.logger.Info("attach rejected", "nick", ev.Nick, "conn", ev.Client.ID(), "reason", code)

	if err := c.sendTo(ev.Nick, ev.Client, protocol.Send{Result: protocol.CommandFailure{Error: code, Hint: hint}}); err != nil {
		return
	}
	if ev.Origin != nil && ev.Origin != c.mailbox {
		c.group.deliver(ev.Origin, protocol.ClientAttach{Nick: ev.Nick, Client: ev.Client})
		return
	}
	_ = c.sendTo(ev.Nick, ev.Client, protocol.Close{Reason: code})
}

func (c *channel) message(ev protocol.Message) {
	kind, arg := parseCommand(ev.Text, c.cfg.Commands)

	if !c.isMember(ev.Nick, ev.Client) {
		// The client left this channel while the line was in flight.
		c.reply(ev, protocol.ErrCodeNotOnChannel,
			fmt.Sprintf("You are no longer in %s; the line was not delivered.", c.info.name))
		return
	}

	switch kind {
	case commandJoin:
		c.join(ev, arg)
	case commandKick:
		c.kick(ev, arg)
	default:
		c.broadcast(ev.Nick, ev.Text)
	}
}

// broadcast sends a chat line to every member except its sender.
func (c *channel) broadcast(sender, text string) {
	result := protocol.ChatMessage{Time: c.now(), Nick: sender, Message: text}
	for nick, client := range c.members {
		if nick == sender {
			continue
		}
		_ = c.sendTo(nick, client, protocol.Send{Result: result})
	}
}

// join detaches the sender and hands it to the hub.
func (c *channel) join(ev protocol.Message, name string) {
	if err := validateChannelName(name, c.cfg.MaxChannelNameLength); err != nil {
		c.logger.Debug("invalid channel name", "nick", ev.Nick, "name", name, "err", err)
		c.reply(ev, c.cfg.InvalidChannelNameError, c.cfg.InvalidChannelNameHint)
		return
	}

	client := c.members[ev.Nick]
	delete(c.members, ev.Nick)
	c.logger.Info("member leaving", "nick", ev.Nick, "target", name, "members", len(c.members))

	c.group.deliver(c.hub, protocol.Join{
		Nick:    ev.Nick,
		Channel: name,
		Client:  client,
		Origin:  c.mailbox,
	})
}

// kick removes the target member. Members kicked from a room go back to the
// lobby; members kicked from the lobby are disconnected.
func (c *channel) kick(ev protocol.Message, target string) {
	if target == "" {
		c.reply(ev, protocol.ErrCodeMissingArgument, fmt.Sprintf("Usage: %s <nick>", c.cfg.Commands.Kick))
		return
	}
	if c.cfg.KickRequiresAdmin && ev.Nick != c.info.admin {
		c.reply(ev, protocol.ErrCodeNotChannelAdmin,
			fmt.Sprintf("Only %s may kick members from %s.", c.info.admin, c.info.name))
		return
	}

	client, ok := c.members[target]
	if !ok {
		c.reply(ev, protocol.ErrCodeUserDoesNotExist, protocol.UserDoesNotExistHint)
		return
	}

	delete(c.members, target)
	c.logger.Info("member kicked", "nick", target, "by", ev.Nick, "members", len(c.members))

	if err := c.sendTo(target, client, protocol.Send{Result: protocol.Notice{Time: c.now(), Text: protocol.KickedText}}); err != nil {
		return
	}
	if c.lobby {
		_ = c.sendTo(target, client, protocol.Close{Reason: "kicked"})
		return
	}
	c.group.deliver(c.hub, protocol.Join{Nick: target, Channel: c.cfg.LobbyName, Client: client})
}

func (c *channel) depart(ev protocol.Depart) {
	if !c.isMember(ev.Nick, ev.Client) {
		return
	}
	delete(c.members, ev.Nick)
	c.logger.Info("member departed", "nick", ev.Nick, "members", len(c.members))
}

// pruneClosed drops members whose connection ended before their Depart could
// reach this channel, which happens when a client disconnects mid-migration.
func (c *channel) pruneClosed() {
	for nick, client := range c.members {
		if client.Closed() {
			delete(c.members, nick)
			c.logger.Info("member removed, connection closed", "nick", nick, "members", len(c.members))
		}
	}
}

func (c *channel) isMember(nick string, client *protocol.ClientMailbox) bool {
	existing, ok := c.members[nick]
	return ok && existing == client
}

// reply sends a failure to the sender of ev.
func (c *channel) reply(ev protocol.Message, code, hint string) {
	if ev.Client == nil {
		return
	}
	_ = c.sendTo(ev.Nick, ev.Client, protocol.Send{Result: protocol.CommandFailure{Error: code, Hint: hint}})
}

// sendTo queues an action for one client. A client whose queue is full is a
// slow consumer: its mailbox is closed, which ends the connection, and it is
// removed from the members.
func (c *channel) sendTo(nick string, client *protocol.ClientMailbox, action protocol.Action) error {
	err := client.Send(action)
	if err == nil {
		return nil
	}

	if errors.Is(err, protocol.ErrMailboxFull) {
		c.logger.Warn("client queue full, disconnecting slow consumer", "nick", nick, "conn", client.ID())
		client.Close()
	} else {
		c.logger.Debug("client mailbox closed", "nick", nick, "conn", client.ID())
	}
	if c.isMember(nick, client) {
		delete(c.members, nick)
		c.logger.Info("member removed", "nick", nick, "members", len(c.members))
	}
	return err
}

func (c *channel) snapshot() protocol.Snapshot {
	users := make([]string, 0, len(c.members))
	for nick := range c.members {
		users = append(users, nick)
	}
	sort.Strings(users)

	return protocol.Snapshot{
		Name:     c.info.name,
		Topic:    c.info.topic,
		Admin:    c.info.admin,
		Capacity: c.info.capacity,
		Users:    users,
	}
}

// snapshotWith is the snapshot as it will be once nick is inserted.
func (c *channel) snapshotWith(nick string) protocol.Snapshot {
	s := c.snapshot()
	s.Users = append(s.Users, nick)
	sort.Strings(s.Users)
	return s
}

func (c *channel) closeMembers() {
	for nick, client := range c.members {
		client.Close()
		delete(c.members, nick)
	}
	c.logger.Debug("channel stopped")
}
