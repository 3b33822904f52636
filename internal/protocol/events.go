package protocol

// Stream is the line-oriented connection a client speaks over. Reads return one
// line without its terminator; writes are ordered and add their own terminator.
type Stream interface {
	ReadLine() (string, error)
	WriteLine(p []byte) error
	Close() error
	RemoteAddr() string
}

// Event is anything a hub or channel mailbox can carry.
type Event interface {
	isEvent()
}

// Connection hands a freshly accepted stream to the hub, which passes it on to
// the lobby channel.
type Connection struct {
	Stream Stream
}

// Message is one non-empty line read from a client.
type Message struct {
	Nick   string
	Text   string
	Client *ClientMailbox
}

// ClientAttach asks a channel to register Nick. Origin is the channel the client
// came from, or nil on first admission; a rejected attach is bounced back there.
type ClientAttach struct {
	Nick   string
	Client *ClientMailbox
	Origin *Mailbox
}

// Admit asks the hub to reserve Nick for a new connection and place it in the
// lobby. A nickname stays reserved until the hub sees the connection's Depart.
type Admit struct {
	Nick   string
	Client *ClientMailbox
}

// Depart reports that a connection's reader has stopped. It goes to the
// client's current channel and to the hub.
type Depart struct {
	Nick   string
	Client *ClientMailbox
}

// Command is an event addressed to the hub on behalf of a client.
type Command interface {
	Event
	isCommand()
}

// Join moves a client that has already been detached from Origin into Channel.
type Join struct {
	Nick    string
	Channel string
	Client  *ClientMailbox
	Origin  *Mailbox
}

// SnapshotRequest asks a channel for its current info and member list. Replies
// are sent without blocking, so Reply needs a buffer of at least one.
type SnapshotRequest struct {
	Reply chan<- Snapshot
}

// LookupRequest asks the hub for the mailbox registered under Name. A nil reply
// means no such channel. Reply needs a buffer of at least one.
type LookupRequest struct {
	Name  string
	Reply chan<- *Mailbox
}

// ChannelRef is one registry entry of the hub.
type ChannelRef struct {
	Name    string
	Mailbox *Mailbox
}

// ListRequest asks the hub for every registered channel. Reply needs a buffer
// of at least one.
type ListRequest struct {
	Reply chan<- []ChannelRef
}

func (Connection) isEvent()      {}
func (Message) isEvent()         {}
func (ClientAttach) isEvent()    {}
func (Admit) isEvent()           {}
func (Admit) isCommand()         {}
func (Depart) isEvent()          {}
func (Join) isEvent()            {}
func (Join) isCommand()          {}
func (SnapshotRequest) isEvent() {}
func (LookupRequest) isEvent()   {}
func (ListRequest) isEvent()     {}
