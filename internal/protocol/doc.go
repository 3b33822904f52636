// Package protocol defines the vocabulary exchanged on the chat bus: the events
// that hub and channel mailboxes carry, the actions a connection writer applies,
// and the results written back to remote peers.
//
// Every actor owns the receiving end of its own queue. Other actors only ever
// hold the sending handle (*Mailbox for hubs and channels, *ClientMailbox for
// connections), so the handles can be copied freely.
package protocol
