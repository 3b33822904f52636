package protocol

// Action is an instruction for a connection's writer.
type Action interface {
	isAction()
}

// Send writes Result to the remote peer.
type Send struct {
	Result ClientResult
}

// Rebind points the connection's reader at a different channel.
type Rebind struct {
	Channel *Mailbox
}

// Close ends the connection once every action queued before it has been applied.
type Close struct {
	Reason string
}

func (Send) isAction()   {}
func (Rebind) isAction() {}
func (Close) isAction()  {}
