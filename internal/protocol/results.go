package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Failure codes carried by CommandFailure results.
const (
	ErrCodeChannelFull      = "CHANNEL_FULL_ERROR"
	ErrCodeNicknameInUse    = "NICKNAME_IN_USE_ERROR"
	ErrCodeInvalidNickname  = "INVALID_NICKNAME_ERROR"
	ErrCodeUserDoesNotExist = "USER_DOES_NOT_EXIST_ERROR"
	ErrCodeNotChannelAdmin  = "NOT_CHANNEL_ADMIN_ERROR"
	ErrCodeNotOnChannel     = "NOT_ON_CHANNEL_ERROR"
	ErrCodeMissingArgument  = "MISSING_ARGUMENT_ERROR"
)

// Fixed texts shown to clients.
const (
	UserDoesNotExistHint = "USER DOES NOT EXIST!"
	KickedText           = "KICKED!"
)

// ClientResult is the payload of a Send action.
type ClientResult interface {
	Tag() string
}

// ChatMessage is a line another member said in the channel.
type ChatMessage struct {
	Time    time.Time `json:"time"`
	Nick    string    `json:"nick"`
	Message string    `json:"message"`
}

// CommandSuccess carries the JSON encoded Snapshot of the channel just joined.
type CommandSuccess struct {
	Data string `json:"data"`
}

// CommandFailure reports a rejected command or attach.
type CommandFailure struct {
	Error string `json:"error"`
	Hint  string `json:"hint"`
}

// Notice is a server-originated message addressed to one client.
type Notice struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

func (ChatMessage) Tag() string    { return "ChatMessage" }
func (CommandSuccess) Tag() string { return "CommandSuccess" }
func (CommandFailure) Tag() string { return "CommandFailure" }
func (Notice) Tag() string         { return "Notice" }

// Snapshot describes a channel at the moment a client joins it.
type Snapshot struct {
	Name     string   `json:"name"`
	Topic    string   `json:"topic"`
	Admin    string   `json:"admin"`
	Capacity int      `json:"capacity"`
	Users    []string `json:"users"`
}

// NewSnapshotResult wraps s in a CommandSuccess result.
func NewSnapshotResult(s Snapshot) (CommandSuccess, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return CommandSuccess{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return CommandSuccess{Data: string(data)}, nil
}

// Snapshot decodes the channel snapshot carried by r.
func (r CommandSuccess) Snapshot() (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(r.Data), &s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// EncodeResult renders r as externally tagged JSON, e.g.
// {"CommandFailure":{"error":"...","hint":"..."}}.
func EncodeResult(r ClientResult) ([]byte, error) {
	if r == nil {
		return nil, errors.New("encode result: nil result")
	}
	return json.Marshal(map[string]ClientResult{r.Tag(): r})
}

// DecodeResult parses one line produced by EncodeResult.
func DecodeResult(p []byte) (ClientResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(p, &raw); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("decode result: expected one tag, got %d", len(raw))
	}

	for tag, body := range raw {
		var (
			r   ClientResult
			err error
		)
		switch tag {
		case ChatMessage{}.Tag():
			var m ChatMessage
			err = json.Unmarshal(body, &m)
			r = m
		case CommandSuccess{}.Tag():
			var m CommandSuccess
			err = json.Unmarshal(body, &m)
			r = m
		case CommandFailure{}.Tag():
			var m CommandFailure
			err = json.Unmarshal(body, &m)
			r = m
		case Notice{}.Tag():
			var m Notice
			err = json.Unmarshal(body, &m)
			r = m
		default:
			return nil, fmt.Errorf("decode result: unknown tag %q", tag)
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", tag, err)
		}
		return r, nil
	}
	return nil, errors.New("decode result: empty")
}
