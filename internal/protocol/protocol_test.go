package protocol

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodeResultIsExternallyTagged(t *testing.T) {
	tests := []struct {
		name   string
		result ClientResult
		prefix string
	}{
		{
			name:   "chat message",
			result: ChatMessage{Time: time.Unix(0, 0).UTC(), Nick: "alice", Message: "hello"},
			prefix: `{"ChatMessage":{"time":"1970-01-01T00:00:00Z","nick":"alice","message":"hello"}}`,
		},
		{
			name:   "command failure",
			result: CommandFailure{Error: ErrCodeUserDoesNotExist, Hint: UserDoesNotExistHint},
			prefix: `{"CommandFailure":{"error":"USER_DOES_NOT_EXIST_ERROR","hint":"USER DOES NOT EXIST!"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeResult(tt.result)
			if err != nil {
				t.Fatalf("EncodeResult returned error: %v", err)
			}
			if string(got) != tt.prefix {
				t.Errorf("Expected %s, got %s", tt.prefix, got)
			}
		})
	}
}

func TestEncodeResultRejectsNil(t *testing.T) {
	if _, err := EncodeResult(nil); err == nil {
		t.Error("Expected error encoding nil result")
	}
}

func TestSnapshotResultCarriesChannelState(t *testing.T) {
	want := Snapshot{
		Name:     "HALL",
		Topic:    "Default Topic of the Channel.",
		Admin:    "SERVER",
		Capacity: 5,
		Users:    []string{"alice", "bob"},
	}
	res, err := NewSnapshotResult(want)
	if err != nil {
		t.Fatalf("NewSnapshotResult returned error: %v", err)
	}

	line, err := EncodeResult(res)
	if err != nil {
		t.Fatalf("EncodeResult returned error: %v", err)
	}
	decoded, err := DecodeResult(line)
	if err != nil {
		t.Fatalf("DecodeResult returned error: %v", err)
	}
	success, ok := decoded.(CommandSuccess)
	if !ok {
		t.Fatalf("Expected CommandSuccess, got %T", decoded)
	}
	got, err := success.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if got.Name != want.Name || got.Admin != want.Admin || got.Capacity != want.Capacity || got.Topic != want.Topic {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if strings.Join(got.Users, ",") != "alice,bob" {
		t.Errorf("Expected users alice,bob, got %v", got.Users)
	}
}

func TestDecodeResultErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "not json", line: "hello"},
		{name: "unknown tag", line: `{"Whisper":{}}`},
		{name: "two tags", line: `{"Notice":{},"ChatMessage":{}}`},
		{name: "bad body", line: `{"Notice":{"text":5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeResult([]byte(tt.line)); err == nil {
				t.Errorf("Expected error decoding %q", tt.line)
			}
		})
	}
}

func TestMailboxTryPostReportsFull(t *testing.T) {
	mb, inbox := NewMailbox("room", 1)

	if err := mb.TryPost(Depart{Nick: "a"}); err != nil {
		t.Fatalf("First TryPost failed: %v", err)
	}
	if err := mb.TryPost(Depart{Nick: "b"}); !errors.Is(err, ErrMailboxFull) {
		t.Errorf("Expected ErrMailboxFull, got %v", err)
	}

	ev := <-inbox
	if d, ok := ev.(Depart); !ok || d.Nick != "a" {
		t.Errorf("Expected Depart for a, got %#v", ev)
	}
	if mb.Name() != "room" {
		t.Errorf("Expected name room, got %q", mb.Name())
	}
}

func TestMailboxPostHonorsContext(t *testing.T) {
	mb, _ := NewMailbox("room", 1)
	if err := mb.Post(context.Background(), Depart{}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := mb.Post(ctx, Depart{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestClientMailboxSendAfterClose(t *testing.T) {
	cm, actions := NewClientMailbox(2)

	if err := cm.Send(Send{Result: Notice{Text: "hi"}}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("Expected 1 queued action, got %d", len(actions))
	}

	cm.Close()
	cm.Close()

	if !cm.Closed() {
		t.Error("Expected mailbox to report closed")
	}
	if err := cm.Send(Close{}); !errors.Is(err, ErrMailboxClosed) {
		t.Errorf("Expected ErrMailboxClosed, got %v", err)
	}
	select {
	case <-cm.Done():
	default:
		t.Error("Expected Done to be closed")
	}
}

func TestClientMailboxFull(t *testing.T) {
	cm, _ := NewClientMailbox(1)
	if err := cm.Send(Close{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := cm.Send(Close{}); !errors.Is(err, ErrMailboxFull) {
		t.Errorf("Expected ErrMailboxFull, got %v", err)
	}
	if cm.ID().String() == "" {
		t.Error("Expected a connection id")
	}
}
