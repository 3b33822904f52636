package server

import (
	"bufio"
	"context"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/flavluc/chat/internal/protocol"
	"github.com/flavluc/chat/internal/transport"
)

const testTimeout = 2 * time.Second

// testConfig returns a configuration with a generous rate limit so tests can
// send lines back to back.
func testConfig() Config {
	cfg := defaultConfig()
	cfg.RateLimit = RateLimitConfig{Burst: 1000, RefillInterval: time.Second}
	cfg.ShutdownTimeout = testTimeout
	return cfg
}

// startTestHub runs a hub for cfg and shuts it down when the test ends.
func startTestHub(t *testing.T, mutate func(*Config)) *Hub {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h := NewHub(cfg)
	go h.Run()

	t.Cleanup(func() {
		if err := h.Shutdown(testTimeout); err != nil {
			t.Errorf("hub shutdown: %v", err)
		}
	})
	return h
}

// testPeer is the remote end of a client connection backed by net.Pipe.
type testPeer struct {
	t       *testing.T
	nick    string
	conn    net.Conn
	results chan protocol.ClientResult
}

// connectPeer connects to h and sends nick as the first line.
func connectPeer(t *testing.T, h *Hub, nick string) *testPeer {
	t.Helper()

	p := dialPeer(t, h, nick)
	p.results = make(chan protocol.ClientResult, 64)
	go p.readResults()
	return p
}

// dialPeer is connectPeer without a reader, for peers that never consume.
func dialPeer(t *testing.T, h *Hub, nick string) *testPeer {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() { _ = clientSide.Close() })

	if err := h.Connect(transport.NewTCPStream(serverSide, 4096, testTimeout)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	p := &testPeer{t: t, nick: nick, conn: clientSide}
	p.send(nick)
	return p
}

func (p *testPeer) readResults() {
	defer close(p.results)

	scanner := bufio.NewScanner(p.conn)
	for scanner.Scan() {
		result, err := protocol.DecodeResult(scanner.Bytes())
		if err != nil {
			p.t.Errorf("%s received undecodable line %q: %v", p.nick, scanner.Text(), err)
			return
		}
		p.results <- result
	}
}

func (p *testPeer) send(line string) {
	p.t.Helper()

	if err := p.conn.SetWriteDeadline(time.Now().Add(testTimeout)); err != nil {
		p.t.Fatalf("set write deadline: %v", err)
	}
	if _, err := p.conn.Write([]byte(line + "\n")); err != nil {
		p.t.Fatalf("%s failed to send %q: %v", p.nick, line, err)
	}
}

func (p *testPeer) close() {
	_ = p.conn.Close()
}

func (p *testPeer) next() protocol.ClientResult {
	p.t.Helper()

	select {
	case result, ok := <-p.results:
		if !ok {
			p.t.Fatalf("%s: connection closed while waiting for a result", p.nick)
		}
		return result
	case <-time.After(testTimeout):
		p.t.Fatalf("%s: timed out waiting for a result", p.nick)
		return nil
	}
}

func (p *testPeer) expectSnapshot(name string, users ...string) protocol.Snapshot {
	p.t.Helper()

	result := p.next()
	success, ok := result.(protocol.CommandSuccess)
	if !ok {
		p.t.Fatalf("%s: expected CommandSuccess, got %#v", p.nick, result)
	}
	snapshot, err := success.Snapshot()
	if err != nil {
		p.t.Fatalf("%s: decode snapshot: %v", p.nick, err)
	}
	if snapshot.Name != name {
		p.t.Errorf("%s: expected snapshot of %s, got %s", p.nick, name, snapshot.Name)
	}
	if users == nil {
		users = []string{}
	}
	if !reflect.DeepEqual(snapshot.Users, users) {
		p.t.Errorf("%s: expected users %v in %s, got %v", p.nick, users, name, snapshot.Users)
	}
	return snapshot
}

func (p *testPeer) expectChat(nick, text string) {
	p.t.Helper()

	result := p.next()
	msg, ok := result.(protocol.ChatMessage)
	if !ok {
		p.t.Fatalf("%s: expected ChatMessage, got %#v", p.nick, result)
	}
	if msg.Nick != nick || msg.Message != text {
		p.t.Errorf("%s: expected %s: %q, got %s: %q", p.nick, nick, text, msg.Nick, msg.Message)
	}
	if msg.Time.IsZero() {
		p.t.Errorf("%s: chat message has no timestamp", p.nick)
	}
}

func (p *testPeer) expectFailure(code string) protocol.CommandFailure {
	p.t.Helper()

	result := p.next()
	failure, ok := result.(protocol.CommandFailure)
	if !ok {
		p.t.Fatalf("%s: expected CommandFailure %s, got %#v", p.nick, code, result)
	}
	if failure.Error != code {
		p.t.Errorf("%s: expected failure %s, got %s", p.nick, code, failure.Error)
	}
	return failure
}

func (p *testPeer) expectNotice(text string) {
	p.t.Helper()

	result := p.next()
	notice, ok := result.(protocol.Notice)
	if !ok {
		p.t.Fatalf("%s: expected Notice, got %#v", p.nick, result)
	}
	if notice.Text != text {
		p.t.Errorf("%s: expected notice %q, got %q", p.nick, text, notice.Text)
	}
}

func (p *testPeer) expectNothing(d time.Duration) {
	p.t.Helper()

	select {
	case result, ok := <-p.results:
		if ok {
			p.t.Errorf("%s: expected no result, got %#v", p.nick, result)
		}
	case <-time.After(d):
	}
}

func (p *testPeer) expectClosed() {
	p.t.Helper()

	deadline := time.After(testTimeout)
	for {
		select {
		case result, ok := <-p.results:
			if !ok {
				return
			}
			p.t.Errorf("%s: expected the connection to close, got %#v", p.nick, result)
		case <-deadline:
			p.t.Fatalf("%s: connection still open", p.nick)
		}
	}
}

// eventually polls cond until it holds or the test timeout passes.
func eventually(t *testing.T, msg string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func usersOf(t *testing.T, h *Hub, name string) []string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	snapshot, err := h.Snapshot(ctx, name)
	if err != nil {
		t.Fatalf("Snapshot(%s): %v", name, err)
	}
	return snapshot.Users
}

func sameUsers(got []string, want ...string) bool {
	if want == nil {
		want = []string{}
	}
	if got == nil {
		got = []string{}
	}
	return reflect.DeepEqual(got, want)
}
