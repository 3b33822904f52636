package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flavluc/chat/internal/protocol"
)

// actorGroup tracks every goroutine started under the hub so Shutdown can wait
// for them, and owns the context that stops them.
type actorGroup struct {
	ctx context.Context
	wg  sync.WaitGroup

	// overflow limits the deliveries waiting on a full mailbox. A nil
	// overflow means no limit.
	overflow chan struct{}
}

func newActorGroup(ctx context.Context, maxPending int) *actorGroup {
	g := &actorGroup{ctx: ctx}
	if maxPending > 0 {
		g.overflow = make(chan struct{}, maxPending)
	}
	return g
}

func (g *actorGroup) spawn(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// deliver posts ev from one actor to another without blocking the sender. When
// the target inbox is full the post continues on its own goroutine, so two
// actors delivering to each other can never deadlock. Once too many of those
// are pending the event is dropped, and a client it carries is disconnected.
func (g *actorGroup) deliver(target *protocol.Mailbox, ev protocol.Event) {
	if target == nil {
		slog.Warn("dropping event for nil mailbox", "event", fmt.Sprintf("%T", ev))
		return
	}
	if err := target.TryPost(ev); err == nil {
		return
	}
	if g.ctx.Err() != nil {
		return
	}

	if g.overflow != nil {
		select {
		case g.overflow <- struct{}{}:
		default:
			slog.Error("too many pending deliveries, dropping event", "mailbox", target.Name(), "event", fmt.Sprintf("%T", ev))
			if client := clientOf(ev); client != nil {
				client.Close()
			}
			return
		}
	}

	slog.Debug("mailbox full, delivering asynchronously", "mailbox", target.Name(), "event", fmt.Sprintf("%T", ev))
	g.spawn(func() {
		if g.overflow != nil {
			defer func() { <-g.overflow }()
		}
		if err := target.Post(g.ctx, ev); err != nil {
			slog.Debug("asynchronous delivery abandoned", "mailbox", target.Name(), "err", err)
		}
	})
}

func clientOf(ev protocol.Event) *protocol.ClientMailbox {
	switch ev := ev.(type) {
	case protocol.ClientAttach:
		return ev.Client
	case protocol.Join:
		return ev.Client
	case protocol.Admit:
		return ev.Client
	case protocol.Message:
		return ev.Client
	}
	return nil
}

// answer replies to a request without blocking the actor. A reply channel with no
// free buffer means the caller gave up or never listened.
func answer[T any](logger *slog.Logger, ch chan<- T, v T) {
	if ch == nil {
		logger.Warn("ignoring request without a reply channel")
		return
	}
	select {
	case ch <- v:
	default:
		logger.Warn("reply dropped, reply channel not ready")
	}
}

// ask posts a request built around a reply channel and waits for the answer.
func ask[T any](ctx, stop context.Context, target *protocol.Mailbox, build func(chan<- T) protocol.Event) (T, error) {
	var zero T
	if stop.Err() != nil {
		return zero, ErrHubStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unlink := context.AfterFunc(stop, cancel)
	defer unlink()

	reply := make(chan T, 1)
	if err := target.Post(ctx, build(reply)); err != nil {
		if stop.Err() != nil {
			return zero, ErrHubStopped
		}
		return zero, err
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		if stop.Err() != nil {
			return zero, ErrHubStopped
		}
		return zero, ctx.Err()
	}
}
