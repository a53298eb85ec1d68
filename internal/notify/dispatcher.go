package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lazypower/companion/internal/persona"
)

// Publisher delivers proactive messages somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, userID string, msgs []persona.ProactiveMessage) error
}

type batch struct {
	userID string
	msgs   []persona.ProactiveMessage
}

// Dispatcher hands engine enqueue events to a Publisher on a background
// goroutine so the engine never waits on the network. When the buffer is
// full, events are dropped; the engine's own queue still holds them for
// polling clients.
type Dispatcher struct {
	pub     Publisher
	timeout time.Duration
	ch      chan batch
	done    chan struct{}
	once    sync.Once
}

// NewDispatcher starts a dispatcher with room for buffer pending batches.
func NewDispatcher(pub Publisher, buffer int, timeout time.Duration) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		pub:     pub,
		timeout: timeout,
		ch:      make(chan batch, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Hook is a persona.EnqueueHook. It never blocks.
func (d *Dispatcher) Hook(userID string, msgs []persona.ProactiveMessage) {
	cp := append([]persona.ProactiveMessage(nil), msgs...)
	select {
	case d.ch <- batch{userID: userID, msgs: cp}:
	default:
		log.Warn().Str("user_id", userID).Int("count", len(msgs)).Msg("notify buffer full, dropping proactive fan-out")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for b := range d.ch {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.pub.Publish(ctx, b.userID, b.msgs); err != nil {
			log.Error().Err(err).Str("user_id", b.userID).Msg("publish proactive messages")
		}
		cancel()
	}
}

// Close stops accepting events and waits for pending ones to publish.
// Hook must not be called after Close.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.ch) })
	<-d.done
}
