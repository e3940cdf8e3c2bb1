// Package control implements the broadcast bus that starts and pauses a
// terminal's engagement with a session.
//
// Every subscriber receives every signal sent after it subscribed.
// Signals are transient: nothing is replayed to late subscribers.
package control

import (
	"context"
	"sync"

	ncerr "shellcatch/internal/errors"
)

// Signal is a named control event.
type Signal string

const (
	// Start hands the terminal to the session in line mode.
	Start Signal = "start"
	// StartRaw hands the terminal to the session in raw mode.  It
	// satisfies every wait for Start.
	StartRaw Signal = "start-raw"
	// Quit pauses the session; the connection stays open.
	Quit Signal = "quit"
)

// Matches reports whether s satisfies a wait for want.
func (s Signal) Matches(want Signal) bool {
	if want == Start {
		return s == Start || s == StartRaw
	}
	return s == want
}

// Broadcaster is the publish/subscribe surface a session handle needs.
// Each handle gets its own, so sessions never see each other's signals.
type Broadcaster interface {
	Send(sig Signal) error
	Subscribe() *Subscription
	Close()
}

// Bus is an in-process [Broadcaster].  The zero value is not usable;
// construct with [NewBus].
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewBus returns a bus whose subscriptions each buffer up to buffer
// undelivered signals.  When a slow subscriber's buffer is full the
// oldest pending signal is dropped.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a new subscriber.  Subscribing to a closed bus
// yields a subscription whose channel is already closed.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan Signal, b.buffer), bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Send delivers sig to every current subscriber without blocking.  It
// fails with ErrNoSubscribers when nobody is listening, which callers
// treat as non-fatal, and with ErrBusClosed after [Bus.Close].
func (b *Bus) Send(sig Signal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ncerr.ErrBusClosed
	}
	if len(b.subs) == 0 {
		return ncerr.ErrNoSubscribers
	}
	for s := range b.subs {
		select {
		case s.ch <- sig:
			continue
		default:
		}
		// Full: drop the oldest pending signal and retry once.  Only
		// Send writes to s.ch and it holds b.mu, so the retry fits.
		select {
		case <-s.ch:
		default:
		}
		s.ch <- sig
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription.  Waiters observe ErrBusClosed.
// Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Subscription is one subscriber's view of a [Bus].
type Subscription struct {
	ch  chan Signal
	bus *Bus
}

// C returns the delivery channel.  It is closed when the bus closes or
// the subscription is cancelled.
func (s *Subscription) C() <-chan Signal { return s.ch }

// Close unsubscribes.  It is safe to call more than once and after the
// bus has closed.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// RawState is a terminal whose raw mode must be off whenever the
// session is paused.
type RawState interface {
	Active() bool
	Deactivate() error
}

// WaitFor blocks until a signal matching want arrives on sub and
// returns it.  When raw is non-nil, any Quit received while raw is
// active deactivates it first, so a pause always leaves the terminal
// cooked no matter which task saw it.
//
// A closed bus yields ErrBusClosed; a cancelled ctx yields ctx.Err().
func WaitFor(ctx context.Context, sub *Subscription, want Signal, raw RawState) (Signal, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case sig, ok := <-sub.C():
			if !ok {
				return "", ncerr.ErrBusClosed
			}
			if sig == Quit {
				CookOnQuit(raw)
			}
			if sig.Matches(want) {
				return sig, nil
			}
		}
	}
}

// CookOnQuit deactivates raw if it is non-nil and active.  Tasks that
// read the subscription channel directly call it on Quit.
func CookOnQuit(raw RawState) {
	if raw == nil || !raw.Active() {
		return
	}
	_ = raw.Deactivate()
}
