// Package shell is the session selector: it keeps every caught shell
// in a [Registry] and lets the user pick which one owns the terminal.
package shell

import (
	"context"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"shellcatch/config"
	"shellcatch/internal/control"
	ncerr "shellcatch/internal/errors"
	"shellcatch/internal/metrics"
	"shellcatch/internal/session"
	"shellcatch/internal/terminal"
	"shellcatch/internal/transport"
	"shellcatch/util"
)

// State is where a session stands with respect to the terminal.
type State int32

const (
	StateDetached State = iota
	StateAttached
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttached:
		return "attached"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Entry is one registered session.
type Entry struct {
	Num      int
	Remote   string
	Created  time.Time
	Handle   *session.Handle
	Channels *transport.Channels

	state atomic.Int32
}

// ID returns the session's UUID.
func (e *Entry) ID() string { return e.Handle.ID() }

// State returns the current state.
func (e *Entry) State() State { return State(e.state.Load()) }

func (e *Entry) setState(s State) { e.state.Store(int32(s)) }

// Closed is done once the connection has been torn down.
func (e *Entry) Closed() <-chan struct{} { return e.Channels.Done() }

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Console *terminal.Console
	Config  *config.Config // buffer sizes; nil means defaults
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Registry numbers sessions and owns their lifecycles.
type Registry struct {
	console *terminal.Console
	cfg     *config.Config
	log     *util.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	next    int
	entries map[int]*Entry

	arrivals chan *Entry
}

// NewRegistry returns an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	return &Registry{
		console:  opts.Console,
		cfg:      opts.Config,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		next:     1,
		entries:  make(map[int]*Entry),
		arrivals: make(chan *Entry, 16),
	}
}

// Add wraps conn in a session bound to the console and registers it.
// The session lives until ctx is done, the peer hangs up, or it is
// killed.
func (r *Registry) Add(ctx context.Context, conn net.Conn) *Entry {
	ch := transport.Start(ctx, conn, transport.Options{
		SendBuffer: r.cfg.SendBuffer,
		Logger:     r.log,
		Metrics:    r.metrics,
	})
	h := session.New(ch.Context(), ch.Cancel, session.Options{
		Lines:      r.console.LineReader(),
		Keys:       r.console.Keys,
		Bus:        control.NewBus(r.cfg.BusBuffer),
		ModeBuffer: r.cfg.ModeBuffer,
		Logger:     r.log,
		Metrics:    r.metrics,
	})
	h.Listen(r.console.Out, ch.Output.Watch(), ch, r.console.Raw)

	e := &Entry{
		Remote:   conn.RemoteAddr().String(),
		Created:  time.Now(),
		Handle:   h,
		Channels: ch,
	}

	r.mu.Lock()
	e.Num = r.next
	r.next++
	r.entries[e.Num] = e
	r.mu.Unlock()

	r.metrics.SessionOpened()
	r.log.Info("session %d opened from %s", e.Num, e.Remote)

	go r.reap(e)

	select {
	case r.arrivals <- e:
	default:
	}
	return e
}

func (r *Registry) reap(e *Entry) {
	<-e.Channels.Done()
	<-e.Handle.Done()

	e.setState(StateClosed)
	r.mu.Lock()
	delete(r.entries, e.Num)
	r.mu.Unlock()

	r.metrics.SessionClosed()
	if err := e.Channels.Err(); err != nil {
		r.log.Info("session %d closed: %v", e.Num, err)
	} else {
		r.log.Info("session %d closed", e.Num)
	}
}

// Arrivals delivers newly added sessions.  Sessions added while nobody
// is receiving may be dropped from this channel; they stay registered.
func (r *Registry) Arrivals() <-chan *Entry { return r.arrivals }

// Get returns session n.
func (r *Registry) Get(n int) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[n]
	if !ok {
		return nil, ncerr.ErrSessionNotFound
	}
	return e, nil
}

// List returns live sessions ordered by number.
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Kill tears down session n.
func (r *Registry) Kill(n int) error {
	e, err := r.Get(n)
	if err != nil {
		return err
	}
	e.Handle.Kill()
	return nil
}

// CloseAll kills every session and waits for them to finish or for
// grace to pass.
func (r *Registry) CloseAll(grace time.Duration) {
	entries := r.List()
	for _, e := range entries {
		e.Handle.Kill()
	}
	deadline := time.After(grace)
	for _, e := range entries {
		select {
		case <-e.Handle.Done():
		case <-deadline:
			r.log.Warn("sessions still closing after %v", grace)
			return
		}
	}
}
