package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	ncerr "shellcatch/internal/errors"
	"shellcatch/internal/retry"
	"shellcatch/internal/shell"
	"shellcatch/internal/transport"
	"shellcatch/util"
)

// ListenMode catches reverse shells.  Every accepted connection becomes
// a session in the registry while the selector owns the terminal.  The
// mode ends when the user quits the selector or ctx is done.
type ListenMode struct {
	Listener transport.Listener
	Network  string // "tcp" when empty
	Address  string
	Registry *shell.Registry
	Selector *shell.Selector
	Closer   io.Closer // released after the listener; may be nil
	Grace    time.Duration
	Logger   *util.Logger

	// Ready, when set, receives the bound address once listening.
	Ready func(addr net.Addr)
}

// Run listens, accepts and hands the terminal to the selector.
func (m *ListenMode) Run(ctx context.Context) error {
	if m.Closer != nil {
		defer m.Closer.Close()
	}
	network := m.Network
	if network == "" {
		network = "tcp"
	}

	ln, err := m.Listener.Listen(ctx, network, m.Address)
	if err != nil {
		return ncerr.Wrap("listen", m.Address, err)
	}
	m.Logger.Info("listening on %s", ln.Addr())
	if m.Ready != nil {
		m.Ready(ln.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		return nil
	})
	g.Go(func() error { return m.accept(gctx, ln) })
	g.Go(func() error {
		m.Selector.Run(gctx)
		return errSelectorExited
	})

	err = g.Wait()
	m.Registry.CloseAll(grace(m.Grace))
	if errors.Is(err, errSelectorExited) {
		return nil
	}
	return err
}

// Delays between accept attempts that fail with a temporary error
// (descriptor exhaustion and the like).  The delay starts over after
// every accepted connection.
const (
	acceptDelayMin = 5 * time.Millisecond
	acceptDelayMax = time.Second
)

func (m *ListenMode) accept(ctx context.Context, ln net.Listener) error {
	b := &retry.Backoff{
		InitialDelay: acceptDelayMin,
		MaxDelay:     acceptDelayMax,
		Retryable:    ncerr.IsRetryable,
		OnRetry: func(_ int, err error, wait time.Duration) {
			m.Logger.Warn("accept: %v (retrying in %v)", err, wait)
		},
	}
	for {
		var conn net.Conn
		err := b.Do(ctx, func(int) error {
			c, err := ln.Accept()
			conn = c
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return ncerr.Wrap("accept", ln.Addr().String(), err)
		}
		m.Logger.Verbose("connection from %s", conn.RemoteAddr())
		m.Registry.Add(ctx, conn)
	}
}

// String describes the mode for --dry-run.
func (m *ListenMode) String() string {
	return fmt.Sprintf("listen on %s", m.Address)
}
