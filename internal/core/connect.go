package core

import (
	"context"
	"fmt"
	"net"
	"time"

	ncerr "shellcatch/internal/errors"
	"shellcatch/internal/retry"
	"shellcatch/internal/shell"
	"shellcatch/internal/transport"
	"shellcatch/util"
)

// ConnectMode dials a bind shell, retrying refused or transient dials,
// and attaches the terminal to it.  It ends when the session closes,
// the user quits, or ctx is done.
type ConnectMode struct {
	Dialer     transport.Dialer
	Network    string // "tcp" when empty
	Address    string
	Retries    int
	MaxBackoff time.Duration
	Registry   *shell.Registry
	Selector   *shell.Selector
	Grace      time.Duration
	Logger     *util.Logger
}

// Run dials, registers the session and runs the selector.  The
// transport is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	m.Logger.Verbose("connected to %s", conn.RemoteAddr())

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e := m.Registry.Add(sctx, conn)
	go func() {
		select {
		case <-e.Closed():
			cancel()
		case <-sctx.Done():
		}
	}()

	m.Selector.AutoAttach = true
	m.Selector.Run(sctx)
	m.Registry.CloseAll(grace(m.Grace))
	return nil
}

func (m *ConnectMode) dial(ctx context.Context) (net.Conn, error) {
	network := m.Network
	if network == "" {
		network = "tcp"
	}

	b := retry.ForRetries(m.Retries, m.MaxBackoff)
	b.Retryable = ncerr.IsRetryable
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.Logger.Warn("connect attempt %d failed: %v (retrying in %v)",
			attempt, err, wait.Round(100*time.Millisecond))
	}

	m.Logger.Verbose("connecting to %s", m.Address)
	var conn net.Conn
	err := b.Do(ctx, func(int) error {
		c, err := m.Dialer.Dial(ctx, network, m.Address)
		if err != nil {
			return ncerr.Wrap("dial", m.Address, err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	return conn, nil
}

// String describes the mode for --dry-run.
func (m *ConnectMode) String() string {
	return fmt.Sprintf("connect to %s (%d retries)", m.Address, m.Retries)
}
