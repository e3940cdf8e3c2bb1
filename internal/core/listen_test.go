package core

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"shellcatch/config"
	ncerr "shellcatch/internal/errors"
	"shellcatch/util"
)

func newListenMode(t *testing.T) (*ListenMode, *io.PipeWriter, *syncBuffer, <-chan net.Addr) {
	t.Helper()
	env, keys, out := testEnv(t)
	cfg := config.Default()
	cfg.Listen = true

	mode, err := Build(cfg, env)
	if err != nil {
		t.Fatal(err)
	}
	lm := mode.(*ListenMode)
	lm.Address = "127.0.0.1:0"
	lm.Grace = time.Second
	ready := make(chan net.Addr, 1)
	lm.Ready = func(a net.Addr) { ready <- a }
	return lm, keys, out, ready
}

func dialShell(t *testing.T, ready <-chan net.Addr) net.Conn {
	t.Helper()
	var addr net.Addr
	select {
	case addr = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never became ready")
	}
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestListenMode_CatchAttachExit(t *testing.T) {
	lm, keys, out, ready := newListenMode(t)
	errc := runMode(context.Background(), lm)

	shellConn := dialShell(t, ready)
	eventually(t, "session registered", func() bool { return lm.Registry.Len() == 1 })

	shellConn.Write([]byte("uid=0(root)\n")) //nolint:errcheck
	typeKeys(t, keys, "use 1\r")
	eventually(t, "shell output rendered", func() bool {
		return strings.Contains(out.String(), "uid=0(root)")
	})

	typeKeys(t, keys, "id\r")
	shellConn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	line, err := bufio.NewReader(shellConn).ReadString('\n')
	if err != nil || line != "id\n" {
		t.Fatalf("shell got %q, %v", line, err)
	}

	typeKeys(t, keys, "back\r")
	eventually(t, "detached", func() bool {
		return strings.Contains(out.String(), "detached from session 1")
	})
	typeKeys(t, keys, "exit\r")

	if err := waitRun(t, errc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	eventually(t, "sessions reaped", func() bool { return lm.Registry.Len() == 0 })

	// Quitting closes the caught shell.
	shellConn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	if _, err := shellConn.Read(make([]byte, 1)); err == nil {
		t.Error("shell connection should be closed after exit")
	}
}

func TestListenMode_ContextCancel(t *testing.T) {
	lm, _, _, ready := newListenMode(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := runMode(ctx, lm)

	dialShell(t, ready)
	eventually(t, "session registered", func() bool { return lm.Registry.Len() == 1 })

	cancel()
	if err := waitRun(t, errc); err != nil {
		t.Fatalf("Run after cancel: %v", err)
	}
}

func TestListenMode_BindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	lm, _, _, _ := newListenMode(t)
	lm.Address = busy.Addr().String()
	if err := lm.Run(context.Background()); err == nil {
		t.Fatal("expected an error binding a busy port")
	}
}

// flakyListener fails every Accept with a temporary error.
type flakyListener struct {
	mu    sync.Mutex
	calls int
}

func (l *flakyListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return nil, &ncerr.NetworkError{Op: "accept", Addr: "test", Err: errors.New("too many open files"), Retryable: true}
}

func (l *flakyListener) Close() error   { return nil }
func (l *flakyListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (l *flakyListener) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestListenMode_AcceptBacksOffOnTemporaryErrors(t *testing.T) {
	log := util.NewLogger(1)
	logs := &syncBuffer{}
	log.SetOutput(logs)
	lm := &ListenMode{Logger: log}
	ln := &flakyListener{}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := lm.accept(ctx, ln); err != nil {
		t.Fatalf("accept after cancel: %v", err)
	}

	// 5ms doubling: well under twenty attempts fit in 300ms.
	if n := ln.Calls(); n < 2 || n > 20 {
		t.Errorf("Accept called %d times in 300ms", n)
	}
	if !strings.Contains(logs.String(), "retrying in") {
		t.Errorf("no retry warning logged: %q", logs.String())
	}
}
