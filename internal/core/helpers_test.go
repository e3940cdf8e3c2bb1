package core

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"shellcatch/internal/metrics"
	"shellcatch/internal/terminal"
	"shellcatch/util"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testEnv returns an Env over a piped console and the pipe's writer.
func testEnv(t *testing.T) (Env, *io.PipeWriter, *syncBuffer) {
	t.Helper()
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	out := &syncBuffer{}
	return Env{
		Console: terminal.NewConsole(pr, -1, out),
		Logger:  util.NewLogger(0),
		Metrics: metrics.New(),
	}, pw, out
}

func typeKeys(t *testing.T, w io.Writer, s string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		w.Write([]byte(s)) //nolint:errcheck
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("nobody read %q", s)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runMode(ctx context.Context, m Mode) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("mode did not return")
		return nil
	}
}
