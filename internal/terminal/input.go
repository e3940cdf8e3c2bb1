// Package terminal holds the pieces of the local terminal a session
// handle drives: line editing, raw key reads, and the raw-mode switch.
package terminal

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Input is the single reader of the local terminal.  Line and key
// readers share one Input so bytes left over by one mode are seen by
// the other, and a cancelled read never leaves a goroutine behind that
// could swallow the next keystroke.
//
// The pump goroutine starts on the first read, so code that needs the
// file descriptor directly (password prompts) can run before that.
type Input struct {
	src    io.Reader
	once   sync.Once
	chunks chan []byte
	err    error // set before chunks is closed
	ended  atomic.Bool

	mu      sync.Mutex
	pending []byte
}

// NewInput wraps src, typically os.Stdin.
func NewInput(src io.Reader) *Input {
	return &Input{src: src, chunks: make(chan []byte)}
}

func (in *Input) pump() {
	buf := make([]byte, 256)
	for {
		n, err := in.src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			in.chunks <- chunk
		}
		if err != nil {
			in.err = err
			in.ended.Store(true)
			close(in.chunks)
			return
		}
	}
}

// Ended reports whether the source has returned its final error.
func (in *Input) Ended() bool { return in.ended.Load() }

// Read fills p with the next available bytes, blocking until some
// arrive, the source fails, or ctx is done.
func (in *Input) Read(ctx context.Context, p []byte) (int, error) {
	in.once.Do(func() { go in.pump() })

	in.mu.Lock()
	if len(in.pending) > 0 {
		n := copy(p, in.pending)
		in.pending = in.pending[n:]
		in.mu.Unlock()
		return n, nil
	}
	in.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case chunk, ok := <-in.chunks:
		if !ok {
			return 0, in.err
		}
		n := copy(p, chunk)
		if n < len(chunk) {
			in.unread(chunk[n:])
		}
		return n, nil
	}
}

// unread pushes b back in front of anything still pending.
func (in *Input) unread(b []byte) {
	if len(b) == 0 {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	joined := make([]byte, 0, len(b)+len(in.pending))
	joined = append(joined, b...)
	in.pending = append(joined, in.pending...)
}

// boundReader adapts Input to io.Reader for a consumer that cannot pass
// a context per call.  ctx is swapped before each use.  A read stops
// after Ctrl-C or Ctrl-D so whatever follows stays in Input for the
// next reader.
type boundReader struct {
	in  *Input
	mu  sync.Mutex
	ctx context.Context
}

func (b *boundReader) bind(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
}

func (b *boundReader) Read(p []byte) (int, error) {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	n, err := b.in.Read(ctx, p)
	if i := bytes.IndexAny(p[:n], "\x03\x04"); i >= 0 && i < n-1 {
		b.in.unread(p[i+1 : n])
		n = i + 1
	}
	return n, err
}
