package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	ncerr "shellcatch/internal/errors"
)

// Holder keeps the terminal raw for the duration of a read.
type Holder interface {
	Hold() (release func(), err error)
}

// LineReader reads edited lines with history.  It belongs to a single
// goroutine: each ReadLine runs on a worker and the caller waits for
// its one-shot result, so at most one read is ever in flight.
type LineReader struct {
	src     *boundReader
	out     io.Writer
	editor  *term.Terminal
	raw     Holder // may be nil
	history []string
}

// historySize matches the editor's own ring.
const historySize = 100

// editorIO lets the editor's reader and writer be swapped after the
// editor is built.
type editorIO struct {
	r io.Reader
	w io.Writer
}

func (e *editorIO) Read(p []byte) (int, error)  { return e.r.Read(p) }
func (e *editorIO) Write(p []byte) (int, error) { return e.w.Write(p) }

type lineResult struct {
	line string
	err  error
}

// NewLineReader builds a reader over in that echoes and edits on out.
// raw, when non-nil, is held for the duration of every read.
func NewLineReader(in *Input, out io.Writer, raw Holder) *LineReader {
	src := &boundReader{in: in}
	rw := &editorIO{r: src, w: out}
	return &LineReader{
		src:    src,
		out:    out,
		editor: term.NewTerminal(rw, ""),
		raw:    raw,
	}
}

// ReadLine shows prompt and returns the entered line with a trailing
// "\n".  The editor records the line in its history (up/down arrows).
//
// Errors wrap ErrInterrupted when the terminal is still usable (Ctrl-C,
// Ctrl-D on an empty line, ctx done) and ErrReaderClosed when input has
// ended for good.
func (r *LineReader) ReadLine(ctx context.Context, prompt string) (string, error) {
	done := make(chan lineResult, 1)
	go func() { done <- r.read(ctx, prompt) }()
	res := <-done
	return res.line, res.err
}

func (r *LineReader) read(ctx context.Context, prompt string) lineResult {
	if r.raw != nil {
		release, err := r.raw.Hold()
		if err != nil {
			return lineResult{err: fmt.Errorf("%w: %v", ncerr.ErrReaderClosed, err)}
		}
		defer release()
	}

	r.src.bind(ctx)
	defer r.src.bind(nil)

	r.editor.SetPrompt(prompt)
	line, err := r.editor.ReadLine()
	if errors.Is(err, term.ErrPasteIndicator) {
		err = nil
	}
	if err != nil {
		err = r.classify(ctx, err)
		if ctx.Err() == nil && ncerr.Is(err, ncerr.ErrInterrupted) {
			r.reset()
		}
		return lineResult{err: err}
	}
	r.remember(line)
	return lineResult{line: line + "\n"}
}

func (r *LineReader) remember(line string) {
	if line == "" {
		return
	}
	r.history = append(r.history, line)
	if len(r.history) > historySize {
		r.history = r.history[len(r.history)-historySize:]
	}
}

// reset replaces the editor after Ctrl-C or Ctrl-D.  The old editor
// still holds the interrupt key in its buffer and would report it again
// on every later read.  History is replayed into the new editor with
// its output discarded.
func (r *LineReader) reset() {
	io.WriteString(r.out, "\r\n") //nolint:errcheck

	rw := &editorIO{w: io.Discard}
	editor := term.NewTerminal(rw, "")
	for _, line := range r.history {
		rw.r = strings.NewReader(line + "\r")
		editor.ReadLine() //nolint:errcheck
	}
	rw.r, rw.w = r.src, r.out
	r.editor = editor
}

// classify maps editor and source errors onto the two classes callers
// act on.
func (r *LineReader) classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ncerr.ErrInterrupted, ctx.Err())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ncerr.ErrInterrupted, err)
	case errors.Is(err, io.EOF) && !r.src.in.Ended():
		// The editor reports Ctrl-C and Ctrl-D as io.EOF too.
		return fmt.Errorf("%w: %v", ncerr.ErrInterrupted, err)
	default:
		return fmt.Errorf("%w: %v", ncerr.ErrReaderClosed, err)
	}
}
