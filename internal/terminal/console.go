package terminal

import "io"

// Console bundles the local terminal: one input pump, one raw-mode
// resource and one key reader, shared by the selector and every
// session.  Each party that edits lines gets its own [LineReader] so
// histories stay separate.
type Console struct {
	In   *Input
	Out  *SyncWriter
	Raw  *Raw
	Keys *KeyReader
}

// NewConsole wraps in (whose descriptor is fd) and out.  All writes to
// the console go through Out.
func NewConsole(in io.Reader, fd int, out io.Writer) *Console {
	input := NewInput(in)
	raw := NewRaw(fd)
	return &Console{
		In:   input,
		Out:  Sync(out),
		Raw:  raw,
		Keys: NewKeyReader(input, raw),
	}
}

// LineReader returns a new line editor with its own history.
func (c *Console) LineReader() *LineReader {
	return NewLineReader(c.In, c.Out, c.Raw)
}

// Restore returns the terminal to cooked mode.
func (c *Console) Restore() error { return c.Raw.Restore() }
