package terminal

import (
	"io"
	"sync"
)

// SyncWriter serialises writes to the terminal.  Every party that
// draws on the console (line editors, session renderers, the selector)
// writes through the same one so escape sequences never interleave.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// Sync returns w itself when it is already a *SyncWriter and a new
// one wrapping w otherwise.
func Sync(w io.Writer) *SyncWriter {
	if sw, ok := w.(*SyncWriter); ok {
		return sw
	}
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// WriteString writes str and drops the error; terminal writes that
// fail have nowhere to be reported.
func (s *SyncWriter) WriteString(str string) {
	_, _ = s.Write([]byte(str))
}
