package terminal

import (
	"fmt"
	"sync"

	"golang.org/x/term"
)

// Raw is the raw-mode resource of one terminal.  Two parties drive it:
// the session output side sets the wanted mode with Activate and
// Deactivate, and readers take temporary holds while a read needs raw
// input.  The terminal is raw while it is wanted or held.
//
// When fd is not a terminal Raw only tracks state, which keeps piped
// input and tests working.
type Raw struct {
	fd     int
	cooked *term.State // nil when fd is not a terminal

	mu       sync.Mutex
	want     bool
	holds    int
	applied  bool
	onChange func(raw bool)
}

// NewRaw captures the current (cooked) state of fd.
func NewRaw(fd int) *Raw {
	r := &Raw{fd: fd}
	if term.IsTerminal(fd) {
		if st, err := term.GetState(fd); err == nil {
			r.cooked = st
		}
	}
	return r
}

// IsTerminal reports whether the resource controls a real terminal.
func (r *Raw) IsTerminal() bool { return r.cooked != nil }

// OnChange registers fn to run, under the resource lock, every time the
// physical mode flips.
func (r *Raw) OnChange(fn func(raw bool)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Activate asks for raw mode.
func (r *Raw) Activate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.want = true
	return r.apply()
}

// Deactivate asks for cooked mode.  Holds in progress keep the
// terminal raw until they are released.
func (r *Raw) Deactivate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.want = false
	return r.apply()
}

// Active reports whether raw mode is wanted.
func (r *Raw) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.want
}

// Applied reports whether the terminal is physically raw right now.
func (r *Raw) Applied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

// Hold keeps the terminal raw until the returned release is called.
// release is idempotent.
func (r *Raw) Hold() (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.holds++
	if err := r.apply(); err != nil {
		r.holds--
		return func() {}, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.holds--
			_ = r.apply()
		})
	}, nil
}

// Restore forces the terminal back to the state captured by NewRaw and
// drops every want and hold.  Call it on exit.
func (r *Raw) Restore() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.want = false
	r.holds = 0
	return r.apply()
}

// apply must be called with r.mu held.
func (r *Raw) apply() error {
	target := r.want || r.holds > 0
	if target == r.applied {
		return nil
	}
	if r.cooked != nil {
		if target {
			if _, err := term.MakeRaw(r.fd); err != nil {
				return fmt.Errorf("enable raw mode: %w", err)
			}
		} else if err := term.Restore(r.fd, r.cooked); err != nil {
			return fmt.Errorf("restore terminal: %w", err)
		}
	}
	r.applied = target
	if r.onChange != nil {
		r.onChange(target)
	}
	return nil
}
