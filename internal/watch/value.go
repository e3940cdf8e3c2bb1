// Package watch provides a last-value-wins slot: a single-item channel
// where a new write overwrites any unread previous value.
package watch

import (
	"sync"

	ncerr "shellcatch/internal/errors"
)

// Value holds the most recent item published to it.  Readers observe
// it through a [Receiver]; intermediate values written between two
// reads are never seen.
type Value[T any] struct {
	mu      sync.Mutex
	val     T
	version uint64
	changed chan struct{} // closed and replaced on every publish
	closed  bool
}

// New returns a slot holding initial.  The initial value counts as
// already seen by every receiver.
func New[T any](initial T) *Value[T] {
	return &Value[T]{val: initial, changed: make(chan struct{})}
}

// Publish stores x, replacing any unread value.  It fails with
// ErrSlotClosed after [Value.Close].
func (v *Value[T]) Publish(x T) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ncerr.ErrSlotClosed
	}
	v.val = x
	v.version++
	close(v.changed)
	v.changed = make(chan struct{})
	return nil
}

// Close wakes every receiver.  Values published before Close can still
// be read once.  Close is idempotent.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	close(v.changed)
}

// Get returns the current value without marking anything seen.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val
}

// Watch returns a receiver that has seen only the initial value, so a
// value published before Watch is still delivered.
func (v *Value[T]) Watch() *Receiver[T] {
	return &Receiver[T]{v: v}
}

// Receiver tracks which version of a [Value] its owner has seen.  A
// Receiver belongs to one goroutine.
type Receiver[T any] struct {
	v    *Value[T]
	seen uint64
}

// Changed returns a channel that is closed once there is an unseen
// value or the slot has been closed.
func (r *Receiver[T]) Changed() <-chan struct{} {
	v := r.v
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.version != r.seen {
		ready := make(chan struct{})
		close(ready)
		return ready
	}
	return v.changed
}

// Next returns the latest value and marks it seen.  ok is false when
// the slot is closed and holds nothing unseen.
func (r *Receiver[T]) Next() (val T, ok bool) {
	v := r.v
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed && v.version == r.seen {
		return val, false
	}
	r.seen = v.version
	return v.val, true
}

// Borrow returns the latest value and marks it seen, closed or not.
func (r *Receiver[T]) Borrow() T {
	v := r.v
	v.mu.Lock()
	defer v.mu.Unlock()

	r.seen = v.version
	return v.val
}
