package terminal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	ncerr "shellcatch/internal/errors"
)

// KeyKind classifies a decoded key.
type KeyKind int

const (
	KeyChar KeyKind = iota // printable rune, '\n' or '\t'
	KeyCtrl                // Ctrl + letter or digit; Rune holds it (lower case)
	KeyAlt                 // Alt + rune
	KeyEsc
	KeyBackspace
	KeyUp
	KeyDown
	KeyRight
	KeyLeft
	KeyHome
	KeyEnd
	KeyNull
	KeyOther // recognised escape sequence with no dedicated kind
)

// Key is one decoded keystroke.
type Key struct {
	Kind KeyKind
	Rune rune
}

// Ctrl returns the key for Ctrl + r (r in 'a'..'z' or '4'..'7').
func Ctrl(r rune) Key { return Key{Kind: KeyCtrl, Rune: r} }

// Char returns the key for the plain rune r.
func Char(r rune) Key { return Key{Kind: KeyChar, Rune: r} }

// DetachKey is the raw-mode detach chord.
var DetachKey = Ctrl('b')

func (k Key) String() string {
	switch k.Kind {
	case KeyChar:
		return fmt.Sprintf("%q", k.Rune)
	case KeyCtrl:
		return "Ctrl-" + strings.ToUpper(string(k.Rune))
	case KeyAlt:
		return "Alt-" + string(k.Rune)
	default:
		return fmt.Sprintf("key(%d)", k.Kind)
	}
}

// KeyReader reads one raw key at a time.  Like [LineReader] it belongs
// to a single goroutine and dispatches each read to a worker.
type KeyReader struct {
	in  *Input
	raw Holder // may be nil
}

// NewKeyReader returns a reader over in.  raw, when non-nil, is held
// while waiting for a key so the first keystroke is not line-buffered.
func NewKeyReader(in *Input, raw Holder) *KeyReader {
	return &KeyReader{in: in, raw: raw}
}

type keyResult struct {
	key Key
	raw []byte
	err error
}

// ReadKey blocks for the next key and returns it with the exact bytes
// that produced it.  A non-key event (mouse report, malformed input)
// yields an error wrapping ErrInterrupted; the end of input yields
// ErrReaderClosed.
func (r *KeyReader) ReadKey(ctx context.Context) (Key, []byte, error) {
	done := make(chan keyResult, 1)
	go func() { done <- r.read(ctx) }()
	res := <-done
	return res.key, res.raw, res.err
}

func (r *KeyReader) read(ctx context.Context) keyResult {
	if r.raw != nil {
		release, err := r.raw.Hold()
		if err != nil {
			return keyResult{err: fmt.Errorf("%w: %v", ncerr.ErrReaderClosed, err)}
		}
		defer release()
	}

	buf := make([]byte, 64)
	n, err := r.in.Read(ctx, buf)
	if err != nil {
		if ctx.Err() != nil {
			return keyResult{err: fmt.Errorf("%w: %v", ncerr.ErrInterrupted, ctx.Err())}
		}
		if err == io.EOF {
			return keyResult{err: ncerr.ErrReaderClosed}
		}
		return keyResult{err: fmt.Errorf("%w: %v", ncerr.ErrReaderClosed, err)}
	}

	chunk := buf[:n]
	key, used, ok := DecodeKey(chunk)
	r.in.unread(chunk[used:])
	raw := make([]byte, used)
	copy(raw, chunk[:used])
	if !ok {
		return keyResult{raw: raw, err: fmt.Errorf("%w: non-key input %q", ncerr.ErrInterrupted, raw)}
	}
	return keyResult{key: key, raw: raw}
}

// DecodeKey decodes the first key in b and reports how many bytes it
// used.  ok is false for input that is not a key event; used is then
// still the length of the skipped sequence.  b must not be empty.
func DecodeKey(b []byte) (key Key, used int, ok bool) {
	c := b[0]
	switch {
	case c == 0x1b:
		return decodeEscape(b)
	case c == '\n' || c == '\r':
		return Char('\n'), 1, true
	case c == '\t':
		return Char('\t'), 1, true
	case c == 0x7f:
		return Key{Kind: KeyBackspace}, 1, true
	case c == 0x00:
		return Key{Kind: KeyNull}, 1, true
	case c >= 0x01 && c <= 0x1a:
		return Ctrl(rune('a' + c - 1)), 1, true
	case c < 0x20:
		// 0x1c..0x1f: Ctrl-4 through Ctrl-7 (also Ctrl-\ ] ^ _).
		return Ctrl(rune('4' + c - 0x1c)), 1, true
	case c < utf8.RuneSelf:
		return Char(rune(c)), 1, true
	}

	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError && size <= 1 {
		return Key{}, 1, false
	}
	return Char(r), size, true
}

func decodeEscape(b []byte) (Key, int, bool) {
	if len(b) == 1 {
		return Key{Kind: KeyEsc}, 1, true
	}
	switch b[1] {
	case '[':
		return decodeCSI(b)
	case 'O':
		if len(b) < 3 {
			return Key{}, len(b), false
		}
		return ss3Key(b[2]), 3, true
	}
	r, size := utf8.DecodeRune(b[1:])
	if r == utf8.RuneError && size <= 1 {
		return Key{Kind: KeyEsc}, 1, true
	}
	return Key{Kind: KeyAlt, Rune: r}, 1 + size, true
}

// decodeCSI handles ESC [ params final.
func decodeCSI(b []byte) (Key, int, bool) {
	if len(b) >= 3 {
		// Mouse reports are events, not keys.
		switch b[2] {
		case 'M': // X10: ESC [ M Cb Cx Cy
			return Key{}, min(6, len(b)), false
		case '<': // SGR: ESC [ < params (M|m)
			for i := 3; i < len(b); i++ {
				if b[i] == 'M' || b[i] == 'm' {
					return Key{}, i + 1, false
				}
			}
			return Key{}, len(b), false
		}
	}
	end := csiEnd(b, 2)
	if end < 0 {
		return Key{}, len(b), false
	}
	switch b[end-1] {
	case 'A':
		return Key{Kind: KeyUp}, end, true
	case 'B':
		return Key{Kind: KeyDown}, end, true
	case 'C':
		return Key{Kind: KeyRight}, end, true
	case 'D':
		return Key{Kind: KeyLeft}, end, true
	case 'H':
		return Key{Kind: KeyHome}, end, true
	case 'F':
		return Key{Kind: KeyEnd}, end, true
	}
	return Key{Kind: KeyOther}, end, true
}

// csiEnd returns the index just past the final byte (0x40..0x7e) of a
// control sequence starting at from, or -1 if it is truncated.
func csiEnd(b []byte, from int) int {
	for i := from; i < len(b); i++ {
		if b[i] >= 0x40 && b[i] <= 0x7e {
			return i + 1
		}
	}
	return -1
}

func ss3Key(c byte) Key {
	switch c {
	case 'A':
		return Key{Kind: KeyUp}
	case 'B':
		return Key{Kind: KeyDown}
	case 'C':
		return Key{Kind: KeyRight}
	case 'D':
		return Key{Kind: KeyLeft}
	case 'H':
		return Key{Kind: KeyHome}
	case 'F':
		return Key{Kind: KeyEnd}
	}
	return Key{Kind: KeyOther}
}

// Lossy decodes raw key bytes as text, replacing invalid sequences with
// U+FFFD instead of failing.
func Lossy(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}
