// Package session implements the handle that binds the local terminal
// to one live connection.
//
// A Handle runs two tasks.  The output task renders the latest socket
// output and keeps the physical raw mode in step with the input task.
// The input task reads either an edited line or a single raw key,
// forwards it to the socket, and turns the detach gesture ("back" or
// Ctrl-B) into a quit signal on the handle's control bus.  The tasks
// share nothing but the bus, the prompt slot and the mode queue.
package session

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"shellcatch/config"
	"shellcatch/internal/control"
	ncerr "shellcatch/internal/errors"
	"shellcatch/internal/metrics"
	"shellcatch/internal/terminal"
	"shellcatch/internal/watch"
	"shellcatch/util"
)

// DetachCommand is the line-mode detach gesture.
const DetachCommand = "back"

// LineSource reads one edited line.  Errors satisfying
// [ncerr.IsTransient] are retried; anything else ends input.
type LineSource interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// KeySource reads one raw key and the bytes that produced it.
type KeySource interface {
	ReadKey(ctx context.Context) (terminal.Key, []byte, error)
}

// RawTerminal is the physical raw-mode switch.
type RawTerminal interface {
	Activate() error
	Deactivate() error
	Active() bool
}

// Sink accepts text bound for the socket.  Send fails once the
// receiver is gone.
type Sink interface {
	Send(ctx context.Context, s string) error
}

// Options configures a Handle.  Zero fields take defaults.
type Options struct {
	ID         string // default: random UUID
	Lines      LineSource
	Keys       KeySource
	Bus        control.Broadcaster // default: control.NewBus(config.DefaultBusBuffer)
	ModeBuffer int                 // default: config.DefaultModeBuffer
	Logger     *util.Logger
	Metrics    *metrics.Collector
}

// Handle is one terminal-to-connection binding.
type Handle struct {
	id      string
	lines   LineSource
	keys    KeySource
	bus     control.Broadcaster
	modeBuf int
	log     *util.Logger
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	wg   sync.WaitGroup
	done chan struct{}
}

// New returns a handle sharing the cancellation pair ctx/cancel with the
// transport.  When ctx is done the handle closes its bus, which ends
// both tasks wherever they are waiting.
func New(ctx context.Context, cancel context.CancelFunc, opts Options) *Handle {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Bus == nil {
		opts.Bus = control.NewBus(config.DefaultBusBuffer)
	}
	if opts.ModeBuffer < 1 {
		opts.ModeBuffer = config.DefaultModeBuffer
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}

	h := &Handle{
		id:      opts.ID,
		lines:   opts.Lines,
		keys:    opts.Keys,
		bus:     opts.Bus,
		modeBuf: opts.ModeBuffer,
		log:     opts.Logger.Named("session " + shortID(opts.ID)),
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	context.AfterFunc(ctx, h.bus.Close)
	return h
}

// ID returns the handle's identifier.
func (h *Handle) ID() string { return h.id }

// Signals returns the handle's control bus.  A selector sends Start or
// StartRaw on it to hand over the terminal and watches for Quit.
func (h *Handle) Signals() control.Broadcaster { return h.bus }

// Context is done once the connection is torn down.
func (h *Handle) Context() context.Context { return h.ctx }

// Kill tears down the connection.
func (h *Handle) Kill() { h.cancel() }

// Done is closed once both tasks have exited.  Before Listen it never
// closes.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Listen starts the output and input tasks.  output is the socket's
// last-value-wins source, sink its queued destination, out the local
// terminal and raw its raw-mode switch.  Calls after the first are
// ignored.
func (h *Handle) Listen(out io.Writer, output *watch.Receiver[string], sink Sink, raw RawTerminal) {
	h.once.Do(func() {
		// Subscribe before spawning so a Start sent right after Listen
		// returns reaches both tasks.
		outSub := h.bus.Subscribe()
		inSub := h.bus.Subscribe()

		w := terminal.Sync(out)
		prompt := watch.New("")
		modeCh := make(chan bool, h.modeBuf)
		outputDone := make(chan struct{})

		o := &outputTask{
			h:      h,
			out:    w,
			output: output,
			prompt: prompt,
			modeCh: modeCh,
			raw:    raw,
			sub:    outSub,
		}
		in := &inputTask{
			h:          h,
			out:        w,
			sink:       sink,
			prompt:     prompt,
			modeCh:     modeCh,
			outputDone: outputDone,
			sub:        inSub,
		}

		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			defer close(outputDone)
			defer outSub.Close()
			o.run(h.ctx)
		}()
		go func() {
			defer h.wg.Done()
			defer close(modeCh)
			defer prompt.Close()
			defer inSub.Close()
			in.run(h.ctx)
		}()
		go func() {
			h.wg.Wait()
			close(h.done)
		}()
	})
}

// clearAbove wipes the screen above the cursor before handing the
// terminal back.
func clearAbove(w *terminal.SyncWriter) {
	w.WriteString(ansi.EraseScreenAbove + "\r")
}

// nextPrompt is the text after the last newline of rendered output.
func nextPrompt(s string) string {
	return s[strings.LastIndexByte(s, '\n')+1:]
}

// cooked renders s for a line-mode terminal: the current line (the old
// prompt) is erased first and bare "\n" becomes "\r\n", since the line
// editor keeps the terminal raw while it reads.
func cooked(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	return ansi.EraseEntireLine + "\r" + s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// isFatalRead reports whether a reader error ends the input task.
func isFatalRead(ctx context.Context, err error) bool {
	return ctx.Err() != nil || !ncerr.IsTransient(err)
}
