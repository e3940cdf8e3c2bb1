package shell

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"shellcatch/internal/control"
	ncerr "shellcatch/internal/errors"
	"shellcatch/internal/metrics"
	"shellcatch/internal/session"
	"shellcatch/util"
)

// DefaultPrompt is shown while no session owns the terminal.
const DefaultPrompt = "shellcatch> "

// Selector is the outer shell.  It reads commands while no session is
// attached and hands the terminal to a session on request.  Its reads
// never overlap a session's: while attached it only waits on the bus.
type Selector struct {
	Registry *Registry
	Lines    session.LineSource
	Out      io.Writer
	Raw      control.RawState // cooked on every detach; may be nil
	Logger   *util.Logger
	Metrics  *metrics.Collector

	StartRaw   bool // "use" attaches in raw mode
	AutoAttach bool // attach the first session that shows up
	Prompt     string
}

type readResult struct {
	line string
	err  error
}

// Run reads and executes commands until "exit", the end of input, or
// ctx is done.
func (s *Selector) Run(ctx context.Context) {
	if s.Logger == nil {
		s.Logger = util.NewLogger(0)
	}
	auto := s.AutoAttach

	for ctx.Err() == nil {
		if auto {
			if e := s.firstDetached(); e != nil {
				auto = false
				if err := s.Attach(ctx, e, s.StartRaw); err != nil {
					return
				}
				continue
			}
		}

		line, arrived, err := s.read(ctx, auto)
		if arrived != nil {
			auto = false
			if err := s.Attach(ctx, arrived, s.StartRaw); err != nil {
				return
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if ncerr.IsTransient(err) {
				s.printf("type \"exit\" to quit\n")
				continue
			}
			s.Logger.Verbose("selector input closed: %v", err)
			return
		}

		if quit := s.Exec(ctx, line); quit {
			return
		}
	}
}

// read reads one command.  With watch set, a session arriving first
// cancels the read and is returned instead.
func (s *Selector) read(ctx context.Context, watch bool) (string, *Entry, error) {
	if !watch {
		line, err := s.Lines.ReadLine(ctx, s.prompt())
		return line, nil, err
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan readResult, 1)
	go func() {
		line, err := s.Lines.ReadLine(rctx, s.prompt())
		done <- readResult{line, err}
	}()

	select {
	case r := <-done:
		return r.line, nil, r.err
	case e := <-s.Registry.Arrivals():
		cancel()
		<-done
		s.printf("\n")
		return "", e, nil
	}
}

func (s *Selector) prompt() string {
	if s.Prompt != "" {
		return s.Prompt
	}
	return DefaultPrompt
}

func (s *Selector) firstDetached() *Entry {
	for _, e := range s.Registry.List() {
		if e.State() == StateDetached {
			return e
		}
	}
	return nil
}

func (s *Selector) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.Out, format, args...)
}

// Exec runs one command line and reports whether the selector should
// stop.
func (s *Selector) Exec(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "sessions", "ls":
		s.list()
	case "use", "raw":
		e, err := s.pick(args)
		if err != nil {
			s.printf("%s: %v\n", cmd, err)
			return false
		}
		raw := cmd == "raw" || (cmd == "use" && s.StartRaw)
		if err := s.Attach(ctx, e, raw); err != nil {
			return true
		}
	case "kill":
		e, err := s.pick(args)
		if err != nil {
			s.printf("kill: %v\n", err)
			return false
		}
		e.Handle.Kill()
		s.printf("killed session %d\n", e.Num)
	case "stats":
		s.printf("%s\n", s.Metrics.JSON())
	case "help", "?":
		s.help()
	case "exit", "quit":
		return true
	default:
		s.printf("unknown command %q (try \"help\")\n", cmd)
	}
	return false
}

// pick resolves a session number argument.  With no argument and a
// single live session, that session is used.
func (s *Selector) pick(args []string) (*Entry, error) {
	if len(args) == 0 {
		list := s.Registry.List()
		if len(list) == 1 {
			return list[0], nil
		}
		return nil, fmt.Errorf("session number required (%d live)", len(list))
	}
	n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		return nil, fmt.Errorf("invalid session number %q", args[0])
	}
	e, err := s.Registry.Get(n)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", n, err)
	}
	return e, nil
}

// Attach hands the terminal to e and blocks until the session detaches
// or closes.  It returns an error only when ctx is done.
func (s *Selector) Attach(ctx context.Context, e *Entry, raw bool) error {
	sub := e.Handle.Signals().Subscribe()
	defer sub.Close()

	sig := control.Start
	mode := "line"
	if raw {
		sig = control.StartRaw
		mode = "raw"
	}
	if err := e.Handle.Signals().Send(sig); err != nil {
		s.printf("session %d is gone\n", e.Num)
		return nil
	}
	e.setState(StateAttached)

	hint := DetachHintLine
	if raw {
		hint = DetachHintRaw
	}
	s.Logger.Info("attached to session %d (%s mode, %s to detach)", e.Num, mode, hint)

	_, err := control.WaitFor(ctx, sub, control.Quit, s.Raw)
	switch {
	case err == nil:
		e.setState(StateDetached)
		s.printf("detached from session %d\n", e.Num)
		return nil
	case ncerr.Is(err, ncerr.ErrBusClosed):
		s.printf("\nsession %d closed\n", e.Num)
		return nil
	default:
		return err
	}
}

// Detach gestures as shown to the user.
const (
	DetachHintLine = `type "` + session.DetachCommand + `"`
	DetachHintRaw  = "press Ctrl-B"
)

func (s *Selector) list() {
	entries := s.Registry.List()
	if len(entries) == 0 {
		s.printf("no sessions\n")
		return
	}
	tw := tabwriter.NewWriter(s.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUM\tID\tREMOTE\tSTATE\tAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.Num, e.ID()[:8], e.Remote, e.State(), time.Since(e.Created).Truncate(time.Second))
	}
	tw.Flush()
}

func (s *Selector) help() {
	s.printf(`commands:
  sessions, ls     list live sessions
  use [n]          attach session n in line mode
  raw [n]          attach session n in raw mode
  kill [n]         close session n
  stats            print counters as JSON
  help             show this text
  exit             close every session and quit

detach from a session with %s (line mode) or %s (raw mode)
`, DetachHintLine, DetachHintRaw)
}
