package session

import (
	"context"
	"strings"

	"shellcatch/internal/control"
	"shellcatch/internal/terminal"
	"shellcatch/internal/watch"
)

// inputTask is the single producer of outbound content.  rawMode is
// owned here; the output task learns about it only through modeCh.
type inputTask struct {
	h          *Handle
	out        *terminal.SyncWriter
	sink       Sink
	prompt     *watch.Value[string]
	modeCh     chan<- bool
	outputDone <-chan struct{}
	sub        *control.Subscription

	rawMode bool
}

func (t *inputTask) run(ctx context.Context) {
	log := t.h.log.Named("input")

	sig, err := control.WaitFor(ctx, t.sub, control.Start, nil)
	if err != nil {
		log.Debug("exit before start: %v", err)
		return
	}
	t.rawMode = sig == control.StartRaw

	for ctx.Err() == nil {
		var err error
		if t.rawMode {
			err = t.rawStep(ctx)
		} else {
			err = t.lineStep(ctx)
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Verbose("input stopped: %v", err)
			}
			return
		}
	}
}

// lineStep reads and forwards one edited line.
func (t *inputTask) lineStep(ctx context.Context) error {
	t.notify(ctx, false)

	line, err := t.h.lines.ReadLine(ctx, t.prompt.Get())
	if err != nil {
		if isFatalRead(ctx, err) {
			return err
		}
		return nil
	}

	content := line
	if strings.TrimSpace(line) == DetachCommand {
		// The remote side sees an empty line, not the word.
		content = "\n"
		if err := t.detach(ctx); err != nil {
			return err
		}
		if t.rawMode {
			t.notify(ctx, true)
		}
	}
	return t.sink.Send(ctx, content)
}

// rawStep reads and forwards one key.
func (t *inputTask) rawStep(ctx context.Context) error {
	t.notify(ctx, true)

	key, raw, err := t.h.keys.ReadKey(ctx)
	if err != nil {
		if isFatalRead(ctx, err) {
			return err
		}
		return nil
	}

	if key == terminal.DetachKey {
		if err := t.detach(ctx); err != nil {
			return err
		}
		if !t.rawMode {
			return nil
		}
		t.notify(ctx, true)
		return t.sink.Send(ctx, "\n")
	}
	return t.sink.Send(ctx, terminal.Lossy(raw))
}

// detach clears the screen, broadcasts Quit and blocks until the
// selector hands the terminal back.  The mode to resume in comes from
// the signal that does so.  Raw-off is queued for the output task
// before Quit goes out, so no earlier raw-on can land after the pause.
func (t *inputTask) detach(ctx context.Context) error {
	t.drain()
	clearAbove(t.out)
	t.notify(ctx, false)
	if err := t.h.bus.Send(control.Quit); err != nil {
		t.h.log.Debug("quit: %v", err)
	}
	t.h.metrics.Detached()
	t.h.log.Verbose("detached")

	sig, err := control.WaitFor(ctx, t.sub, control.Start, nil)
	if err != nil {
		return err
	}
	t.rawMode = sig == control.StartRaw
	t.h.log.Verbose("resumed (%s)", sig)
	return nil
}

// drain drops signals that arrived while engaged so a stale Start
// cannot end the coming pause.
func (t *inputTask) drain() {
	for {
		select {
		case _, ok := <-t.sub.C():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// notify tells the output task which mode is current.  Once the output
// task has exited the notification is dropped.
func (t *inputTask) notify(ctx context.Context, on bool) {
	select {
	case t.modeCh <- on:
	case <-t.outputDone:
	case <-ctx.Done():
	}
}
