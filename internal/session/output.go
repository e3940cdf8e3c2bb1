package session

import (
	"context"

	"shellcatch/internal/control"
	"shellcatch/internal/terminal"
	"shellcatch/internal/watch"
	"shellcatch/util"
)

// outputTask renders socket output while the session is engaged.
type outputTask struct {
	h      *Handle
	out    *terminal.SyncWriter
	output *watch.Receiver[string]
	prompt *watch.Value[string]
	modeCh <-chan bool
	raw    RawTerminal
	sub    *control.Subscription

	rawMode bool // as last notified by the input task
}

// run renders while engaged.  Raw mode follows modeCh alone, in the
// order the input task queued it; bus signals only start and stop
// rendering.  The input task queues raw-off before it sends Quit.
func (t *outputTask) run(ctx context.Context) {
	log := t.h.log.Named("output")
	defer control.CookOnQuit(t.raw)

	modeCh := t.modeCh
	active := false

	for {
		var changed <-chan struct{}
		if active && t.output != nil {
			changed = t.output.Changed()
		}

		select {
		case <-ctx.Done():
			log.Debug("exit: %v", ctx.Err())
			return

		case <-changed:
			s, ok := t.output.Next()
			if !ok {
				// Slot closed: the transport is gone and ctx follows.
				t.output = nil
				continue
			}
			t.render(s)

		case sig, ok := <-t.sub.C():
			if !ok {
				log.Debug("exit: bus closed")
				return
			}
			switch {
			case sig.Matches(control.Start) && !active:
				active = true
				log.Debug("engaged")
			case sig == control.Quit && active:
				active = false
				log.Debug("paused")
			}

		case on, ok := <-modeCh:
			if !ok {
				log.Warn("mode notifications closed; raw mode no longer tracked")
				modeCh = nil
				continue
			}
			t.switchRaw(log, on)
		}
	}
}

func (t *outputTask) switchRaw(log *util.Logger, on bool) {
	t.rawMode = on
	var err error
	if on {
		err = t.raw.Activate()
	} else {
		err = t.raw.Deactivate()
	}
	if err != nil {
		log.Warn("raw mode switch failed: %v", err)
	}
}

func (t *outputTask) render(s string) {
	// The prompt is published before the text is drawn, so whatever
	// is on screen is already what the next line read will show.
	// Publish fails only once the input task is gone.
	_ = t.prompt.Publish(nextPrompt(s))
	if t.rawMode {
		t.out.WriteString(s)
	} else {
		t.out.WriteString(cooked(s))
	}
}
