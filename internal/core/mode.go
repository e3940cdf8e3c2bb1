// Package core is the orchestration layer.  It composes a transport,
// the session registry and the selector into complete operational
// modes, and provides a builder that selects the right mode from a
// Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  shell  →  core  →  cmd (CLI)
package core

import (
	"context"
	"errors"
	"time"

	"shellcatch/config"
)

// Mode is a complete operational mode of shellcatch (catching reverse
// shells or dialing a bind shell).  Each mode owns its full lifecycle
// from connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// errSelectorExited stops a mode's goroutine group when the user quits.
var errSelectorExited = errors.New("selector exited")

func grace(d time.Duration) time.Duration {
	if d <= 0 {
		return config.DefaultGracePeriod
	}
	return d
}
