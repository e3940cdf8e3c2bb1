package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is the port a catcher listens on when none is given.
	DefaultPort = 4444

	// DefaultListenAddress binds every interface.
	DefaultListenAddress = "0.0.0.0"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultConnectRetries is how many extra dial attempts connect mode
	// makes before giving up.
	DefaultConnectRetries = 3

	// DefaultMaxRetryBackoff caps the exponential backoff between dial
	// attempts.
	DefaultMaxRetryBackoff = 10 * time.Second

	// DefaultKeepAliveInterval is the SSH keepalive interval in seconds.
	DefaultKeepAliveInterval = 30

	// DefaultBusBuffer is how many undelivered control signals each bus
	// subscriber may hold.
	DefaultBusBuffer = 16

	// DefaultModeBuffer is the capacity of the mode-change queue between
	// a session's input and output tasks.
	DefaultModeBuffer = 64

	// DefaultSendBuffer is the capacity of the queue of text waiting to
	// be written to a socket.
	DefaultSendBuffer = 128

	// DefaultGracePeriod is how long shutdown waits for sessions to
	// finish.
	DefaultGracePeriod = 5 * time.Second
)
