// Package config defines the runtime configuration for shellcatch and
// provides helpers for parsing tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ncerr "shellcatch/internal/errors"
)

// Config holds every tuneable for a shellcatch run.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host           string // listen: bind address; connect: target host
	Port           int
	Listen         bool
	Timeout        time.Duration
	ConnectRetries int

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Sessions ─────────────────────────────────────────────────────
	StartRaw   bool // attach sessions in raw mode
	AutoAttach bool // attach the first session as soon as it arrives
	BusBuffer  int
	ModeBuffer int
	SendBuffer int

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Port:           DefaultPort,
		Timeout:        DefaultConnTimeout,
		ConnectRetries: DefaultConnectRetries,
		TunnelPort:     DefaultSSHPort,
		BusBuffer:      DefaultBusBuffer,
		ModeBuffer:     DefaultModeBuffer,
		SendBuffer:     DefaultSendBuffer,
		Verbose:        1,
	}
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures are *errors.ConfigError values carrying a hint.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   strconv.Itoa(c.Port),
			Message: "port out of range 1-65535",
			Hint:    "pass -p <port>",
		}
	}

	if !c.Listen && c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "connect mode requires a target host",
			Hint:    "use -l to catch incoming shells, or give a host to dial a bind shell",
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "tunnel host is required",
			Hint:    "expected -T [user@]host[:port]",
		}
	}

	if c.ConnectRetries < 0 {
		return &ncerr.ConfigError{
			Field:   "retries",
			Value:   strconv.Itoa(c.ConnectRetries),
			Message: "retry count cannot be negative",
		}
	}

	if c.BusBuffer < 1 || c.ModeBuffer < 1 || c.SendBuffer < 1 {
		return &ncerr.ConfigError{
			Field:   "buffers",
			Message: "channel capacities must be at least 1",
			Hint:    "unset SHELLCATCH_*_BUFFER to use the defaults",
		}
	}

	return nil
}
