package core

import (
	"time"

	"shellcatch/config"
	"shellcatch/internal/metrics"
	"shellcatch/internal/shell"
	"shellcatch/internal/terminal"
	"shellcatch/internal/transport"
	"shellcatch/tunnel"
	"shellcatch/util"
)

// Env is what a mode needs besides its Config: the local terminal and
// the shared logger and counters.
type Env struct {
	Console *terminal.Console
	Logger  *util.Logger
	Metrics *metrics.Collector

	// ReadSecret reads SSH passwords and passphrases; nil reads from
	// the controlling terminal.
	ReadSecret func(prompt string) ([]byte, error)
}

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, env Env) (Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if env.Logger == nil {
		env.Logger = util.NewLogger(cfg.Verbose)
	}

	reg := shell.NewRegistry(shell.RegistryOptions{
		Console: env.Console,
		Config:  cfg,
		Logger:  env.Logger,
		Metrics: env.Metrics,
	})
	sel := &shell.Selector{
		Registry:   reg,
		Lines:      env.Console.LineReader(),
		Out:        env.Console.Out,
		Raw:        env.Console.Raw,
		Logger:     env.Logger,
		Metrics:    env.Metrics,
		StartRaw:   cfg.StartRaw,
		AutoAttach: cfg.AutoAttach,
	}

	if cfg.Listen {
		return buildListen(cfg, env, reg, sel), nil
	}
	return buildConnect(cfg, env, reg, sel), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildListen(cfg *config.Config, env Env, reg *shell.Registry, sel *shell.Selector) *ListenMode {
	host := cfg.Host
	if host == "" {
		host = config.DefaultListenAddress
	}
	m := &ListenMode{
		Address:  util.ListenAddr(host, cfg.Port),
		Registry: reg,
		Selector: sel,
		Grace:    config.DefaultGracePeriod,
		Logger:   env.Logger,
	}
	if cfg.TunnelEnabled {
		d := buildSSHDialer(cfg, env)
		m.Listener = d
		m.Closer = d
	} else {
		m.Listener = &transport.TCPDialer{Timeout: cfg.Timeout}
	}
	return m
}

func buildConnect(cfg *config.Config, env Env, reg *shell.Registry, sel *shell.Selector) *ConnectMode {
	return &ConnectMode{
		Dialer:     buildDialer(cfg, env),
		Address:    util.FormatAddr(cfg.Host, cfg.Port),
		Retries:    cfg.ConnectRetries,
		MaxBackoff: config.DefaultMaxRetryBackoff,
		Registry:   reg,
		Selector:   sel,
		Grace:      config.DefaultGracePeriod,
		Logger:     env.Logger,
	}
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, env Env) transport.Dialer {
	if cfg.TunnelEnabled {
		return buildSSHDialer(cfg, env)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}

func buildSSHDialer(cfg *config.Config, env Env) *transport.SSHDialer {
	log := env.Logger
	return transport.NewSSHDialer(&tunnel.SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   cfg.Timeout,
		KeepAlive:     time.Duration(config.DefaultKeepAliveInterval) * time.Second,
		ReadSecret:    env.ReadSecret,
		OnLost: func(err error) {
			log.Warn("SSH gateway connection lost: %v", err)
		},
	}, log)
}
