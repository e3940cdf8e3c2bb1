// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"shellcatch/config"
	"shellcatch/internal/core"
	"shellcatch/internal/metrics"
	"shellcatch/internal/terminal"
	"shellcatch/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X shellcatch/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Streams are the process's terminal streams.  Fd is the descriptor
// behind In, or -1 when In is not a terminal.
type Streams struct {
	In     io.Reader
	Fd     int
	Out    io.Writer
	ErrOut io.Writer
}

// Execute parses args and runs the selected mode on the process's own
// terminal.
func Execute(ctx context.Context, args []string) error {
	return ExecuteWith(ctx, args, Streams{
		In:     os.Stdin,
		Fd:     int(os.Stdin.Fd()),
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})
}

// ExecuteWith is [Execute] over explicit streams.
func ExecuteWith(ctx context.Context, args []string, st Streams) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("shellcatch", flag.ContinueOnError)
	fs.SetOutput(st.ErrOut)

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Catch reverse shells (listen mode)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on or dial")
	timeoutSec := fs.IntP("timeout", "w", int(cfg.Timeout/time.Second), "Dial timeout in seconds")
	fs.IntVarP(&cfg.ConnectRetries, "retries", "r", cfg.ConnectRetries, "Extra dial attempts for bind shells")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Go through an SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── sessions ─────────────────────────────────────────────────
	fs.BoolVar(&cfg.StartRaw, "raw", cfg.StartRaw, "Attach sessions in raw mode (Ctrl-B detaches)")
	fs.BoolVar(&cfg.AutoAttach, "attach", cfg.AutoAttach, "Attach the first session as soon as it arrives")

	// ── output ───────────────────────────────────────────────────
	verbosity := fs.CountP("verbose", "v", "Increase verbosity (repeatable)")
	quiet := fs.BoolP("quiet", "q", false, "Only print errors")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and print the mode")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(st.ErrOut, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(st.ErrOut, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(st.Out, "shellcatch %s\n", version)
		return nil
	}

	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	}
	cfg.Verbose += *verbosity
	if *quiet {
		cfg.Verbose = 0
	}

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(st.ErrOut)

	console := terminal.NewConsole(st.In, st.Fd, st.Out)
	console.Raw.OnChange(logger.SetRaw)

	stats := metrics.New()
	mode, err := core.Build(cfg, core.Env{
		Console: console,
		Logger:  logger,
		Metrics: stats,
	})
	if err != nil {
		return err
	}

	if dryRun {
		if s, ok := mode.(fmt.Stringer); ok {
			fmt.Fprintf(st.Out, "%s\n", s)
		}
		return nil
	}

	defer func() {
		if err := console.Restore(); err != nil {
			logger.Warn("restore terminal: %v", err)
		}
	}()

	err = mode.Run(ctx)
	logger.Verbose("stats: %s", stats.JSON())
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional accepts "[host] [port]".  In listen mode the host is
// the bind address; otherwise it is the bind shell to dial.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		return nil
	case 1, 2:
		cfg.Host = remaining[0]
		if len(remaining) == 2 {
			port, err := strconv.Atoi(remaining[1])
			if err != nil {
				return fmt.Errorf("port %q: not a number", remaining[1])
			}
			cfg.Port = port
		}
		return nil
	default:
		return fmt.Errorf("too many arguments (expected [host] [port])")
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `shellcatch - reverse and bind shell handler v%s

Catches shells on a socket and lets you switch between them.  Inside
a session type "back" (line mode) or press Ctrl-B (raw mode) to
return to the selector.

Usage:
  shellcatch -l [-p port] [bind-address]      Catch reverse shells
  shellcatch [options] <host> [port]          Dial a bind shell
  shellcatch -l -T user@gateway -p 4444       Catch on an SSH gateway

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  shellcatch -l                               Listen on 0.0.0.0:4444
  shellcatch -l --attach --raw -p 9001        Attach the first shell raw
  shellcatch -r 5 10.0.0.7 4444               Dial, retrying 5 times
`)
}
