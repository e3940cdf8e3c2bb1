package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	ncerr "shellcatch/internal/errors"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := ExecuteWith(context.Background(), args, Streams{
		In:     strings.NewReader(""),
		Fd:     -1,
		Out:    &out,
		ErrOut: &errOut,
	})
	return out.String(), errOut.String(), err
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	out, _, err := run(t, "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "shellcatch ") {
		t.Errorf("version output = %q", out)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			_, usage, err := run(t, args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(usage, "--attach") {
				t.Errorf("usage should list flags: %q", usage)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and prints the mode.
func TestExecute_DryRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"listen default", []string{"-l", "--dry-run"}, "listen on 0.0.0.0:4444"},
		{"listen port", []string{"-l", "-p", "9001", "--dry-run"}, "listen on 0.0.0.0:9001"},
		{"listen bind", []string{"-l", "127.0.0.1", "8080", "--dry-run"}, "listen on 127.0.0.1:8080"},
		{"connect", []string{"-r", "2", "10.0.0.7", "--dry-run"}, "connect to 10.0.0.7:4444 (2 retries)"},
		{"connect port", []string{"10.0.0.7", "31337", "--dry-run"}, "connect to 10.0.0.7:31337"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"connect without host", []string{"--dry-run", "-v"}, "host"},
		{"port out of range", []string{"-l", "-p", "70000", "--dry-run"}, "port"},
		{"negative retries", []string{"-r", "-1", "host", "--dry-run"}, "retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			var ce *ncerr.ConfigError
			if !ncerr.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

// TestExecute_InvalidArgs verifies malformed input produces an error.
func TestExecute_InvalidArgs(t *testing.T) {
	for _, args := range [][]string{
		{"--nonexistent-flag"},
		{"host", "notaport", "--dry-run"},
		{"a", "b", "c", "--dry-run"},
		{"-T", "user@host:99999", "-l", "--dry-run"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if _, _, err := run(t, args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

// TestExecute_EnvOverlay verifies environment defaults sit under flags.
func TestExecute_EnvOverlay(t *testing.T) {
	t.Setenv("SHELLCATCH_LISTEN", "1")
	t.Setenv("SHELLCATCH_PORT", "5555")

	out, _, err := run(t, "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "listen on 0.0.0.0:5555") {
		t.Errorf("env not applied: %q", out)
	}

	out, _, err = run(t, "-p", "6666", "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, ":6666") {
		t.Errorf("flag should win over env: %q", out)
	}
}
