package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the SHELLCATCH_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

const envPrefix = "SHELLCATCH_"

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := env("HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("PORT"); v > 0 {
		cfg.Port = v
	}
	if envBool("LISTEN") {
		cfg.Listen = true
	}
	if v := envInt("TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v, ok := envIntSet("RETRIES"); ok {
		cfg.ConnectRetries = v
	}

	// SSH tunnel
	if v := env("TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := env("SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Sessions
	if envBool("RAW") {
		cfg.StartRaw = true
	}
	if envBool("ATTACH") {
		cfg.AutoAttach = true
	}
	if v := envInt("BUS_BUFFER"); v > 0 {
		cfg.BusBuffer = v
	}
	if v := envInt("MODE_BUFFER"); v > 0 {
		cfg.ModeBuffer = v
	}
	if v := envInt("SEND_BUFFER"); v > 0 {
		cfg.SendBuffer = v
	}

	// Output
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return os.Getenv(envPrefix + key)
}

func envInt(key string) int {
	n, _ := envIntSet(key)
	return n
}

// envIntSet reports whether key holds a valid integer, so zero can be
// told apart from unset.
func envIntSet(key string) (int, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
