package config

import (
	"testing"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

// ── Default ──────────────────────────────────────────────────────────

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.ModeBuffer != DefaultModeBuffer || cfg.BusBuffer != DefaultBusBuffer {
		t.Errorf("buffers = %d/%d", cfg.ModeBuffer, cfg.BusBuffer)
	}
	if cfg.UseSSHAgent {
		t.Error("agent should only be forced by --ssh-agent")
	}
	cfg.Listen = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("default listen config should validate: %v", err)
	}
}

// ── Config.Validate ──────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	valid := func(mut func(*Config)) Config {
		c := *Default()
		mut(&c)
		return c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid connect",
			cfg:     valid(func(c *Config) { c.Host = "10.0.0.5" }),
			wantErr: false,
		},
		{
			name:    "valid listen",
			cfg:     valid(func(c *Config) { c.Listen = true }),
			wantErr: false,
		},
		{
			name:    "port zero",
			cfg:     valid(func(c *Config) { c.Listen = true; c.Port = 0 }),
			wantErr: true,
		},
		{
			name:    "connect no host",
			cfg:     valid(func(c *Config) {}),
			wantErr: true,
		},
		{
			name: "listen through tunnel",
			cfg: valid(func(c *Config) {
				c.Listen = true
				c.TunnelEnabled = true
				c.TunnelHost = "gw"
			}),
			wantErr: false,
		},
		{
			name: "connect through tunnel",
			cfg: valid(func(c *Config) {
				c.Host = "10.0.0.5"
				c.TunnelEnabled = true
				c.TunnelHost = "gw"
			}),
			wantErr: false,
		},
		{
			name:    "tunnel no host",
			cfg:     valid(func(c *Config) { c.Host = "x"; c.TunnelEnabled = true }),
			wantErr: true,
		},
		{
			name:    "negative retries",
			cfg:     valid(func(c *Config) { c.Host = "x"; c.ConnectRetries = -1 }),
			wantErr: true,
		},
		{
			name:    "zero mode buffer",
			cfg:     valid(func(c *Config) { c.Listen = true; c.ModeBuffer = 0 }),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
