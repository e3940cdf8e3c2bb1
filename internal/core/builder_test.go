package core

import (
	"testing"

	"shellcatch/config"
	ncerr "shellcatch/internal/errors"
	"shellcatch/internal/transport"
)

func TestBuild_Listen(t *testing.T) {
	env, _, _ := testEnv(t)
	cfg := config.Default()
	cfg.Listen = true
	cfg.Port = 9001

	mode, err := Build(cfg, env)
	if err != nil {
		t.Fatal(err)
	}
	lm, ok := mode.(*ListenMode)
	if !ok {
		t.Fatalf("expected *ListenMode, got %T", mode)
	}
	if lm.Address != "0.0.0.0:9001" {
		t.Errorf("address = %q", lm.Address)
	}
	if _, ok := lm.Listener.(*transport.TCPDialer); !ok {
		t.Errorf("listener = %T, want *transport.TCPDialer", lm.Listener)
	}
	if lm.Closer != nil {
		t.Error("plain listen should not hold a closer")
	}
}

func TestBuild_ListenThroughTunnel(t *testing.T) {
	env, _, _ := testEnv(t)
	cfg := config.Default()
	cfg.Listen = true
	cfg.TunnelEnabled = true
	cfg.TunnelUser, cfg.TunnelHost = "ops", "bastion"

	mode, err := Build(cfg, env)
	if err != nil {
		t.Fatal(err)
	}
	lm := mode.(*ListenMode)
	if _, ok := lm.Listener.(*transport.SSHDialer); !ok {
		t.Errorf("listener = %T, want *transport.SSHDialer", lm.Listener)
	}
	if lm.Closer == nil {
		t.Error("tunnel listener must be closed after Run")
	}
}

func TestBuild_Connect(t *testing.T) {
	env, _, _ := testEnv(t)
	cfg := config.Default()
	cfg.Host = "10.0.0.5"
	cfg.ConnectRetries = 7

	mode, err := Build(cfg, env)
	if err != nil {
		t.Fatal(err)
	}
	cm, ok := mode.(*ConnectMode)
	if !ok {
		t.Fatalf("expected *ConnectMode, got %T", mode)
	}
	if cm.Address != "10.0.0.5:4444" || cm.Retries != 7 {
		t.Errorf("address=%q retries=%d", cm.Address, cm.Retries)
	}
	if _, ok := cm.Dialer.(*transport.TCPDialer); !ok {
		t.Errorf("dialer = %T", cm.Dialer)
	}
}

func TestBuild_StartRawReachesSelector(t *testing.T) {
	env, _, _ := testEnv(t)
	cfg := config.Default()
	cfg.Listen = true
	cfg.StartRaw = true
	cfg.AutoAttach = true

	mode, err := Build(cfg, env)
	if err != nil {
		t.Fatal(err)
	}
	sel := mode.(*ListenMode).Selector
	if !sel.StartRaw || !sel.AutoAttach {
		t.Errorf("selector = raw:%v auto:%v", sel.StartRaw, sel.AutoAttach)
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	env, _, _ := testEnv(t)
	cfg := config.Default() // connect mode without a host

	_, err := Build(cfg, env)
	var ce *ncerr.ConfigError
	if !ncerr.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if ce.Field != "host" {
		t.Errorf("field = %q", ce.Field)
	}
}
