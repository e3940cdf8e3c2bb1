package util

import (
	"net"
	"testing"
)

func TestFormatAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"1.2.3.4", 22, "1.2.3.4:22"},
		{"::1", 4444, "[::1]:4444"},
		{"listener.local", 9001, "listener.local:9001"},
	}
	for _, tt := range tests {
		if got := FormatAddr(tt.host, tt.port); got != tt.want {
			t.Errorf("FormatAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestListenAddr(t *testing.T) {
	if got := ListenAddr("", 4444); got != "0.0.0.0:4444" {
		t.Errorf("got %q, want %q", got, "0.0.0.0:4444")
	}
	if got := ListenAddr("127.0.0.1", 4444); got != "127.0.0.1:4444" {
		t.Errorf("got %q, want %q", got, "127.0.0.1:4444")
	}
}

func TestPeerHost(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 51234}
	if got := PeerHost(addr); got != "10.1.2.3" {
		t.Errorf("got %q, want %q", got, "10.1.2.3")
	}
	if got := PeerHost(nil); got != "?" {
		t.Errorf("nil addr: got %q", got)
	}
	unix := &net.UnixAddr{Name: "/tmp/shell.sock", Net: "unix"}
	if got := PeerHost(unix); got != "/tmp/shell.sock" {
		t.Errorf("unix addr: got %q", got)
	}
}
