package util

import (
	"net"
	"strconv"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ListenAddr builds the bind address for listen mode.  An empty host
// binds every interface.
func ListenAddr(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return FormatAddr(host, port)
}

// PeerHost strips the port from a remote address for display.  Inputs
// that are not host:port are returned unchanged.
func PeerHost(addr net.Addr) string {
	if addr == nil {
		return "?"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
