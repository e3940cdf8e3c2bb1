// Package tunnel provides an SSH gateway through which shellcatch can
// dial a bind shell or catch reverse shells on a remote port, backed by
// golang.org/x/crypto/ssh.
package tunnel

import (
	"context"
	"net"
)

// Tunnel abstracts an encrypted gateway connection.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the gateway.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Listen asks the gateway to accept connections on address and
	// forward them back through the tunnel.
	Listen(network, address string) (net.Listener, error)

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}
