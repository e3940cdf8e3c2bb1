// Package transport moves bytes between a shell socket and a session.
// Dialers and listeners handle how a connection is obtained (plain TCP
// or through an SSH gateway); [Start] turns a connection into the
// channels a session handle consumes.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections, for bind shells.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// Listener opens a listening socket, for reverse shells.
type Listener interface {
	Listen(ctx context.Context, network, address string) (net.Listener, error)
}
