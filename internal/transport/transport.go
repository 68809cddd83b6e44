// Package transport provides abstractions for network connection
// establishment.  Transports handle the "how" of reaching a tunnel's
// destination service, independent of the session lifecycle layered
// on top (which is the tunnel package's job).
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  The tunnel session uses
// one to reach the resolved destination service on the device-local
// network.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer.
	// Stateless dialers return nil.
	Close() error
}
