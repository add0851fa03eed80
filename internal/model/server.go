package model

import (
	"context"
	"net"
)

// SecurityLayer opens the listener the gRPC server accepts connections on.
// Implementations decide whether the transport is TLS or plain TCP.
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a long-running network server with graceful shutdown.
type Server interface {
	Start(securityLayer SecurityLayer) error
	// Stop drains in-flight requests until ctx is done.
	Stop(ctx context.Context) error
	Address() string
}
