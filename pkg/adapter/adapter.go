package adapter

import (
	"context"
)

// Adapter exposes one listener over a network transport and is managed by
// server.Server.
//
// Lifecycle:
//  1. Creation: the adapter is built around a listener.Listener
//  2. Startup: Serve() starts accepting requests and blocks until shutdown
//  3. Shutdown: Stop() initiates graceful shutdown with a deadline
//
// Implementations must allow Stop() to be called concurrently with Serve().
type Adapter interface {
	// Serve blocks until ctx is cancelled or an unrecoverable error occurs.
	// On cancellation it stops accepting requests, lets in-flight requests
	// finish and returns nil or context.Canceled. Returning early with an
	// error stops every other adapter of the server.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. Safe to call more than once.
	Stop(ctx context.Context) error

	// Protocol names the transport, e.g. "http".
	Protocol() string

	// Name is the AE title of the listener behind the adapter.
	Name() string

	Port() int
}
