// Package tunnel defines the tunnel Session capability, the parameters
// a session is built from, and the registry of live sessions.
package tunnel

import "context"

// ID is an opaque session handle.  Handles are allocated by the
// registry, monotonically increasing, and never reused within a
// process; the close callback carries the handle back so removal is a
// plain map deletion with no dangling-reference risk.
type ID uint64

// Session is one active or pending tunnel.  A session is created,
// connected at most once, and stopped at most once; its lifecycle end
// is reported through the OnClosed callback in its Params, never
// through a return value.
type Session interface {
	// ID returns the handle assigned at creation.
	ID() ID

	// Connect establishes the tunnel to the proxy endpoint and the
	// local destination service.  A non-nil error means the session is
	// unusable and will never fire its close callback.
	Connect(ctx context.Context) error

	// Stop requests cooperative shutdown.  Completion is reported
	// asynchronously via the close callback.
	Stop()
}

// Origin records the notification parameters a session was built from,
// used for duplicate-request suppression.
type Origin struct {
	AccessToken string
	Region      string
	Service     string
}

// Factory builds a Session from a handle and parameters.  The feature
// controller takes one so tests can substitute fakes for the websocket
// implementation.
type Factory func(id ID, p Params) Session
