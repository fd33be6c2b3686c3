package interfaces

// Connection is a live transport endpoint as seen by the coordinator and
// registry. Implementations must make Send safe for concurrent use and
// must tolerate Close being called more than once.
type Connection interface {
	// ID returns the server-assigned connection identifier.
	ID() string

	// Role returns the connection's role ("student" or "teacher").
	// The role is fixed at connect time and never changes.
	Role() string

	// Send queues a prepared frame for delivery. It returns an error if
	// the connection is closed or its outbound buffer stays full; the
	// caller decides whether a failed send drops the connection.
	Send(data []byte) error

	// Close tears down the transport and cancels pending sends.
	Close() error
}
