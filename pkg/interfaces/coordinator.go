package interfaces

// Coordinator is the inbound edge of the session coordinator. The
// transport layer hands connections and raw envelopes to it and never
// looks inside them; decoding, authorization, and state changes all
// happen on the coordinator's side of this boundary.
type Coordinator interface {
	// Register announces a new connection. For a teacher connection the
	// coordinator sends a full snapshot before the connection becomes
	// eligible for broadcasts.
	Register(conn Connection) error

	// Unregister removes a connection after its transport closed.
	Unregister(connID string) error

	// Dispatch queues one raw inbound envelope from conn for processing.
	Dispatch(conn Connection, raw []byte) error
}
