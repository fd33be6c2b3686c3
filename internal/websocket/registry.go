package websocket

import (
	"log"
	"sync"

	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

// Registry tracks live connections by role and owns the broadcast
// primitive. It holds no business logic: what gets broadcast, and when,
// is the coordinator's decision. A connection removed here is gone for
// good; a reconnecting client arrives as a new connection with a new id.
type Registry struct {
	mu       sync.RWMutex
	students map[string]interfaces.Connection
	teachers map[string]interfaces.Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		students: make(map[string]interfaces.Connection),
		teachers: make(map[string]interfaces.Connection),
	}
}

// Add registers a connection under its role. Connection ids are assigned
// server-side per connection, so a duplicate id means a programming error
// rather than a client reconnect.
func (r *Registry) Add(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch conn.Role() {
	case types.RoleStudent:
		if _, exists := r.students[conn.ID()]; exists {
			return ErrDuplicateID
		}
		r.students[conn.ID()] = conn
	case types.RoleTeacher:
		if _, exists := r.teachers[conn.ID()]; exists {
			return ErrDuplicateID
		}
		r.teachers[conn.ID()] = conn
	default:
		return ErrUnknownRole
	}
	return nil
}

// Remove unregisters a connection by id. Idempotent: removing an unknown
// id does nothing, so racing cleanups are harmless.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.students, connID)
	delete(r.teachers, connID)
}

// Get returns the registered connection with the given id.
func (r *Registry) Get(connID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if conn, ok := r.students[connID]; ok {
		return conn, true
	}
	conn, ok := r.teachers[connID]
	return conn, ok
}

// BroadcastTeachers delivers the same serialized payload to every
// registered teacher connection. Delivery is best-effort per connection:
// a failed send drops and closes that connection but never aborts
// delivery to the rest. Returns the number of successful deliveries.
func (r *Registry) BroadcastTeachers(payload []byte) int {
	r.mu.RLock()
	teachers := make([]interfaces.Connection, 0, len(r.teachers))
	for _, conn := range r.teachers {
		teachers = append(teachers, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range teachers {
		if err := conn.Send(payload); err != nil {
			log.Printf("broadcast to teacher %s failed, dropping connection: %v", conn.ID(), err)
			r.Remove(conn.ID())
			if closeErr := conn.Close(); closeErr != nil {
				log.Printf("failed to close dropped connection %s: %v", conn.ID(), closeErr)
			}
			continue
		}
		delivered++
	}
	return delivered
}

// Counts reports registered connections per role.
func (r *Registry) Counts() (students, teachers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.students), len(r.teachers)
}
