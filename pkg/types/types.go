package types

import (
	"time"
)

// Reaction kind constants define the closed set of pace signals a student
// can submit. Anything outside this set is rejected at the protocol boundary.
const (
	KindOnTrack  = "on-track"
	KindSlowDown = "slow-down"
	KindLost     = "lost"
	KindSpeedUp  = "speed-up"
)

// Role constants for registered connections. A teacher connection only
// reaches the registry after the auth gate has granted it, so there is no
// registered "unauthenticated teacher" role.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Reaction is one student's current pace signal.
// At most one live Reaction exists per student name; a newer submission
// from the same name replaces the older one in place.
type Reaction struct {
	Student string `json:"student"`
	Kind    string `json:"feedback"`
}

// Question is a student's help request. ID is assigned by the server at
// creation, strictly increasing within the session, and never reused.
// There is no update operation: a Question is created once and either
// survives the session or is deleted by id.
type Question struct {
	ID        int64     `json:"id"`
	Student   string    `json:"student"`
	Text      string    `json:"question"`
	CreatedAt time.Time `json:"timestamp"`
}

// Snapshot is an immutable point-in-time copy of the session state.
// Both slices preserve insertion order and share no memory with the
// live store, so a snapshot stays consistent while mutations continue.
type Snapshot struct {
	Reactions []Reaction
	Questions []Question
}
