// Package state holds the canonical in-memory session state: the current
// reactions and pending questions. The store is the only mutable copy of
// that state; every component reads it through Snapshot and mutates it
// through the four command methods. All operations are serialized behind
// one mutex so no id collision, lost update, or torn snapshot is possible.
package state

import (
	"sync"

	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

// Store is the canonical session state. The zero value is not usable;
// construct with NewStore.
type Store struct {
	mu        sync.RWMutex
	reactions []types.Reaction
	questions []types.Question
	lastID    int64
	clock     interfaces.Clock
}

// NewStore creates an empty store. Question timestamps come from clock.
func NewStore(clock interfaces.Clock) *Store {
	return &Store{
		clock: clock,
	}
}

// UpsertReaction records student's current pace signal, replacing any
// previous reaction from the same student in place. Insertion order of
// first appearance is preserved; a replacement does not move the entry.
func (s *Store) UpsertReaction(student, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reactions {
		if s.reactions[i].Student == student {
			s.reactions[i].Kind = kind
			return
		}
	}
	s.reactions = append(s.reactions, types.Reaction{Student: student, Kind: kind})
}

// ClearReactions removes all reactions at once. Questions are untouched.
func (s *Store) ClearReactions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactions = nil
}

// AddQuestion appends a question and returns its server-assigned id.
// Ids start at 1 and increase by one per question for the session
// lifetime; a deleted question's id is never reused.
func (s *Store) AddQuestion(student, text string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	s.questions = append(s.questions, types.Question{
		ID:        s.lastID,
		Student:   student,
		Text:      text,
		CreatedAt: s.clock.Now(),
	})
	return s.lastID
}

// DeleteQuestion removes the question with the given id if present.
// Deleting an unknown id is a no-op, not an error, so duplicate deletes
// racing between two teacher connections both succeed.
func (s *Store) DeleteQuestion(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.questions {
		if s.questions[i].ID == id {
			s.questions = append(s.questions[:i], s.questions[i+1:]...)
			return
		}
	}
}

// Snapshot returns a deep copy of the current state. The copy reflects
// every mutation applied before the call and shares no memory with the
// store, so callers can serialize it while mutations continue.
func (s *Store) Snapshot() types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := types.Snapshot{
		Reactions: make([]types.Reaction, len(s.reactions)),
		Questions: make([]types.Question, len(s.questions)),
	}
	copy(snap.Reactions, s.reactions)
	copy(snap.Questions, s.questions)
	return snap
}

// Counts reports the current number of reactions and questions. Used by
// the status endpoint and logging; cheaper than a full snapshot.
func (s *Store) Counts() (reactions, questions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reactions), len(s.questions)
}
