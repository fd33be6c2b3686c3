package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"classboard/internal/state"
	"classboard/internal/websocket"
	"classboard/pkg/types"
)

// fakeConn implements interfaces.Connection for coordinator tests.
type fakeConn struct {
	id   string
	role string

	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	failSend bool
}

func newFakeConn(id, role string) *fakeConn {
	return &fakeConn{id: id, role: role}
}

func (f *fakeConn) ID() string   { return f.id }
func (f *fakeConn) Role() string { return f.role }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.failSend {
		return fmt.Errorf("send failed")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) frame(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames[i]
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// waitFor polls until cond holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type wireUpdate struct {
	Type string              `json:"type"`
	Data [2]json.RawMessage  `json:"data"`
}

func decodeUpdate(t *testing.T, frame []byte) ([]types.Reaction, []types.Question) {
	t.Helper()
	var env wireUpdate
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("frame does not parse: %v", err)
	}
	if env.Type != "update" {
		t.Fatalf("expected update frame, got %s", frame)
	}
	var reactions []types.Reaction
	var questions []types.Question
	if err := json.Unmarshal(env.Data[0], &reactions); err != nil {
		t.Fatalf("bad reactions element: %v", err)
	}
	if err := json.Unmarshal(env.Data[1], &questions); err != nil {
		t.Fatalf("bad questions element: %v", err)
	}
	return reactions, questions
}

func decodeErrorReason(t *testing.T, frame []byte) string {
	t.Helper()
	var env struct {
		Type string `json:"type"`
		Data struct {
			Reason string `json:"reason"`
		} `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("frame does not parse: %v", err)
	}
	if env.Type != "error" {
		t.Fatalf("expected error frame, got %s", frame)
	}
	return env.Data.Reason
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func startCoordinator(t *testing.T, perMinute int) (*Coordinator, *state.Store) {
	t.Helper()
	store := state.NewStore(realClock{})
	registry := websocket.NewRegistry()
	coord := NewCoordinator(store, registry, perMinute)
	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("failed to start coordinator: %v", err)
	}
	t.Cleanup(func() { _ = coord.Stop() })
	return coord, store
}

func TestStartStopLifecycle(t *testing.T) {
	store := state.NewStore(realClock{})
	coord := NewCoordinator(store, websocket.NewRegistry(), 100)

	ctx := context.Background()
	if err := coord.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := coord.Start(ctx); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := coord.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := coord.Stop(); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
	if err := coord.Dispatch(newFakeConn("c", types.RoleStudent), []byte("{}")); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestTeacherJoinReceivesSnapshotOfPriorMutations(t *testing.T) {
	coord, store := startCoordinator(t, 100)
	student := newFakeConn("s1", types.RoleStudent)

	submit := func(raw string) {
		if err := coord.Dispatch(student, []byte(raw)); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}
	submit(`{"type":"new","resource":"feedback","id":null,"data":{"student":"alice","feedback":"lost"}}`)
	submit(`{"type":"new","resource":"question","id":null,"data":{"student":"bob","question":"why?"}}`)
	submit(`{"type":"new","resource":"question","id":null,"data":{"student":"carol","question":"how?"}}`)

	waitFor(t, "three mutations applied", func() bool {
		reactions, questions := store.Counts()
		return reactions == 1 && questions == 2
	})

	teacher := newFakeConn("t1", types.RoleTeacher)
	if err := coord.Register(teacher); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	waitFor(t, "join snapshot", func() bool { return teacher.frameCount() >= 1 })

	reactions, questions := decodeUpdate(t, teacher.frame(0))
	if len(reactions) != 1 || reactions[0].Student != "alice" || reactions[0].Kind != types.KindLost {
		t.Errorf("unexpected reactions in join snapshot: %+v", reactions)
	}
	if len(questions) != 2 || questions[0].ID != 1 || questions[1].ID != 2 {
		t.Errorf("unexpected questions in join snapshot: %+v", questions)
	}
}

func TestFeedbackUpsertBroadcastsLatestKind(t *testing.T) {
	coord, _ := startCoordinator(t, 100)

	teacher := newFakeConn("t1", types.RoleTeacher)
	if err := coord.Register(teacher); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	waitFor(t, "join snapshot", func() bool { return teacher.frameCount() >= 1 })

	student := newFakeConn("s1", types.RoleStudent)
	submit := func(raw string) {
		if err := coord.Dispatch(student, []byte(raw)); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}
	submit(`{"type":"new","resource":"feedback","id":null,"data":{"student":"A","feedback":"lost"}}`)
	submit(`{"type":"new","resource":"feedback","id":null,"data":{"student":"A","feedback":"on-track"}}`)

	waitFor(t, "two broadcasts", func() bool { return teacher.frameCount() >= 3 })

	reactions, _ := decodeUpdate(t, teacher.frame(2))
	if len(reactions) != 1 {
		t.Fatalf("expected exactly one reaction for A, got %+v", reactions)
	}
	if reactions[0].Kind != types.KindOnTrack {
		t.Errorf("expected most recent kind on-track, got %s", reactions[0].Kind)
	}
}

func TestStudentNeverReceivesBroadcasts(t *testing.T) {
	coord, store := startCoordinator(t, 100)

	writer := newFakeConn("s1", types.RoleStudent)
	observer := newFakeConn("s2", types.RoleStudent)
	if err := coord.Register(writer); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := coord.Register(observer); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := coord.Dispatch(writer, []byte(`{"type":"new","resource":"feedback","id":null,"data":{"student":"A","feedback":"lost"}}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	waitFor(t, "mutation applied", func() bool {
		reactions, _ := store.Counts()
		return reactions == 1
	})

	if writer.frameCount() != 0 || observer.frameCount() != 0 {
		t.Errorf("student connections must not receive broadcasts: writer=%d observer=%d",
			writer.frameCount(), observer.frameCount())
	}
}

func TestUnauthorizedDeleteFromStudent(t *testing.T) {
	coord, store := startCoordinator(t, 100)

	student := newFakeConn("s1", types.RoleStudent)
	if err := coord.Register(student); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := coord.Dispatch(student, []byte(`{"type":"new","resource":"question","id":null,"data":{"student":"B","question":"why?"}}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	waitFor(t, "question added", func() bool {
		_, questions := store.Counts()
		return questions == 1
	})

	offender := newFakeConn("s2", types.RoleStudent)
	if err := coord.Register(offender); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := coord.Dispatch(offender, []byte(`{"type":"delete","resource":"question","id":1,"data":null}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	waitFor(t, "offender closed", offender.isClosed)

	if reason := decodeErrorReason(t, offender.frame(0)); reason != "unauthorized" {
		t.Errorf("expected unauthorized reason, got %q", reason)
	}
	if _, questions := store.Counts(); questions != 1 {
		t.Errorf("question must survive an unauthorized delete")
	}
	if student.isClosed() {
		t.Errorf("other connections must be unaffected")
	}
}

func TestMalformedEnvelopeClosesOnlySender(t *testing.T) {
	coord, _ := startCoordinator(t, 100)

	teacher := newFakeConn("t1", types.RoleTeacher)
	if err := coord.Register(teacher); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	waitFor(t, "join snapshot", func() bool { return teacher.frameCount() >= 1 })

	offender := newFakeConn("s1", types.RoleStudent)
	if err := coord.Register(offender); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := coord.Dispatch(offender, []byte(`this is not json`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	waitFor(t, "offender closed", offender.isClosed)

	if reason := decodeErrorReason(t, offender.frame(0)); reason != "malformed envelope" {
		t.Errorf("expected malformed envelope reason, got %q", reason)
	}
	if teacher.isClosed() {
		t.Errorf("teacher connection must survive another connection's violation")
	}
	// No mutation happened, so no broadcast beyond the join snapshot.
	if teacher.frameCount() != 1 {
		t.Errorf("expected no broadcast for rejected envelope, got %d frames", teacher.frameCount())
	}
}

func TestDuplicateDeleteBetweenTeachers(t *testing.T) {
	coord, store := startCoordinator(t, 100)

	t1 := newFakeConn("t1", types.RoleTeacher)
	t2 := newFakeConn("t2", types.RoleTeacher)
	if err := coord.Register(t1); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := coord.Register(t2); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	student := newFakeConn("s1", types.RoleStudent)
	if err := coord.Dispatch(student, []byte(`{"type":"new","resource":"question","id":null,"data":{"student":"B","question":"why?"}}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	waitFor(t, "question added", func() bool {
		_, questions := store.Counts()
		return questions == 1
	})

	// Both teachers race to delete the same question.
	del := []byte(`{"type":"delete","resource":"question","id":1,"data":null}`)
	if err := coord.Dispatch(t1, del); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := coord.Dispatch(t2, del); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	waitFor(t, "question deleted", func() bool {
		_, questions := store.Counts()
		return questions == 0
	})

	// The duplicate delete is a successful no-op: neither teacher is
	// closed and both remain in the broadcast set.
	if t1.isClosed() || t2.isClosed() {
		t.Errorf("idempotent delete must not drop connections")
	}
}

func TestClearFeedbackLeavesQuestions(t *testing.T) {
	coord, store := startCoordinator(t, 100)

	teacher := newFakeConn("t1", types.RoleTeacher)
	if err := coord.Register(teacher); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	waitFor(t, "join snapshot", func() bool { return teacher.frameCount() >= 1 })

	student := newFakeConn("s1", types.RoleStudent)
	if err := coord.Dispatch(student, []byte(`{"type":"new","resource":"feedback","id":null,"data":{"student":"A","feedback":"lost"}}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := coord.Dispatch(student, []byte(`{"type":"new","resource":"question","id":null,"data":{"student":"A","question":"why?"}}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	waitFor(t, "mutations applied", func() bool {
		reactions, questions := store.Counts()
		return reactions == 1 && questions == 1
	})

	if err := coord.Dispatch(teacher, []byte(`{"type":"delete","resource":"feedback","id":null,"data":null}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	waitFor(t, "reactions cleared", func() bool {
		reactions, _ := store.Counts()
		return reactions == 0
	})

	waitFor(t, "clear broadcast", func() bool { return teacher.frameCount() >= 4 })
	reactions, questions := decodeUpdate(t, teacher.frame(teacher.frameCount()-1))
	if len(reactions) != 0 {
		t.Errorf("expected empty reactions after clear, got %+v", reactions)
	}
	if len(questions) != 1 {
		t.Errorf("expected questions untouched by clear, got %+v", questions)
	}
}

func TestFailedTeacherDroppedFromBroadcast(t *testing.T) {
	coord, store := startCoordinator(t, 100)

	healthy := newFakeConn("t1", types.RoleTeacher)
	failing := newFakeConn("t2", types.RoleTeacher)
	if err := coord.Register(healthy); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := coord.Register(failing); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	waitFor(t, "join snapshots", func() bool {
		return healthy.frameCount() >= 1 && failing.frameCount() >= 1
	})

	// The failing teacher starts rejecting sends after registration.
	failing.mu.Lock()
	failing.failSend = true
	failing.mu.Unlock()

	student := newFakeConn("s1", types.RoleStudent)
	if err := coord.Dispatch(student, []byte(`{"type":"new","resource":"feedback","id":null,"data":{"student":"A","feedback":"lost"}}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	waitFor(t, "healthy teacher still served", func() bool { return healthy.frameCount() >= 2 })
	waitFor(t, "failing teacher closed", failing.isClosed)

	// A later mutation reaches the healthy teacher only.
	if err := coord.Dispatch(student, []byte(`{"type":"new","resource":"feedback","id":null,"data":{"student":"B","feedback":"lost"}}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	waitFor(t, "second broadcast", func() bool { return healthy.frameCount() >= 3 })

	reactions, _ := store.Counts()
	if reactions != 2 {
		t.Errorf("expected both mutations applied, got %d reactions", reactions)
	}
}

func TestRateLimitNotifiesWithoutClosing(t *testing.T) {
	coord, store := startCoordinator(t, 2)

	student := newFakeConn("s1", types.RoleStudent)
	if err := coord.Register(student); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	raw := `{"type":"new","resource":"feedback","id":null,"data":{"student":"A","feedback":"lost"}}`
	for i := 0; i < 3; i++ {
		if err := coord.Dispatch(student, []byte(raw)); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}

	waitFor(t, "rate limit notice", func() bool { return student.frameCount() >= 1 })

	if reason := decodeErrorReason(t, student.frame(0)); reason != "rate limited" {
		t.Errorf("expected rate limited reason, got %q", reason)
	}
	if student.isClosed() {
		t.Errorf("rate limiting must not close the connection")
	}
	if reactions, _ := store.Counts(); reactions != 1 {
		t.Errorf("expected the allowed submissions applied, got %d reactions", reactions)
	}
}
