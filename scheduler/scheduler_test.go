package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeOracle struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]ChatMessage

	// When set, GenerateResponse signals started and blocks until release
	// is closed, so tests can hold a cycle in flight.
	started chan string
	release chan struct{}
}

func (o *fakeOracle) GenerateResponse(_ context.Context, window []ChatMessage) (string, error) {
	o.mu.Lock()
	cp := make([]ChatMessage, len(window))
	copy(cp, window)
	o.calls = append(o.calls, cp)
	o.mu.Unlock()

	if o.started != nil {
		o.started <- window[0].RoomID
	}
	if o.release != nil {
		<-o.release
	}
	return o.reply, o.err
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

type fakeDispatcher struct {
	mu     sync.Mutex
	err    error
	posted []ChatMessage
	typing []string
}

func (d *fakeDispatcher) AddMessageToRoom(roomID string, m ChatMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	m.RoomID = roomID
	d.posted = append(d.posted, m)
	return nil
}

func (d *fakeDispatcher) NotifyTyping(roomID, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.typing = append(d.typing, roomID)
}

func (d *fakeDispatcher) postCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.posted)
}

func newTestScheduler(o Oracle, d Dispatcher) *Scheduler {
	return New(Config{
		TickInterval:  time.Second,
		WindowSize:    10,
		DefaultRoomID: "lobby",
		MasterName:    "The Master",
		Policy: Policy{
			MinMessages: 1,
			ResponseGap: 30 * time.Second,
			OracleGap:   45 * time.Second,
		},
	}, NewRegistry(), o, d, zap.NewNop())
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHandleEventFiltering(t *testing.T) {
	s := newTestScheduler(&fakeOracle{}, &fakeDispatcher{})

	s.handleEvent(ChatMessage{ID: "m1", RoomID: "r1", SenderID: "u1", Kind: KindChat})
	s.handleEvent(ChatMessage{ID: "m2", RoomID: "r1", SenderID: "u1", Kind: KindSystem})
	s.handleEvent(ChatMessage{ID: "m3", RoomID: "r1", SenderID: MasterID, Kind: KindMaster})
	s.handleEvent(ChatMessage{ID: "m4", RoomID: "r1", SenderID: MasterID, Kind: KindChat})

	if got := s.registry.Get("r1").Len(); got != 1 {
		t.Errorf("r1 buffer = %d messages, want 1 (filters leaked)", got)
	}

	// Missing room id falls back to the default room
	s.handleEvent(ChatMessage{ID: "m5", SenderID: "u2", Kind: KindChat})
	if got := s.registry.Get("lobby").Len(); got != 1 {
		t.Errorf("lobby buffer = %d messages, want 1", got)
	}
}

func TestCycleDecline(t *testing.T) {
	orc := &fakeOracle{reply: ""}
	disp := &fakeDispatcher{}
	s := newTestScheduler(orc, disp)

	buf := s.registry.Get("r1")
	buf.Append(msg("m0", "r1"))
	buf.Append(msg("m1", "r1"))
	buf.Append(msg("m2", "r1"))

	s.runCycle("r1", buf)

	if buf.Len() != 3 {
		t.Errorf("buffer = %d messages after decline, want 3", buf.Len())
	}
	lastResponse, lastOracleCall := buf.Timers()
	if !lastResponse.IsZero() {
		t.Error("lastResponse advanced on decline")
	}
	if lastOracleCall.IsZero() {
		t.Error("lastOracleCall not stamped")
	}
	if disp.postCount() != 0 {
		t.Errorf("dispatched %d messages on decline, want 0", disp.postCount())
	}
	if orc.callCount() != 1 {
		t.Errorf("oracle called %d times, want 1", orc.callCount())
	}
}

func TestCycleResponse(t *testing.T) {
	orc := &fakeOracle{
		reply:   "Welcome.",
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	disp := &fakeDispatcher{}
	s := newTestScheduler(orc, disp)

	buf := s.registry.Get("r1")
	for i := 0; i < 3; i++ {
		buf.Append(msg(fmt.Sprintf("m%d", i), "r1"))
	}

	start := time.Now()
	done := make(chan struct{})
	go func() {
		s.runCycle("r1", buf)
		close(done)
	}()

	<-orc.started
	// A message arriving mid-cycle is dropped by the commit, not carried
	// into the next window.
	buf.Append(msg("late", "r1"))
	close(orc.release)
	<-done

	if buf.Len() != 0 {
		t.Errorf("buffer = %d messages after response, want 0", buf.Len())
	}
	lastResponse, _ := buf.Timers()
	if lastResponse.Before(start) {
		t.Errorf("lastResponse = %v, want >= cycle start %v", lastResponse, start)
	}

	if disp.postCount() != 1 {
		t.Fatalf("dispatched %d messages, want 1", disp.postCount())
	}
	out := disp.posted[0]
	if out.RoomID != "r1" {
		t.Errorf("dispatched to room %q, want r1", out.RoomID)
	}
	if out.SenderID != MasterID || out.Kind != KindMaster {
		t.Errorf("dispatched sender %q kind %q, want reserved master identity", out.SenderID, out.Kind)
	}
	if out.Content != "Welcome." {
		t.Errorf("dispatched content %q", out.Content)
	}
	if out.SenderName != "The Master" {
		t.Errorf("dispatched sender name %q", out.SenderName)
	}
}

func TestCycleOracleError(t *testing.T) {
	orc := &fakeOracle{err: errors.New("oracle down")}
	disp := &fakeDispatcher{}
	s := newTestScheduler(orc, disp)

	buf := s.registry.Get("r1")
	buf.Append(msg("m0", "r1"))

	s.runCycle("r1", buf)

	if buf.Len() != 1 {
		t.Error("buffer must survive an oracle failure")
	}
	lastResponse, lastOracleCall := buf.Timers()
	if !lastResponse.IsZero() {
		t.Error("lastResponse advanced on oracle failure")
	}
	if lastOracleCall.IsZero() {
		t.Error("a failed call must still consume the oracle budget")
	}
	if disp.postCount() != 0 {
		t.Error("nothing may be dispatched on oracle failure")
	}
}

func TestCycleDispatchError(t *testing.T) {
	orc := &fakeOracle{reply: "Hello there"}
	disp := &fakeDispatcher{err: errors.New("broadcast down")}
	s := newTestScheduler(orc, disp)

	buf := s.registry.Get("r1")
	buf.Append(msg("m0", "r1"))

	s.runCycle("r1", buf)

	if buf.Len() != 1 {
		t.Error("buffer must survive a dispatch failure")
	}
	if lastResponse, _ := buf.Timers(); !lastResponse.IsZero() {
		t.Error("a failed dispatch is not a response")
	}
}

func TestCycleWindowBound(t *testing.T) {
	orc := &fakeOracle{reply: ""}
	s := newTestScheduler(orc, &fakeDispatcher{})

	buf := s.registry.Get("r1")
	for i := 0; i < 25; i++ {
		buf.Append(msg(fmt.Sprintf("m%d", i), "r1"))
	}

	s.runCycle("r1", buf)

	if orc.callCount() != 1 {
		t.Fatalf("oracle called %d times, want 1", orc.callCount())
	}
	window := orc.calls[0]
	if len(window) != 10 {
		t.Fatalf("window size = %d, want 10", len(window))
	}
	for i, m := range window {
		if want := fmt.Sprintf("m%d", i+15); m.ID != want {
			t.Errorf("window[%d].ID = %q, want %q", i, m.ID, want)
		}
	}
}

func TestCycleEmptyWindowAborts(t *testing.T) {
	orc := &fakeOracle{reply: "hi"}
	s := newTestScheduler(orc, &fakeDispatcher{})

	buf := s.registry.Get("r1")
	s.runCycle("r1", buf)

	if orc.callCount() != 0 {
		t.Error("oracle consulted on an empty window")
	}
	if _, lastOracleCall := buf.Timers(); !lastOracleCall.IsZero() {
		t.Error("empty-window abort must not change state")
	}
	if s.inFlight.Load() {
		t.Error("guard not released after abort")
	}
}

func TestTickRespectsGates(t *testing.T) {
	orc := &fakeOracle{reply: "hi"}
	s := newTestScheduler(orc, &fakeDispatcher{})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	buf := s.registry.Get("r1")
	buf.CommitResponse(now.Add(-10 * time.Second))
	buf.Append(msg("m1", "r1"))

	// 10s since last response < 30s gate: no cycle may start
	s.tick()
	time.Sleep(20 * time.Millisecond)
	if orc.callCount() != 0 {
		t.Fatal("cycle started inside the response gap")
	}

	// Response gap satisfied, 45s oracle cooldown pending
	now = now.Add(35 * time.Second)
	buf.MarkOracleCall(now.Add(-40 * time.Second))
	s.tick()
	time.Sleep(20 * time.Millisecond)
	if orc.callCount() != 0 {
		t.Fatal("cycle started inside the oracle-call gap")
	}

	// Both gates satisfied
	now = now.Add(60 * time.Second)
	s.tick()
	waitFor(t, func() bool { return orc.callCount() == 1 }, "cycle to run")
}

func TestTickSingleFlightAcrossRooms(t *testing.T) {
	orc := &fakeOracle{
		reply:   "",
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	s := newTestScheduler(orc, &fakeDispatcher{})

	s.registry.Get("r1").Append(msg("a", "r1"))
	s.registry.Get("r2").Append(msg("b", "r2"))

	// Both rooms are eligible, but a single tick starts exactly one cycle.
	s.tick()
	first := <-orc.started

	// While that cycle is in flight, further ticks skip everything.
	s.tick()
	s.tick()
	time.Sleep(20 * time.Millisecond)
	if got := orc.callCount(); got != 1 {
		t.Fatalf("oracle called %d times with guard held, want 1", got)
	}

	close(orc.release)
	waitFor(t, func() bool { return !s.inFlight.Load() }, "guard release")

	// Next tick picks up the room that was skipped.
	s.tick()
	second := <-orc.started
	if first == second {
		t.Errorf("same room analyzed twice (%q) while the other starved", first)
	}
	waitFor(t, func() bool { return orc.callCount() == 2 }, "second cycle")
}

func TestCyclePanicReleasesGuard(t *testing.T) {
	orc := &panicOracle{}
	s := newTestScheduler(orc, &fakeDispatcher{})

	buf := s.registry.Get("r1")
	buf.Append(msg("m0", "r1"))

	s.runCycle("r1", buf)

	if s.inFlight.Load() {
		t.Error("guard held after panic")
	}
	if buf.Len() != 1 {
		t.Error("buffer lost after panic")
	}
}

type panicOracle struct{}

func (panicOracle) GenerateResponse(context.Context, []ChatMessage) (string, error) {
	panic("oracle exploded")
}

func TestStatusSnapshot(t *testing.T) {
	s := newTestScheduler(&fakeOracle{}, &fakeDispatcher{})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	buf := s.registry.Get("r1")
	buf.Append(msg("m0", "r1"))
	buf.Append(msg("m1", "r1"))
	buf.MarkOracleCall(now.Add(-20 * time.Second))
	s.registry.Get("r2")

	st := s.Status()
	if st.AnalysisInFlight {
		t.Error("no cycle is running")
	}
	if len(st.Rooms) != 2 {
		t.Fatalf("rooms = %d, want 2", len(st.Rooms))
	}

	r1 := st.Rooms[0]
	if r1.RoomID != "r1" || r1.Pending != 2 {
		t.Errorf("r1 status = %+v", r1)
	}
	if r1.SecondsSinceResponse != -1 {
		t.Errorf("r1 secondsSinceResponse = %v, want -1 sentinel", r1.SecondsSinceResponse)
	}
	if r1.SecondsSinceOracleCall != 20 {
		t.Errorf("r1 secondsSinceOracleCall = %v, want 20", r1.SecondsSinceOracleCall)
	}

	if st.Rooms[1].RoomID != "r2" || st.Rooms[1].Pending != 0 {
		t.Errorf("r2 status = %+v", st.Rooms[1])
	}
}

func TestIngestBufferFullDrops(t *testing.T) {
	s := New(Config{
		TickInterval:  time.Second,
		WindowSize:    10,
		DefaultRoomID: "lobby",
		IngestBuffer:  1,
		Policy:        Policy{MinMessages: 1},
	}, NewRegistry(), &fakeOracle{}, &fakeDispatcher{}, zap.NewNop())

	// Nothing drains the channel here: the second ingest must drop, not block.
	doneCh := make(chan struct{})
	go func() {
		s.Ingest(ChatMessage{ID: "m1", RoomID: "r1", SenderID: "u1", Kind: KindChat})
		s.Ingest(ChatMessage{ID: "m2", RoomID: "r1", SenderID: "u1", Kind: KindChat})
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Ingest blocked on a full channel")
	}
}

func TestRunDrainsIngest(t *testing.T) {
	s := newTestScheduler(&fakeOracle{}, &fakeDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Ingest(ChatMessage{ID: "m1", RoomID: "r1", SenderID: "u1", Kind: KindChat})
	waitFor(t, func() bool { return s.registry.Get("r1").Len() == 1 }, "ingest drain")
}
