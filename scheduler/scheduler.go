package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Oracle decides whether the Master should respond to a window of recent
// messages. An empty reply with a nil error means "stay silent". Calls may
// block for as long as the backing model takes; the scheduler imposes no
// timeout of its own.
type Oracle interface {
	GenerateResponse(ctx context.Context, window []ChatMessage) (string, error)
}

// Dispatcher delivers the Master's output to a room. Persistence and
// client fan-out are its problem; the scheduler only hands over the
// finished message.
type Dispatcher interface {
	AddMessageToRoom(roomID string, msg ChatMessage) error
	NotifyTyping(roomID, displayName string)
}

// Config carries the scheduler constants. None of them are mutable at
// runtime.
type Config struct {
	TickInterval  time.Duration
	WindowSize    int
	DefaultRoomID string
	MasterName    string
	IngestBuffer  int
	Policy        Policy
}

// Scheduler owns the buffer registry and runs the ingest loop, the
// periodic driver, and the guarded analysis cycles. One process-wide
// in-flight flag serializes all oracle consultation: while any room's
// cycle is running, ticks skip every other eligible room rather than
// queueing it. A per-room guard with a concurrency limiter in front of the
// oracle would restore room independence, but the 45s oracle gate was
// chosen assuming serialized calls, so the single flag stays.
type Scheduler struct {
	cfg        Config
	registry   *Registry
	oracle     Oracle
	dispatcher Dispatcher
	logger     *zap.Logger

	ingest   chan ChatMessage
	inFlight atomic.Bool

	now func() time.Time
}

func New(cfg Config, registry *Registry, oracle Oracle, dispatcher Dispatcher, logger *zap.Logger) *Scheduler {
	if cfg.IngestBuffer <= 0 {
		cfg.IngestBuffer = 256
	}
	return &Scheduler{
		cfg:        cfg,
		registry:   registry,
		oracle:     oracle,
		dispatcher: dispatcher,
		logger:     logger,
		ingest:     make(chan ChatMessage, cfg.IngestBuffer),
		now:        time.Now,
	}
}

// Registry exposes the buffer registry for the monitoring surface.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Ingest hands a message event to the scheduler. It never blocks the
// caller: if the ingest channel is full the event is dropped with a
// warning, the same way the ws layer drops on a full client send buffer.
func (s *Scheduler) Ingest(msg ChatMessage) {
	select {
	case s.ingest <- msg:
	default:
		s.logger.Warn("ingest channel full, dropping message",
			zap.String("roomId", msg.RoomID))
	}
}

// Run drives the scheduler until ctx is canceled: one goroutine draining
// the ingest channel, and the tick loop in the calling goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	go s.drainIngest(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler running",
		zap.Duration("tick", s.cfg.TickInterval),
		zap.Int("window", s.cfg.WindowSize))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) drainIngest(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.ingest:
			s.handleEvent(msg)
		}
	}
}

// handleEvent applies the ingestion filter and appends eligible messages
// to their room's buffer. Filter misses are not errors.
func (s *Scheduler) handleEvent(msg ChatMessage) {
	if msg.Kind != KindChat || msg.SenderID == MasterID {
		return
	}
	if msg.RoomID == "" {
		msg.RoomID = s.cfg.DefaultRoomID
	}
	s.registry.Get(msg.RoomID).Append(msg)
}

// tick evaluates every known room against the policy and launches at most
// one analysis cycle. Rooms that fail a gate, or that find the guard
// already held, are simply skipped until the next tick — nothing is
// queued. A failure inside one room's cycle never reaches another room.
func (s *Scheduler) tick() {
	ids := s.registry.RoomIDs()
	if len(ids) == 0 {
		s.logger.Debug("tick: no rooms")
		return
	}

	now := s.now()
	for _, roomID := range ids {
		buf := s.registry.Get(roomID)
		pending := buf.Len()
		if pending == 0 {
			s.logger.Debug("tick: empty buffer", zap.String("roomId", roomID))
			continue
		}

		lastResponse, lastOracleCall := buf.Timers()
		if !s.cfg.Policy.Eligible(pending, lastResponse, lastOracleCall, now) {
			s.logger.Debug("room not eligible",
				zap.String("roomId", roomID),
				zap.Int("pending", pending),
				zap.Duration("sinceResponse", now.Sub(lastResponse)),
				zap.Duration("sinceOracleCall", now.Sub(lastOracleCall)))
			continue
		}

		if !s.inFlight.CompareAndSwap(false, true) {
			s.logger.Debug("analysis in flight, skipping room",
				zap.String("roomId", roomID))
			continue
		}
		go s.runCycle(roomID, buf)
	}
}

// runCycle is one guarded analysis cycle: extract the window, consult the
// oracle, and on a response dispatch it and commit. The guard is released
// no matter how the cycle ends. Oracle errors and dispatch errors both
// leave the buffer and the response timer untouched so the content is
// retried on a later cycle; only the oracle-call timer advances.
func (s *Scheduler) runCycle(roomID string, buf *RoomBuffer) {
	defer s.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("analysis cycle panicked",
				zap.String("roomId", roomID),
				zap.Any("panic", r))
		}
	}()

	window := buf.Window(s.cfg.WindowSize)
	if len(window) == 0 {
		return
	}

	buf.MarkOracleCall(s.now())
	s.dispatcher.NotifyTyping(roomID, s.cfg.MasterName)

	reply, err := s.oracle.GenerateResponse(context.Background(), window)
	if err != nil {
		s.logger.Warn("oracle call failed",
			zap.String("roomId", roomID),
			zap.Int("window", len(window)),
			zap.Error(err))
		return
	}
	if reply == "" {
		s.logger.Debug("oracle declined",
			zap.String("roomId", roomID),
			zap.Int("window", len(window)))
		return
	}

	out := ChatMessage{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   MasterID,
		SenderName: s.cfg.MasterName,
		Kind:       KindMaster,
		Content:    reply,
		CreatedAt:  s.now(),
	}
	if err := s.dispatcher.AddMessageToRoom(roomID, out); err != nil {
		s.logger.Error("dispatch failed, keeping buffer",
			zap.String("roomId", roomID),
			zap.Error(err))
		return
	}

	buf.CommitResponse(s.now())
	s.logger.Info("master responded",
		zap.String("roomId", roomID),
		zap.Int("window", len(window)),
		zap.Int("len", len(reply)))
}
