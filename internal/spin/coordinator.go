// Package spin resolves wheel spins and narrates them to the room.
//
// A spin moves Requested → Computed → Recorded → Announced → Resolved.
// Nothing is broadcast before the record is stored, and once it is stored
// the spin always runs to Resolved.
package spin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/keylock"
	"github.com/wheelroom/api/internal/wheelroom"
)

type Rooms interface {
	FindByID(ctx context.Context, id string) (*wheelroom.Room, error)
}

type Wheels interface {
	FindByID(ctx context.Context, id string) (*wheelroom.Wheel, error)
}

// History is the append-only sink for spin records.
type History interface {
	Append(ctx context.Context, rec wheelroom.SpinRecord) error
}

// Scheduler runs f once after d. Timer.Stop reports whether it prevented
// the call.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

const resultPublishTimeout = 5 * time.Second

type Request struct {
	CallerID        string
	RoomID          string
	WheelID         string
	Seed            int64
	SpinnerNickname string
}

// Result is the caller's synchronous acknowledgment.
type Result struct {
	RecordID     string            `json:"spinId"`
	Winner       wheelroom.Segment `json:"winner"`
	Rotation     int               `json:"rotation"`
	Seed         int64             `json:"seed"`
	SpinDuration int               `json:"spinDuration"`
}

type StartedPayload struct {
	SpinID          string `json:"spinId"`
	WheelID         string `json:"wheelId"`
	Seed            int64  `json:"seed"`
	Rotation        int    `json:"rotation"`
	SpinDuration    int    `json:"spinDuration"`
	SpinnerNickname string `json:"spinnerNickname"`
}

type ResultPayload struct {
	SpinID          string            `json:"spinId"`
	Winner          wheelroom.Segment `json:"winner"`
	Rotation        int               `json:"rotation"`
	SpinnerNickname string            `json:"spinnerNickname"`
}

type Coordinator struct {
	rooms     Rooms
	wheels    Wheels
	history   History
	publisher broadcast.Publisher
	locks     *keylock.Map
	logger    *slog.Logger
	sched     Scheduler
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]Timer
	wg      sync.WaitGroup
}

type Option func(*Coordinator)

func WithScheduler(s Scheduler) Option {
	return func(c *Coordinator) { c.sched = s }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(rooms Rooms, wheels Wheels, history History, publisher broadcast.Publisher,
	locks *keylock.Map, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms:     rooms,
		wheels:    wheels,
		history:   history,
		publisher: publisher,
		locks:     locks,
		logger:    logger,
		sched:     clockScheduler{},
		now:       time.Now,
		pending:   make(map[string]Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Spin resolves the wheel for req.Seed, stores the record, announces
// spinStarted and schedules spinResult after the wheel's spin duration.
// It returns as soon as spinStarted is out.
func (c *Coordinator) Spin(ctx context.Context, req Request) (Result, error) {
	if req.CallerID == "" {
		return Result{}, wheelroom.Forbiddenf("caller identity required")
	}
	if req.RoomID == "" || req.WheelID == "" {
		return Result{}, wheelroom.Validationf("roomId and wheelId are required")
	}

	unlock := c.locks.Lock(req.RoomID)
	defer unlock()

	room, err := c.rooms.FindByID(ctx, req.RoomID)
	if err != nil {
		return Result{}, err
	}
	if !room.IsActive {
		return Result{}, wheelroom.NotFoundf("room is closed")
	}
	p := room.Participant(req.CallerID)
	if p == nil {
		return Result{}, wheelroom.Forbiddenf("only room participants can spin")
	}
	if p.Role == wheelroom.RoleSpectator {
		return Result{}, wheelroom.Forbiddenf("spectators cannot spin")
	}

	wheel, err := c.wheels.FindByID(ctx, req.WheelID)
	if err != nil {
		return Result{}, err
	}
	if wheel.RoomID != req.RoomID {
		return Result{}, wheelroom.NotFoundf("wheel not found in this room")
	}

	out, err := Resolve(req.Seed, wheel.Segments)
	if err != nil {
		return Result{}, err
	}

	nickname := strings.TrimSpace(req.SpinnerNickname)
	if nickname == "" {
		nickname = p.Nickname
	}
	rec := wheelroom.SpinRecord{
		ID:              uuid.NewString(),
		RoomID:          req.RoomID,
		WheelID:         wheel.ID,
		SpinnerID:       req.CallerID,
		SpinnerNickname: nickname,
		Result:          out.Winner.Text,
		SegmentID:       out.Winner.ID,
		Seed:            req.Seed,
		Rotation:        out.Rotation,
		SpunAt:          c.now().UTC(),
	}
	if err := c.history.Append(ctx, rec); err != nil {
		if !errors.Is(err, wheelroom.ErrPersistence) {
			err = wheelroom.Persistence("recording spin", err)
		}
		return Result{}, err
	}

	// Recorded: from here on failures are logged, never returned.
	started := broadcast.NewEvent(broadcast.SpinStarted, req.RoomID, StartedPayload{
		SpinID:          rec.ID,
		WheelID:         wheel.ID,
		Seed:            rec.Seed,
		Rotation:        rec.Rotation,
		SpinDuration:    wheel.SpinDuration,
		SpinnerNickname: nickname,
	})
	if err := c.publisher.Publish(ctx, req.RoomID, started); err != nil {
		c.logger.Error("announcing spin failed", "spin_id", rec.ID, "room_id", req.RoomID, "error", err)
	}

	resolved := broadcast.NewEvent(broadcast.SpinResult, req.RoomID, ResultPayload{
		SpinID:          rec.ID,
		Winner:          out.Winner,
		Rotation:        rec.Rotation,
		SpinnerNickname: nickname,
	})
	c.schedule(rec.ID, wheel.Duration(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultPublishTimeout)
		defer cancel()
		resolved.Timestamp = c.now().UTC()
		if err := c.publisher.Publish(ctx, req.RoomID, resolved); err != nil {
			c.logger.Error("publishing spin result failed", "spin_id", rec.ID, "room_id", req.RoomID, "error", err)
			return
		}
		c.logger.Debug("spin resolved", "spin_id", rec.ID, "room_id", req.RoomID, "winner", out.Winner.Text)
	})

	c.logger.Info("spin recorded",
		"spin_id", rec.ID,
		"room_id", req.RoomID,
		"wheel_id", wheel.ID,
		"seed", rec.Seed,
		"winner", out.Winner.Text,
	)

	return Result{
		RecordID:     rec.ID,
		Winner:       out.Winner,
		Rotation:     rec.Rotation,
		Seed:         rec.Seed,
		SpinDuration: wheel.SpinDuration,
	}, nil
}

func (c *Coordinator) schedule(spinID string, d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wg.Add(1)
	c.pending[spinID] = c.sched.AfterFunc(d, func() {
		defer c.wg.Done()
		c.mu.Lock()
		delete(c.pending, spinID)
		c.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending spinResult announcement. It reports whether one
// was pending.
func (c *Coordinator) Cancel(spinID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.pending[spinID]
	if !ok || !t.Stop() {
		return false
	}
	delete(c.pending, spinID)
	c.wg.Done()
	return true
}

// Pending returns the number of announcements not yet sent.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Drain waits until every scheduled announcement has been sent or ctx ends.
func (c *Coordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
