// Package wheel stores the wheel configurations of each room. Only the room
// host may create, change or delete them.
package wheel

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wheelroom/api/internal/database"
	"github.com/wheelroom/api/internal/keylock"
	"github.com/wheelroom/api/internal/wheelroom"
)

const (
	DefaultSpinDuration = 5000
	MinSpinDuration     = 2000
	MaxSpinDuration     = 10000

	minWeight = 0.1
	maxWeight = 100
)

// Rooms is the part of the room registry the store needs.
type Rooms interface {
	FindByID(ctx context.Context, id string) (*wheelroom.Room, error)
}

type Store struct {
	db    *sql.DB
	rooms Rooms
	locks *keylock.Map
	now   func() time.Time
}

func NewStore(db *sql.DB, rooms Rooms, locks *keylock.Map) *Store {
	return &Store{db: db, rooms: rooms, locks: locks, now: time.Now}
}

type CreateInput struct {
	RoomID          string              `json:"roomId"`
	Title           string              `json:"title"`
	Segments        []wheelroom.Segment `json:"segments"`
	SpinDuration    int                 `json:"spinDuration,omitempty"`
	SoundEnabled    *bool               `json:"soundEnabled,omitempty"`
	ConfettiEnabled *bool               `json:"confettiEnabled,omitempty"`
}

// UpdateInput changes only the fields that are set. A non-nil Segments
// replaces the whole list.
type UpdateInput struct {
	WheelID         string              `json:"wheelId"`
	Title           *string             `json:"title,omitempty"`
	Segments        []wheelroom.Segment `json:"segments,omitempty"`
	SpinDuration    *int                `json:"spinDuration,omitempty"`
	SoundEnabled    *bool               `json:"soundEnabled,omitempty"`
	ConfettiEnabled *bool               `json:"confettiEnabled,omitempty"`
}

func (s *Store) Create(ctx context.Context, userID string, in CreateInput) (*wheelroom.Wheel, error) {
	title := strings.TrimSpace(in.Title)
	if err := checkTitle(title); err != nil {
		return nil, err
	}
	segments, err := prepareSegments(in.Segments)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(in.RoomID)
	defer unlock()

	if err := s.requireHost(ctx, userID, in.RoomID, "create a wheel"); err != nil {
		return nil, err
	}

	duration := DefaultSpinDuration
	if in.SpinDuration != 0 {
		duration = clampDuration(in.SpinDuration)
	}
	now := s.now().UTC()
	w := &wheelroom.Wheel{
		ID:              uuid.NewString(),
		RoomID:          in.RoomID,
		Title:           title,
		Segments:        segments,
		SpinDuration:    duration,
		SoundEnabled:    boolOr(in.SoundEnabled, true),
		ConfettiEnabled: boolOr(in.ConfettiEnabled, true),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO wheels (id, room_id, created_at, data) VALUES (?, ?, ?, jsonb(?))`,
		w.ID, w.RoomID, database.FormatTime(w.CreatedAt), string(data),
	)
	if err != nil {
		return nil, wheelroom.Persistence("inserting wheel", err)
	}
	return w, nil
}

func (s *Store) Update(ctx context.Context, userID string, in UpdateInput) (*wheelroom.Wheel, error) {
	var title string
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
		if err := checkTitle(title); err != nil {
			return nil, err
		}
	}
	var segments []wheelroom.Segment
	if in.Segments != nil {
		var err error
		if segments, err = prepareSegments(in.Segments); err != nil {
			return nil, err
		}
	}

	current, err := s.FindByID(ctx, in.WheelID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(current.RoomID)
	defer unlock()

	// Re-read under the room lock.
	w, err := s.FindByID(ctx, in.WheelID)
	if err != nil {
		return nil, err
	}
	if err := s.requireHost(ctx, userID, w.RoomID, "update the wheel"); err != nil {
		return nil, err
	}

	if in.Title != nil {
		w.Title = title
	}
	if segments != nil {
		w.Segments = segments
	}
	if in.SpinDuration != nil {
		w.SpinDuration = clampDuration(*in.SpinDuration)
	}
	if in.SoundEnabled != nil {
		w.SoundEnabled = *in.SoundEnabled
	}
	if in.ConfettiEnabled != nil {
		w.ConfettiEnabled = *in.ConfettiEnabled
	}
	w.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE wheels SET data = jsonb(?) WHERE id = ?`, string(data), w.ID)
	if err != nil {
		return nil, wheelroom.Persistence("saving wheel", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, wheelroom.NotFoundf("wheel not found")
	}
	return w, nil
}

func (s *Store) Delete(ctx context.Context, userID, wheelID string) (*wheelroom.Wheel, error) {
	current, err := s.FindByID(ctx, wheelID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(current.RoomID)
	defer unlock()

	if err := s.requireHost(ctx, userID, current.RoomID, "delete the wheel"); err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM wheels WHERE id = ?`, wheelID)
	if err != nil {
		return nil, wheelroom.Persistence("deleting wheel", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, wheelroom.NotFoundf("wheel not found")
	}
	return current, nil
}

func (s *Store) FindByID(ctx context.Context, wheelID string) (*wheelroom.Wheel, error) {
	return s.one(ctx, `SELECT json(data) FROM wheels WHERE id = ?`, wheelID)
}

// FindLatestByRoom returns the room's current wheel: the most recently
// created one.
func (s *Store) FindLatestByRoom(ctx context.Context, roomID string) (*wheelroom.Wheel, error) {
	return s.one(ctx,
		`SELECT json(data) FROM wheels WHERE room_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		roomID,
	)
}

func (s *Store) one(ctx context.Context, query, arg string) (*wheelroom.Wheel, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wheelroom.NotFoundf("wheel not found")
	}
	if err != nil {
		return nil, wheelroom.Persistence("loading wheel", err)
	}
	var w wheelroom.Wheel
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("decoding wheel: %w", err)
	}
	return &w, nil
}

func (s *Store) requireHost(ctx context.Context, userID, roomID, action string) error {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if userID == "" || room.HostID != userID {
		return wheelroom.Forbiddenf("only the host can %s", action)
	}
	return nil
}

// prepareSegments validates the list and gives an id to every segment
// that lacks one. Existing ids are kept and must be unique. Order is the
// segment's position in the list.
func prepareSegments(in []wheelroom.Segment) ([]wheelroom.Segment, error) {
	if len(in) == 0 {
		return nil, wheelroom.Validationf("a wheel needs at least one segment")
	}
	out := make([]wheelroom.Segment, len(in))
	seen := make(map[string]bool, len(in))
	for i, seg := range in {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.Text == "" {
			return nil, wheelroom.Validationf("segment %d has no text", i)
		}
		if !(seg.Weight >= minWeight && seg.Weight <= maxWeight) {
			return nil, wheelroom.Validationf("segment %q weight must be between %g and %g", seg.Text, minWeight, float64(maxWeight))
		}
		if seg.ID == "" {
			seg.ID = uuid.NewString()
		}
		if seen[seg.ID] {
			return nil, wheelroom.Validationf("segment id %q is used twice", seg.ID)
		}
		seen[seg.ID] = true
		seg.Order = i
		out[i] = seg
	}
	return out, nil
}

func checkTitle(title string) error {
	if n := utf8.RuneCountInString(title); n < 3 || n > 100 {
		return wheelroom.Validationf("title must be between 3 and 100 characters")
	}
	return nil
}

func clampDuration(ms int) int {
	return min(max(ms, MinSpinDuration), MaxSpinDuration)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
