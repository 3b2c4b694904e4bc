package room

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wheelroom/api/internal/database"
	"github.com/wheelroom/api/internal/wheelroom"
)

var errCodeTaken = errors.New("room code taken")

// Store persists rooms as documents with their participants embedded.
type Store interface {
	Insert(ctx context.Context, r *wheelroom.Room) error
	Save(ctx context.Context, r *wheelroom.Room) error
	ByID(ctx context.Context, id string) (*wheelroom.Room, error)
	ByActiveCode(ctx context.Context, code string) (*wheelroom.Room, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	ListPublic(ctx context.Context, limit, skip int) ([]wheelroom.Room, error)
}

// roomDoc is the stored shape. Unlike wheelroom.Room it keeps the password
// hash.
type roomDoc struct {
	ID              string                  `json:"id"`
	Code            string                  `json:"code"`
	Name            string                  `json:"name"`
	Description     string                  `json:"description,omitempty"`
	HostID          string                  `json:"hostId"`
	IsPublic        bool                    `json:"isPublic"`
	PasswordHash    string                  `json:"passwordHash,omitempty"`
	MaxParticipants int                     `json:"maxParticipants,omitempty"`
	IsActive        bool                    `json:"isActive"`
	Participants    []wheelroom.Participant `json:"participants"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func toDoc(r *wheelroom.Room) roomDoc {
	return roomDoc{
		ID:              r.ID,
		Code:            r.Code,
		Name:            r.Name,
		Description:     r.Description,
		HostID:          r.HostID,
		IsPublic:        r.IsPublic,
		PasswordHash:    r.PasswordHash,
		MaxParticipants: r.MaxParticipants,
		IsActive:        r.IsActive,
		Participants:    r.Participants,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (d roomDoc) room() *wheelroom.Room {
	participants := d.Participants
	if participants == nil {
		participants = []wheelroom.Participant{}
	}
	return &wheelroom.Room{
		ID:              d.ID,
		Code:            d.Code,
		Name:            d.Name,
		Description:     d.Description,
		HostID:          d.HostID,
		IsPublic:        d.IsPublic,
		PasswordHash:    d.PasswordHash,
		MaxParticipants: d.MaxParticipants,
		IsActive:        d.IsActive,
		Participants:    participants,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// SQLiteStore implements Store on the rooms table: indexed columns for
// lookups plus a JSONB document.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Insert(ctx context.Context, r *wheelroom.Room) error {
	data, err := json.Marshal(toDoc(r))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, code, is_active, is_public, created_at, data)
		 VALUES (?, ?, ?, ?, ?, jsonb(?))`,
		r.ID, r.Code, boolInt(r.IsActive), boolInt(r.IsPublic), database.FormatTime(r.CreatedAt), string(data),
	)
	if database.IsUniqueViolation(err) {
		return errCodeTaken
	}
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, r *wheelroom.Room) error {
	data, err := json.Marshal(toDoc(r))
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET code = ?, is_active = ?, is_public = ?, data = jsonb(?) WHERE id = ?`,
		r.Code, boolInt(r.IsActive), boolInt(r.IsPublic), string(data), r.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return wheelroom.NotFoundf("room %s", r.ID)
	}
	return nil
}

func (s *SQLiteStore) ByID(ctx context.Context, id string) (*wheelroom.Room, error) {
	return s.one(ctx, `SELECT json(data) FROM rooms WHERE id = ?`, id)
}

func (s *SQLiteStore) ByActiveCode(ctx context.Context, code string) (*wheelroom.Room, error) {
	return s.one(ctx, `SELECT json(data) FROM rooms WHERE code = ? AND is_active = 1`, code)
}

func (s *SQLiteStore) one(ctx context.Context, query string, arg string) (*wheelroom.Room, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wheelroom.NotFoundf("room not found")
	}
	if err != nil {
		return nil, err
	}
	var d roomDoc
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("decoding room: %w", err)
	}
	return d.room(), nil
}

func (s *SQLiteStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	var inUse bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE code = ? AND is_active = 1)`, code,
	).Scan(&inUse)
	return inUse, err
}

func (s *SQLiteStore) ListPublic(ctx context.Context, limit, skip int) ([]wheelroom.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM rooms
		 WHERE is_public = 1 AND is_active = 1
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		limit, skip,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []wheelroom.Room{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var d roomDoc
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("decoding room: %w", err)
		}
		rooms = append(rooms, *d.room())
	}
	return rooms, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
