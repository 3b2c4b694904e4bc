// Package history is the append-only log of spins and the statistics
// derived from it.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wheelroom/api/internal/database"
	"github.com/wheelroom/api/internal/wheelroom"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes rec once. Records are never updated.
func (s *Store) Append(ctx context.Context, rec wheelroom.SpinRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spin_history
			(id, room_id, wheel_id, spinner_id, spinner_nickname, result, segment_id, seed, rotation, spun_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.RoomID, rec.WheelID, rec.SpinnerID, rec.SpinnerNickname,
		rec.Result, rec.SegmentID, rec.Seed, rec.Rotation, database.FormatTime(rec.SpunAt))
	if err != nil {
		return wheelroom.Persistence("appending spin record", err)
	}
	return nil
}

const selectRecord = `
	SELECT id, room_id, wheel_id, spinner_id, spinner_nickname, result, segment_id, seed, rotation, spun_at
	FROM spin_history`

// List returns the room's spins newest first.
func (s *Store) List(ctx context.Context, roomID string, limit, skip int) ([]wheelroom.SpinRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	skip = max(skip, 0)

	rows, err := s.db.QueryContext(ctx, selectRecord+`
		WHERE room_id = ?
		ORDER BY spun_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, roomID, limit, skip)
	if err != nil {
		return nil, wheelroom.Persistence("listing spins", err)
	}
	defer rows.Close()

	records := []wheelroom.SpinRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wheelroom.Persistence("listing spins", err)
	}
	return records, nil
}

// Latest returns the room's most recent spin so reconnecting clients can
// re-sync without having seen the broadcast.
func (s *Store) Latest(ctx context.Context, roomID string) (*wheelroom.SpinRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+`
		WHERE room_id = ?
		ORDER BY spun_at DESC, rowid DESC
		LIMIT 1`, roomID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wheelroom.NotFoundf("no spins in this room")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Statistics aggregates all spins of a room. Percentages of the segments
// add up to 100.
func (s *Store) Statistics(ctx context.Context, roomID string) (wheelroom.RoomStatistics, error) {
	stats := wheelroom.RoomStatistics{SegmentStats: []wheelroom.SegmentStatistics{}}

	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(spun_at) FROM spin_history WHERE room_id = ?`, roomID,
	).Scan(&stats.TotalSpins, &last)
	if err != nil {
		return stats, wheelroom.Persistence("counting spins", err)
	}
	if stats.TotalSpins == 0 {
		return stats, nil
	}
	if last.Valid {
		t, err := database.ParseTime(last.String)
		if err != nil {
			return stats, fmt.Errorf("parsing spun_at: %w", err)
		}
		stats.LastSpunAt = &t
	}

	// The text shown for a segment is the result of its latest spin.
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.segment_id, COUNT(*),
			(SELECT result FROM spin_history l
			 WHERE l.room_id = h.room_id AND l.segment_id = h.segment_id
			 ORDER BY l.spun_at DESC, l.rowid DESC LIMIT 1)
		FROM spin_history h
		WHERE h.room_id = ?
		GROUP BY h.segment_id
		ORDER BY COUNT(*) DESC, h.segment_id
	`, roomID)
	if err != nil {
		return stats, wheelroom.Persistence("aggregating spins", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seg wheelroom.SegmentStatistics
		if err := rows.Scan(&seg.SegmentID, &seg.Count, &seg.Text); err != nil {
			return stats, wheelroom.Persistence("aggregating spins", err)
		}
		seg.Percentage = float64(seg.Count) / float64(stats.TotalSpins) * 100
		stats.SegmentStats = append(stats.SegmentStats, seg)
	}
	if err := rows.Err(); err != nil {
		return stats, wheelroom.Persistence("aggregating spins", err)
	}
	return stats, nil
}

// Clear removes the room's history and returns how many records went.
func (s *Store) Clear(ctx context.Context, roomID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM spin_history WHERE room_id = ?`, roomID)
	if err != nil {
		return 0, wheelroom.Persistence("clearing spins", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (wheelroom.SpinRecord, error) {
	var rec wheelroom.SpinRecord
	var spunAt string
	err := row.Scan(&rec.ID, &rec.RoomID, &rec.WheelID, &rec.SpinnerID, &rec.SpinnerNickname,
		&rec.Result, &rec.SegmentID, &rec.Seed, &rec.Rotation, &spunAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, wheelroom.Persistence("reading spin record", err)
	}
	if rec.SpunAt, err = database.ParseTime(spunAt); err != nil {
		return rec, fmt.Errorf("parsing spun_at: %w", err)
	}
	return rec, nil
}
