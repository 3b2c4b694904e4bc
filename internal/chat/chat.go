// Package chat stores room chat messages.
package chat

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wheelroom/api/internal/database"
	"github.com/wheelroom/api/internal/wheelroom"
)

const (
	MaxContentLength = 500
	DefaultLimit     = 50
	MaxLimit         = 100
)

type Rooms interface {
	FindByID(ctx context.Context, id string) (*wheelroom.Room, error)
}

type Service struct {
	db    *sql.DB
	rooms Rooms
	now   func() time.Time
}

func NewService(db *sql.DB, rooms Rooms) *Service {
	return &Service{db: db, rooms: rooms, now: time.Now}
}

// Send stores a text message from a room participant. The nickname is the
// sender's room nickname unless one is given.
func (s *Service) Send(ctx context.Context, userID, roomID, nickname, content string) (*wheelroom.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxContentLength {
		return nil, wheelroom.Validationf("message must be between 1 and %d characters", MaxContentLength)
	}
	p, err := s.member(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if nickname = strings.TrimSpace(nickname); nickname == "" {
		nickname = p.Nickname
	}
	return s.insert(ctx, wheelroom.ChatMessage{
		RoomID:   roomID,
		UserID:   userID,
		Nickname: nickname,
		Type:     wheelroom.MessageText,
		Content:  content,
	})
}

// SendSystem stores a message that has no author.
func (s *Service) SendSystem(ctx context.Context, roomID, content string) (*wheelroom.ChatMessage, error) {
	return s.insert(ctx, wheelroom.ChatMessage{
		RoomID:  roomID,
		Type:    wheelroom.MessageSystem,
		Content: content,
	})
}

// Reaction is an emoji sent to the room. Reactions are broadcast only.
type Reaction struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Emoji    string `json:"emoji"`
}

// React validates an emoji reaction from a participant.
func (s *Service) React(ctx context.Context, userID, roomID, emoji string) (Reaction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > 16 {
		return Reaction{}, wheelroom.Validationf("emoji is required")
	}
	p, err := s.member(ctx, userID, roomID)
	if err != nil {
		return Reaction{}, err
	}
	return Reaction{UserID: userID, Nickname: p.Nickname, Emoji: emoji}, nil
}

// List returns the room's messages newest first.
func (s *Service) List(ctx context.Context, roomID string, limit, skip int) ([]wheelroom.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	skip = max(skip, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, nickname, type, content, created_at
		FROM chat_messages
		WHERE room_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, roomID, limit, skip)
	if err != nil {
		return nil, wheelroom.Persistence("listing messages", err)
	}
	defer rows.Close()

	messages := []wheelroom.ChatMessage{}
	for rows.Next() {
		var m wheelroom.ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Nickname, &m.Type, &m.Content, &createdAt); err != nil {
			return nil, wheelroom.Persistence("reading message", err)
		}
		if m.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, wheelroom.Persistence("reading message", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wheelroom.Persistence("listing messages", err)
	}
	return messages, nil
}

// Clear deletes every message in the room.
func (s *Service) Clear(ctx context.Context, roomID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE room_id = ?`, roomID)
	if err != nil {
		return 0, wheelroom.Persistence("clearing messages", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (s *Service) member(ctx context.Context, userID, roomID string) (*wheelroom.Participant, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	p := room.Participant(userID)
	if userID == "" || p == nil {
		return nil, wheelroom.Forbiddenf("only room participants can chat")
	}
	return p, nil
}

func (s *Service) insert(ctx context.Context, m wheelroom.ChatMessage) (*wheelroom.ChatMessage, error) {
	m.ID = uuid.NewString()
	m.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room_id, user_id, nickname, type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.UserID, m.Nickname, string(m.Type), m.Content, database.FormatTime(m.CreatedAt))
	if err != nil {
		return nil, wheelroom.Persistence("inserting message", err)
	}
	return &m, nil
}
