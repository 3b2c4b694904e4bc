// Package room owns rooms, their membership and host authority.
//
// The registry never broadcasts. Every mutating call returns the
// authoritative post-mutation room and the caller notifies the room group.
package room

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wheelroom/api/internal/keylock"
	"github.com/wheelroom/api/internal/wheelroom"
)

const (
	CodeLength         = 6
	maxCodeAttempts    = 10
	maxParticipantsCap = 100

	DefaultListLimit = 20
	MaxListLimit     = 100

	defaultHostNickname = "Host"
)

type Registry struct {
	store      Store
	locks      *keylock.Map
	now        func() time.Time
	newCode    func() string
	bcryptCost int
}

type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithCodeGenerator replaces the random room code source.
func WithCodeGenerator(gen func() string) Option {
	return func(r *Registry) { r.newCode = gen }
}

// WithPasswordCost sets the bcrypt cost for room passwords.
func WithPasswordCost(cost int) Option {
	return func(r *Registry) { r.bcryptCost = cost }
}

// NewRegistry returns a registry over store. locks must be shared with every
// other component that mutates room-scoped state.
func NewRegistry(store Store, locks *keylock.Map, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		locks:      locks,
		now:        time.Now,
		newCode:    RandomCode,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RandomCode returns CodeLength characters from A-Z and 2-7.
func RandomCode() string {
	return rand.Text()[:CodeLength]
}

type CreateParams struct {
	Name            string
	Description     string
	IsPublic        bool
	Password        string
	MaxParticipants int
	HostNickname    string
}

func (r *Registry) Create(ctx context.Context, hostID string, p CreateParams) (*wheelroom.Room, error) {
	if hostID == "" {
		return nil, wheelroom.Forbiddenf("caller identity required")
	}
	name := strings.TrimSpace(p.Name)
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := checkDescription(p.Description); err != nil {
		return nil, err
	}
	if p.MaxParticipants < 0 || p.MaxParticipants > maxParticipantsCap {
		return nil, wheelroom.Validationf("maxParticipants must be between 1 and %d", maxParticipantsCap)
	}
	nickname := strings.TrimSpace(p.HostNickname)
	if nickname == "" {
		nickname = defaultHostNickname
	}
	if err := checkNickname(nickname); err != nil {
		return nil, err
	}

	var hash string
	if p.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(p.Password), r.bcryptCost)
		if err != nil {
			return nil, wheelroom.Validationf("password: %v", err)
		}
		hash = string(b)
	}

	now := r.now().UTC()
	room := &wheelroom.Room{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     p.Description,
		HostID:          hostID,
		IsPublic:        p.IsPublic,
		PasswordHash:    hash,
		MaxParticipants: p.MaxParticipants,
		IsActive:        true,
		Participants: []wheelroom.Participant{{
			UserID:   hostID,
			Nickname: nickname,
			Role:     wheelroom.RoleHost,
			Status:   wheelroom.StatusOnline,
			JoinedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for range maxCodeAttempts {
		room.Code = r.newCode()
		inUse, err := r.store.CodeInUse(ctx, room.Code)
		if err != nil {
			return nil, wheelroom.Persistence("checking room code", err)
		}
		if inUse {
			continue
		}
		err = r.store.Insert(ctx, room)
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return nil, wheelroom.Persistence("inserting room", err)
		}
		return room, nil
	}
	return nil, fmt.Errorf("allocating room code: no free code after %d attempts", maxCodeAttempts)
}

func (r *Registry) FindByID(ctx context.Context, id string) (*wheelroom.Room, error) {
	room, err := r.store.ByID(ctx, id)
	return room, storeErr("loading room", err)
}

// FindByCode only finds active rooms.
func (r *Registry) FindByCode(ctx context.Context, code string) (*wheelroom.Room, error) {
	room, err := r.store.ByActiveCode(ctx, normalizeCode(code))
	return room, storeErr("loading room", err)
}

type JoinParams struct {
	Code     string
	Nickname string
	Password string
}

// Join adds userID to the room with the given code, or marks an existing
// member online again. Capacity only applies to new members.
func (r *Registry) Join(ctx context.Context, userID string, p JoinParams) (*wheelroom.Room, error) {
	if userID == "" {
		return nil, wheelroom.Forbiddenf("caller identity required")
	}
	code := normalizeCode(p.Code)
	if utf8.RuneCountInString(code) != CodeLength {
		return nil, wheelroom.Validationf("room code must be %d characters", CodeLength)
	}
	nickname := strings.TrimSpace(p.Nickname)
	if err := checkNickname(nickname); err != nil {
		return nil, err
	}

	found, err := r.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(found.ID)
	defer unlock()

	room, err := r.FindByID(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, wheelroom.NotFoundf("room not found")
	}
	if err := r.checkPassword(room, p.Password); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if existing := room.Participant(userID); existing != nil {
		existing.Status = wheelroom.StatusOnline
		existing.LastSeenAt = &now
	} else {
		if room.Full() {
			return nil, fmt.Errorf("%w: %d of %d places taken", wheelroom.ErrCapacity, len(room.Participants), room.MaxParticipants)
		}
		room.Participants = append(room.Participants, wheelroom.Participant{
			UserID:   userID,
			Nickname: nickname,
			Role:     wheelroom.RolePlayer,
			Status:   wheelroom.StatusOnline,
			JoinedAt: now,
		})
	}

	return r.save(ctx, room, now)
}

func (r *Registry) checkPassword(room *wheelroom.Room, password string) error {
	if room.IsPublic {
		return nil
	}
	if !room.HasPassword() {
		if password != "" {
			return wheelroom.Forbiddenf("incorrect password")
		}
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(password)) != nil {
		return wheelroom.Forbiddenf("incorrect password")
	}
	return nil
}

// Leave marks userID offline. The participant record is kept. Leaving a
// room one is not a member of changes nothing.
func (r *Registry) Leave(ctx context.Context, userID, roomID string) (*wheelroom.Room, error) {
	unlock := r.locks.Lock(roomID)
	defer unlock()

	room, err := r.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	p := room.Participant(userID)
	if p == nil {
		return room, nil
	}
	now := r.now().UTC()
	p.Status = wheelroom.StatusOffline
	p.LastSeenAt = &now
	return r.save(ctx, room, now)
}

// SetStatus records a member's presence.
func (r *Registry) SetStatus(ctx context.Context, userID, roomID string, status wheelroom.Status) (*wheelroom.Room, error) {
	if !status.Valid() {
		return nil, wheelroom.Validationf("unknown status %q", status)
	}

	unlock := r.locks.Lock(roomID)
	defer unlock()

	room, err := r.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	p := room.Participant(userID)
	if p == nil {
		return nil, wheelroom.NotFoundf("participant not found")
	}
	now := r.now().UTC()
	p.Status = status
	p.LastSeenAt = &now
	return r.save(ctx, room, now)
}

// RoomPatch changes only the fields that are set.
type RoomPatch struct {
	Name        *string
	Description *string
}

func (r *Registry) Update(ctx context.Context, userID, roomID string, patch RoomPatch) (*wheelroom.Room, error) {
	var name string
	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
		if err := checkName(name); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		if err := checkDescription(*patch.Description); err != nil {
			return nil, err
		}
	}

	unlock := r.locks.Lock(roomID)
	defer unlock()

	room, err := r.hostRoom(ctx, userID, roomID, "update room")
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		room.Name = name
	}
	if patch.Description != nil {
		room.Description = *patch.Description
	}
	return r.save(ctx, room, r.now().UTC())
}

// UpdateParticipantRole changes a member's role. It does not move HostID:
// room-level authority stays with the creator.
func (r *Registry) UpdateParticipantRole(ctx context.Context, hostID, roomID, targetUserID string, role wheelroom.Role) (*wheelroom.Room, error) {
	if !role.Valid() {
		return nil, wheelroom.Validationf("unknown role %q", role)
	}

	unlock := r.locks.Lock(roomID)
	defer unlock()

	room, err := r.hostRoom(ctx, hostID, roomID, "change roles")
	if err != nil {
		return nil, err
	}
	p := room.Participant(targetUserID)
	if p == nil {
		return nil, wheelroom.NotFoundf("participant not found")
	}
	p.Role = role
	return r.save(ctx, room, r.now().UTC())
}

// Close deactivates the room and frees its code. Rooms are never deleted.
func (r *Registry) Close(ctx context.Context, hostID, roomID string) (*wheelroom.Room, error) {
	unlock := r.locks.Lock(roomID)
	defer unlock()

	room, err := r.hostRoom(ctx, hostID, roomID, "close room")
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return room, nil
	}
	room.IsActive = false
	return r.save(ctx, room, r.now().UTC())
}

// ListPublic returns active public rooms, newest first.
func (r *Registry) ListPublic(ctx context.Context, limit, skip int) ([]wheelroom.Room, error) {
	limit, skip = Page(limit, skip, DefaultListLimit, MaxListLimit)
	rooms, err := r.store.ListPublic(ctx, limit, skip)
	if err != nil {
		return nil, wheelroom.Persistence("listing rooms", err)
	}
	return rooms, nil
}

func (r *Registry) OnlineParticipants(ctx context.Context, roomID string) ([]wheelroom.Participant, error) {
	room, err := r.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	online := []wheelroom.Participant{}
	for _, p := range room.Participants {
		if p.Status == wheelroom.StatusOnline {
			online = append(online, p)
		}
	}
	return online, nil
}

// RequireHost returns the room if userID is its host.
func (r *Registry) RequireHost(ctx context.Context, userID, roomID string) (*wheelroom.Room, error) {
	return r.hostRoom(ctx, userID, roomID, "manage this room")
}

func (r *Registry) hostRoom(ctx context.Context, userID, roomID, action string) (*wheelroom.Room, error) {
	room, err := r.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if userID == "" || room.HostID != userID {
		return nil, wheelroom.Forbiddenf("only the host can %s", action)
	}
	return room, nil
}

func (r *Registry) save(ctx context.Context, room *wheelroom.Room, now time.Time) (*wheelroom.Room, error) {
	room.UpdatedAt = now
	if err := r.store.Save(ctx, room); err != nil {
		return nil, storeErr("saving room", err)
	}
	return room, nil
}

// Page clamps limit and skip for list queries.
func Page(limit, skip, def, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, wheelroom.ErrNotFound) {
		return err
	}
	return wheelroom.Persistence(op, err)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func checkName(name string) error {
	if n := utf8.RuneCountInString(name); n < 3 || n > 50 {
		return wheelroom.Validationf("name must be between 3 and 50 characters")
	}
	return nil
}

func checkDescription(desc string) error {
	if utf8.RuneCountInString(desc) > 200 {
		return wheelroom.Validationf("description must be at most 200 characters")
	}
	return nil
}

func checkNickname(nickname string) error {
	if n := utf8.RuneCountInString(nickname); n < 2 || n > 20 {
		return wheelroom.Validationf("nickname must be between 2 and 20 characters")
	}
	return nil
}
