package wheel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wheelroom/api/internal/database/dbtest"
	"github.com/wheelroom/api/internal/keylock"
	"github.com/wheelroom/api/internal/room"
	"github.com/wheelroom/api/internal/wheelroom"
)

type fixture struct {
	store  *Store
	rooms  *room.Registry
	roomID string
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	locks := keylock.New()
	rooms := room.NewRegistry(room.NewSQLiteStore(db), locks, room.WithPasswordCost(bcrypt.MinCost))

	r, err := rooms.Create(context.Background(), "host", room.CreateParams{Name: "Wheel room", IsPublic: true})
	require.NoError(t, err)
	_, err = rooms.Join(context.Background(), "amy", room.JoinParams{Code: r.Code, Nickname: "Amy"})
	require.NoError(t, err)

	return fixture{store: NewStore(db, rooms, locks), rooms: rooms, roomID: r.ID}
}

func twoSegments() []wheelroom.Segment {
	return []wheelroom.Segment{
		{Text: "A", Color: "#f00", Weight: 1, Order: 0},
		{Text: "B", Color: "#0f0", Weight: 3, Order: 1},
	}
}

func TestCreateDefaults(t *testing.T) {
	f := setup(t)

	w, err := f.store.Create(context.Background(), "host", CreateInput{
		RoomID:   f.roomID,
		Title:    "Lunch",
		Segments: twoSegments(),
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultSpinDuration, w.SpinDuration)
	assert.True(t, w.SoundEnabled)
	assert.True(t, w.ConfettiEnabled)
	require.Len(t, w.Segments, 2)
	for _, s := range w.Segments {
		assert.NotEmpty(t, s.ID)
	}
	assert.NotEqual(t, w.Segments[0].ID, w.Segments[1].ID)

	got, err := f.store.FindByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Segments, got.Segments)
	assert.Equal(t, "Lunch", got.Title)
}

func TestCreateClampsDuration(t *testing.T) {
	f := setup(t)
	off := false

	tests := []struct {
		in, want int
	}{
		{1, MinSpinDuration},
		{3000, 3000},
		{60000, MaxSpinDuration},
	}
	for _, tt := range tests {
		w, err := f.store.Create(context.Background(), "host", CreateInput{
			RoomID:       f.roomID,
			Title:        "Clamp",
			Segments:     twoSegments(),
			SpinDuration: tt.in,
			SoundEnabled: &off,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, w.SpinDuration)
		assert.False(t, w.SoundEnabled)
	}
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"no segments", CreateInput{RoomID: f.roomID, Title: "Empty"}},
		{"short title", CreateInput{RoomID: f.roomID, Title: "ab", Segments: twoSegments()}},
		{"zero weight", CreateInput{RoomID: f.roomID, Title: "Zero", Segments: []wheelroom.Segment{{Text: "A", Weight: 0}}}},
		{"heavy weight", CreateInput{RoomID: f.roomID, Title: "Heavy", Segments: []wheelroom.Segment{{Text: "A", Weight: 101}}}},
		{"blank text", CreateInput{RoomID: f.roomID, Title: "Blank", Segments: []wheelroom.Segment{{Text: " ", Weight: 1}}}},
		{"duplicate ids", CreateInput{RoomID: f.roomID, Title: "Twins", Segments: []wheelroom.Segment{
			{ID: "same", Text: "A", Weight: 1},
			{ID: "same", Text: "B", Weight: 1},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.store.Create(context.Background(), "host", tt.in)
			assert.ErrorIs(t, err, wheelroom.ErrValidation)
		})
	}
}

func TestOnlyHostManagesWheels(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.store.Create(ctx, "amy", CreateInput{RoomID: f.roomID, Title: "Mine", Segments: twoSegments()})
	assert.ErrorIs(t, err, wheelroom.ErrAuthorization)

	w, err := f.store.Create(ctx, "host", CreateInput{RoomID: f.roomID, Title: "Host's", Segments: twoSegments()})
	require.NoError(t, err)

	title := "Hijacked"
	_, err = f.store.Update(ctx, "amy", UpdateInput{WheelID: w.ID, Title: &title})
	assert.ErrorIs(t, err, wheelroom.ErrAuthorization)

	_, err = f.store.Delete(ctx, "amy", w.ID)
	assert.ErrorIs(t, err, wheelroom.ErrAuthorization)

	// A HOST role does not grant wheel authority; only the creator does.
	_, err = f.rooms.UpdateParticipantRole(ctx, "host", f.roomID, "amy", wheelroom.RoleHost)
	require.NoError(t, err)
	_, err = f.store.Delete(ctx, "amy", w.ID)
	assert.ErrorIs(t, err, wheelroom.ErrAuthorization)

	_, err = f.store.Create(ctx, "host", CreateInput{RoomID: "missing", Title: "Nowhere", Segments: twoSegments()})
	assert.ErrorIs(t, err, wheelroom.ErrNotFound)
}

func TestUpdateIsPartial(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	w, err := f.store.Create(ctx, "host", CreateInput{RoomID: f.roomID, Title: "Before", Segments: twoSegments(), SpinDuration: 4000})
	require.NoError(t, err)

	title := "After"
	updated, err := f.store.Update(ctx, "host", UpdateInput{WheelID: w.ID, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, w.Segments, updated.Segments)
	assert.Equal(t, 4000, updated.SpinDuration)
	assert.True(t, updated.ConfettiEnabled)

	kept := w.Segments[1]
	kept.Text = "B+"
	segments := []wheelroom.Segment{kept, {Text: "C", Color: "#00f", Weight: 2, Order: 2}}
	duration := 99999
	off := false
	updated, err = f.store.Update(ctx, "host", UpdateInput{
		WheelID:         w.ID,
		Segments:        segments,
		SpinDuration:    &duration,
		ConfettiEnabled: &off,
	})
	require.NoError(t, err)
	require.Len(t, updated.Segments, 2)
	assert.Equal(t, kept.ID, updated.Segments[0].ID, "ids of kept segments survive")
	assert.Equal(t, "B+", updated.Segments[0].Text)
	assert.NotEmpty(t, updated.Segments[1].ID)
	assert.NotEqual(t, kept.ID, updated.Segments[1].ID)
	assert.Equal(t, 0, updated.Segments[0].Order, "order follows list position")
	assert.Equal(t, 1, updated.Segments[1].Order)
	assert.Equal(t, MaxSpinDuration, updated.SpinDuration)
	assert.False(t, updated.ConfettiEnabled)
	assert.Equal(t, "After", updated.Title)

	stored, err := f.store.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Segments, stored.Segments)

	_, err = f.store.Update(ctx, "host", UpdateInput{WheelID: w.ID, Segments: []wheelroom.Segment{}})
	assert.ErrorIs(t, err, wheelroom.ErrValidation)
	_, err = f.store.Update(ctx, "host", UpdateInput{WheelID: w.ID, Segments: []wheelroom.Segment{kept, kept}})
	assert.ErrorIs(t, err, wheelroom.ErrValidation, "duplicate segment ids")
	_, err = f.store.Update(ctx, "host", UpdateInput{WheelID: "missing", Title: &title})
	assert.ErrorIs(t, err, wheelroom.ErrNotFound)
}

func TestLatestAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	f.store.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	_, err := f.store.FindLatestByRoom(ctx, f.roomID)
	assert.ErrorIs(t, err, wheelroom.ErrNotFound)

	first, err := f.store.Create(ctx, "host", CreateInput{RoomID: f.roomID, Title: "First", Segments: twoSegments()})
	require.NoError(t, err)
	second, err := f.store.Create(ctx, "host", CreateInput{RoomID: f.roomID, Title: "Second", Segments: twoSegments()})
	require.NoError(t, err)

	latest, err := f.store.FindLatestByRoom(ctx, f.roomID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = f.store.Delete(ctx, "host", second.ID)
	require.NoError(t, err)

	latest, err = f.store.FindLatestByRoom(ctx, f.roomID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	_, err = f.store.FindByID(ctx, second.ID)
	assert.ErrorIs(t, err, wheelroom.ErrNotFound)
	_, err = f.store.Delete(ctx, "host", second.ID)
	assert.ErrorIs(t, err, wheelroom.ErrNotFound)
}

func TestSegmentOrderFollowsPosition(t *testing.T) {
	f := setup(t)

	w, err := f.store.Create(context.Background(), "host", CreateInput{
		RoomID: f.roomID,
		Title:  "Ordered",
		Segments: []wheelroom.Segment{
			{Text: "First", Weight: 1, Order: 7},
			{Text: "Second", Weight: 1, Order: 7},
			{Text: "Third", Weight: 1},
		},
	})
	require.NoError(t, err)

	for i, s := range w.Segments {
		assert.Equal(t, i, s.Order, s.Text)
	}
}
