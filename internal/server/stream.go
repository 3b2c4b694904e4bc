package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/wheelroom"
)

// SyncEvent is sent to a stream right after it connects so the client
// starts from current state.
const SyncEvent = "sync"

type SyncSnapshot struct {
	Room       RoomResponse          `json:"room"`
	Wheel      *wheelroom.Wheel      `json:"wheel"`
	LatestSpin *wheelroom.SpinRecord `json:"latestSpin"`
}

// stream is one connected member of a room group.
type stream struct {
	caller caller
	room   *wheelroom.Room
	sub    *broadcast.Subscription
}

// openStream authenticates the caller, checks membership and subscribes a
// fresh connection to the room group. It writes the error response itself.
func openStream(w http.ResponseWriter, r *http.Request, deps Deps) (*stream, bool) {
	c, ok := callerFromRequest(r, deps.Identity)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication", "token query parameter required")
		return nil, false
	}

	rm, err := deps.Rooms.FindByID(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeFailure(w, r, err)
		return nil, false
	}
	if !rm.IsActive {
		writeFailure(w, r, wheelroom.NotFoundf("room is closed"))
		return nil, false
	}
	if rm.Participant(c.UserID) == nil {
		writeFailure(w, r, wheelroom.Forbiddenf("join the room before listening to it"))
		return nil, false
	}

	sub := deps.Broker.Subscribe(rm.ID, uuid.NewString())
	return &stream{caller: c, room: rm, sub: sub}, true
}

// online marks the member online and tells the room.
func (s *stream) online(r *http.Request, deps Deps) {
	rm, err := deps.Rooms.SetStatus(r.Context(), s.caller.UserID, s.room.ID, wheelroom.StatusOnline)
	if err != nil {
		loggerFrom(r).Warn("marking member online failed", "room_id", s.room.ID, "user_id", s.caller.UserID, "error", err)
		return
	}
	s.room = rm
	publish(r, deps.Publisher, rm.ID, broadcast.StatusUpdated, StatusEvent{UserID: s.caller.UserID, Status: wheelroom.StatusOnline})
}

// close unsubscribes and leaves the room the way an explicit leave does.
func (s *stream) close(r *http.Request, deps Deps) {
	deps.Broker.Unsubscribe(s.sub)

	rm, err := deps.Rooms.Leave(context.WithoutCancel(r.Context()), s.caller.UserID, s.room.ID)
	if err != nil {
		loggerFrom(r).Warn("leaving room on disconnect failed", "room_id", s.room.ID, "user_id", s.caller.UserID, "error", err)
		return
	}
	publish(r, deps.Publisher, rm.ID, broadcast.ParticipantLeft, participantEvent(rm, s.caller.UserID))
}

// snapshot encodes the sync event for this stream's room.
func (s *stream) snapshot(ctx context.Context, deps Deps) ([]byte, error) {
	snap := SyncSnapshot{Room: roomResponse(s.room)}

	wh, err := deps.Wheels.FindLatestByRoom(ctx, s.room.ID)
	switch {
	case err == nil:
		snap.Wheel = wh
	case !isNotFound(err):
		return nil, err
	}

	rec, err := deps.History.Latest(ctx, s.room.ID)
	switch {
	case err == nil:
		snap.LatestSpin = rec
	case !isNotFound(err):
		return nil, err
	}

	data, err := json.Marshal(broadcast.NewEvent(SyncEvent, s.room.ID, snap))
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// eventType reads the type field of an encoded event.
func eventType(data []byte) string {
	var ev struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(data, &ev) != nil || ev.Type == "" {
		return "message"
	}
	return ev.Type
}
