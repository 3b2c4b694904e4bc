package server

import (
	"context"
	"net/http"
	"time"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/chat"
	"github.com/wheelroom/api/internal/wheelroom"
)

const publishTimeout = 5 * time.Second

type ParticipantEvent struct {
	UserID   string           `json:"userId"`
	Nickname string           `json:"nickname"`
	Role     wheelroom.Role   `json:"role"`
	Status   wheelroom.Status `json:"status"`
	Online   int              `json:"online"`
}

func participantEvent(room *wheelroom.Room, userID string) ParticipantEvent {
	ev := ParticipantEvent{UserID: userID}
	if p := room.Participant(userID); p != nil {
		ev.Nickname, ev.Role, ev.Status = p.Nickname, p.Role, p.Status
	}
	for _, p := range room.Participants {
		if p.Status == wheelroom.StatusOnline {
			ev.Online++
		}
	}
	return ev
}

type RoomClosedEvent struct {
	RoomID string `json:"roomId"`
}

type WheelDeletedEvent struct {
	WheelID string `json:"wheelId"`
}

type ClearedEvent struct {
	Removed int64 `json:"removed"`
}

// publish sends an event to the room group. The mutation behind it has
// already happened, so failures are only logged.
func publish(r *http.Request, pub broadcast.Publisher, roomID, typ string, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), publishTimeout)
	defer cancel()
	if err := pub.Publish(ctx, roomID, broadcast.NewEvent(typ, roomID, payload)); err != nil {
		loggerFrom(r).Error("publishing event failed", "type", typ, "room_id", roomID, "error", err)
	}
}

// announce stores a system chat line and shows it to the room.
func announce(r *http.Request, svc *chat.Service, pub broadcast.Publisher, roomID, text string) {
	msg, err := svc.SendSystem(context.WithoutCancel(r.Context()), roomID, text)
	if err != nil {
		loggerFrom(r).Warn("storing system message failed", "room_id", roomID, "error", err)
		return
	}
	publish(r, pub, roomID, broadcast.NewMessage, msg)
}
