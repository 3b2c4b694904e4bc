package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/chat"
	"github.com/wheelroom/api/internal/room"
	"github.com/wheelroom/api/internal/wheelroom"
)

// RoomResponse is a room as clients see it. The password hash never
// leaves the server.
type RoomResponse struct {
	*wheelroom.Room
	HasPassword bool `json:"hasPassword"`
}

func roomResponse(rm *wheelroom.Room) RoomResponse {
	return RoomResponse{Room: rm, HasPassword: rm.HasPassword()}
}

type CreateRoomRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	IsPublic        *bool  `json:"isPublic,omitempty"`
	Password        string `json:"password,omitempty"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
	Nickname        string `json:"nickname,omitempty"`
}

type JoinRoomRequest struct {
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

type UpdateRoomRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type UpdateStatusRequest struct {
	Status wheelroom.Status `json:"status"`
}

type UpdateRoleRequest struct {
	Role wheelroom.Role `json:"role"`
}

type RoleEvent struct {
	UserID string         `json:"userId"`
	Role   wheelroom.Role `json:"role"`
}

type StatusEvent struct {
	UserID string           `json:"userId"`
	Status wheelroom.Status `json:"status"`
}

func handleCreateRoom(rooms *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		c := callerFrom(r)
		nickname := strings.TrimSpace(req.Nickname)
		if nickname == "" {
			nickname = c.Nickname
		}
		isPublic := false
		if req.IsPublic != nil {
			isPublic = *req.IsPublic
		}

		rm, err := rooms.Create(r.Context(), c.UserID, room.CreateParams{
			Name:            req.Name,
			Description:     req.Description,
			IsPublic:        isPublic,
			Password:        req.Password,
			MaxParticipants: req.MaxParticipants,
			HostNickname:    nickname,
		})
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		loggerFrom(r).Info("room created", "room_id", rm.ID, "code", rm.Code, "host_id", rm.HostID)
		writeJSON(w, http.StatusCreated, roomResponse(rm))
	}
}

func handleJoinRoom(rooms *room.Registry, msgs *chat.Service, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRoomRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		c := callerFrom(r)
		nickname := strings.TrimSpace(req.Nickname)
		if nickname == "" {
			nickname = c.Nickname
		}

		rm, err := rooms.Join(r.Context(), c.UserID, room.JoinParams{
			Code:     req.Code,
			Nickname: nickname,
			Password: req.Password,
		})
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		ev := participantEvent(rm, c.UserID)
		publish(r, pub, rm.ID, broadcast.ParticipantJoined, ev)
		announce(r, msgs, pub, rm.ID, fmt.Sprintf("%s joined the room", ev.Nickname))

		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func handleLeaveRoom(rooms *room.Registry, msgs *chat.Service, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := callerFrom(r)
		roomID := chi.URLParam(r, "roomID")

		rm, err := rooms.Leave(r.Context(), c.UserID, roomID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		if rm.Participant(c.UserID) != nil {
			ev := participantEvent(rm, c.UserID)
			publish(r, pub, rm.ID, broadcast.ParticipantLeft, ev)
			announce(r, msgs, pub, rm.ID, fmt.Sprintf("%s left the room", ev.Nickname))
		}

		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func handleListRooms(rooms *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, skip, err := page(r)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		list, err := rooms.ListPublic(r.Context(), limit, skip)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		resp := make([]RoomResponse, len(list))
		for i := range list {
			resp[i] = roomResponse(&list[i])
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetRoom(rooms *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, err := rooms.FindByID(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func handleGetRoomByCode(rooms *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, err := rooms.FindByCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func handleUpdateRoom(rooms *room.Registry, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateRoomRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		rm, err := rooms.Update(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "roomID"), room.RoomPatch{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		resp := roomResponse(rm)
		publish(r, pub, rm.ID, broadcast.RoomUpdated, resp)
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCloseRoom(rooms *room.Registry, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, err := rooms.Close(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "roomID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, rm.ID, broadcast.RoomClosed, RoomClosedEvent{RoomID: rm.ID})
		loggerFrom(r).Info("room closed", "room_id", rm.ID)
		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func handleUpdateStatus(rooms *room.Registry, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateStatusRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		c := callerFrom(r)
		rm, err := rooms.SetStatus(r.Context(), c.UserID, chi.URLParam(r, "roomID"), req.Status)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, rm.ID, broadcast.StatusUpdated, StatusEvent{UserID: c.UserID, Status: req.Status})
		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func handleUpdateRole(rooms *room.Registry, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateRoleRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		target := chi.URLParam(r, "userID")
		rm, err := rooms.UpdateParticipantRole(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "roomID"), target, req.Role)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, rm.ID, broadcast.RoleUpdated, RoleEvent{UserID: target, Role: req.Role})
		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func handleOnlineParticipants(rooms *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		online, err := rooms.OnlineParticipants(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, online)
	}
}
