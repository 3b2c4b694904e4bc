package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/chat"
	"github.com/wheelroom/api/internal/room"
)

type SendMessageRequest struct {
	Content  string `json:"content"`
	Nickname string `json:"nickname,omitempty"`
}

type EmojiRequest struct {
	Emoji string `json:"emoji"`
}

func handleListMessages(msgs *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, skip, err := page(r)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		list, err := msgs.List(r.Context(), chi.URLParam(r, "roomID"), limit, skip)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleSendMessage(msgs *chat.Service, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		roomID := chi.URLParam(r, "roomID")
		msg, err := msgs.Send(r.Context(), callerFrom(r).UserID, roomID, req.Nickname, req.Content)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, roomID, broadcast.NewMessage, msg)
		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleEmoji(msgs *chat.Service, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EmojiRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		roomID := chi.URLParam(r, "roomID")
		reaction, err := msgs.React(r.Context(), callerFrom(r).UserID, roomID, req.Emoji)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, roomID, broadcast.EmojiReaction, reaction)
		writeJSON(w, http.StatusAccepted, reaction)
	}
}

func handleClearMessages(rooms *room.Registry, msgs *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, err := rooms.RequireHost(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "roomID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		n, err := msgs.Clear(r.Context(), rm.ID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ClearedEvent{Removed: n})
	}
}
