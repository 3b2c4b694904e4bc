package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/wheel"
)

func handleCreateWheel(wheels *wheel.Store, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wheel.CreateInput
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		wh, err := wheels.Create(r.Context(), callerFrom(r).UserID, req)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, wh.RoomID, broadcast.WheelUpdated, wh)
		writeJSON(w, http.StatusCreated, wh)
	}
}

func handleGetWheel(wheels *wheel.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wh, err := wheels.FindByID(r.Context(), chi.URLParam(r, "wheelID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wh)
	}
}

// handleRoomWheel returns the room's most recently created wheel.
func handleRoomWheel(wheels *wheel.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wh, err := wheels.FindLatestByRoom(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wh)
	}
}

func handleUpdateWheel(wheels *wheel.Store, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wheel.UpdateInput
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}
		req.WheelID = chi.URLParam(r, "wheelID")

		wh, err := wheels.Update(r.Context(), callerFrom(r).UserID, req)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, wh.RoomID, broadcast.WheelUpdated, wh)
		writeJSON(w, http.StatusOK, wh)
	}
}

func handleDeleteWheel(wheels *wheel.Store, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wh, err := wheels.Delete(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "wheelID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, wh.RoomID, broadcast.WheelDeleted, WheelDeletedEvent{WheelID: wh.ID})
		writeJSON(w, http.StatusOK, wh)
	}
}
