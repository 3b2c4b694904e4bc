package server

import (
	"errors"
	"io"
	"math/rand/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/history"
	"github.com/wheelroom/api/internal/room"
	"github.com/wheelroom/api/internal/spin"
	"github.com/wheelroom/api/internal/wheel"
	"github.com/wheelroom/api/internal/wheelroom"
)

// SpinRequest starts a spin. WheelID defaults to the room's current wheel
// and Seed to a random one.
type SpinRequest struct {
	WheelID  string `json:"wheelId,omitempty"`
	Seed     *int64 `json:"seed,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

func handleSpin(spins *spin.Coordinator, wheels *wheel.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SpinRequest
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			badBody(w)
			return
		}

		roomID := chi.URLParam(r, "roomID")
		if req.WheelID == "" {
			wh, err := wheels.FindLatestByRoom(r.Context(), roomID)
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			req.WheelID = wh.ID
		}

		seed := rand.Int64()
		if req.Seed != nil {
			seed = *req.Seed
		}

		res, err := spins.Spin(r.Context(), spin.Request{
			CallerID:        callerFrom(r).UserID,
			RoomID:          roomID,
			WheelID:         req.WheelID,
			Seed:            seed,
			SpinnerNickname: req.Nickname,
		})
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleListSpins(hist *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, skip, err := page(r)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		records, err := hist.List(r.Context(), chi.URLParam(r, "roomID"), limit, skip)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleLatestSpin(hist *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := hist.Latest(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleStatistics(rooms *room.Registry, hist *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		if _, err := rooms.FindByID(r.Context(), roomID); err != nil {
			writeFailure(w, r, err)
			return
		}

		stats, err := hist.Statistics(r.Context(), roomID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleClearSpins(rooms *room.Registry, hist *history.Store, pub broadcast.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, err := rooms.RequireHost(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "roomID"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		n, err := hist.Clear(r.Context(), rm.ID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		publish(r, pub, rm.ID, broadcast.HistoryCleared, ClearedEvent{Removed: n})
		writeJSON(w, http.StatusOK, ClearedEvent{Removed: n})
	}
}

// isNotFound reports whether err is a missing-entity error. Stream
// snapshots treat those as empty sections.
func isNotFound(err error) bool {
	return errors.Is(err, wheelroom.ErrNotFound)
}
