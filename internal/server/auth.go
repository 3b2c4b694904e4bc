package server

import (
	"net/http"
	"strings"

	"github.com/wheelroom/api/internal/identity"
)

type SessionRequest struct {
	Nickname string `json:"nickname"`
}

type SessionResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// handleSession issues a guest identity. Clients send the token as a
// bearer header, or as ?token= on stream endpoints.
func handleSession(iss *identity.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w)
			return
		}

		req.Nickname = strings.TrimSpace(req.Nickname)
		token, userID, err := iss.Guest(req.Nickname)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, SessionResponse{
			Token:    token,
			UserID:   userID,
			Nickname: req.Nickname,
		})
	}
}
