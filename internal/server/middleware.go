package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wheelroom/api/internal/identity"
)

type ctxKey int

const (
	ctxKeyCaller ctxKey = iota
	ctxKeyLogger
)

// caller is the identity behind a request.
type caller struct {
	UserID   string
	Nickname string
}

// requireCaller rejects requests without a valid bearer token.
func requireCaller(iss *identity.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := callerFromRequest(r, iss)
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication", "not authenticated")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyCaller, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerFromRequest reads the Authorization header, falling back to the
// token query parameter used by browser stream clients.
func callerFromRequest(r *http.Request, iss *identity.Issuer) (caller, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return caller{}, false
	}
	claims, err := iss.Parse(token)
	if err != nil {
		return caller{}, false
	}
	return caller{UserID: claims.UserID(), Nickname: claims.Nickname}, true
}

func callerFrom(r *http.Request) caller {
	return r.Context().Value(ctxKeyCaller).(caller)
}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

func loggerFrom(r *http.Request) *slog.Logger {
	if l, ok := r.Context().Value(ctxKeyLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
