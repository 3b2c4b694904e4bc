package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/chat"
	"github.com/wheelroom/api/internal/database/dbtest"
	"github.com/wheelroom/api/internal/history"
	"github.com/wheelroom/api/internal/identity"
	"github.com/wheelroom/api/internal/keylock"
	"github.com/wheelroom/api/internal/room"
	"github.com/wheelroom/api/internal/spin"
	"github.com/wheelroom/api/internal/wheel"
	"github.com/wheelroom/api/internal/wheelroom"
)

// heldScheduler never fires, so spinResult stays pending for the test.
type heldScheduler struct{}

func (heldScheduler) AfterFunc(time.Duration, func()) spin.Timer { return heldTimer{} }

type heldTimer struct{}

func (heldTimer) Stop() bool { return true }

type testEnv struct {
	t       *testing.T
	server  *Server
	handler http.Handler
	deps    Deps
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locks := keylock.New()
	rooms := room.NewRegistry(room.NewSQLiteStore(db), locks, room.WithPasswordCost(bcrypt.MinCost))
	wheels := wheel.NewStore(db, rooms, locks)
	hist := history.NewStore(db)
	broker := broadcast.NewBroker(64)

	deps := Deps{
		Logger:      logger,
		Rooms:       rooms,
		Wheels:      wheels,
		History:     hist,
		Chat:        chat.NewService(db, rooms),
		Spins:       spin.NewCoordinator(rooms, wheels, hist, broker, locks, logger, spin.WithScheduler(heldScheduler{})),
		Identity:    identity.NewIssuer("test-secret", time.Hour),
		Broker:      broker,
		Publisher:   broker,
		SpinLimiter: NewLimiter(100, 100),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv := New(":0", deps, nil)
	return &testEnv{t: t, server: srv, handler: srv.Handler(), deps: deps}
}

// do sends a JSON request. An empty token sends no Authorization header.
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type user struct {
	Token string
	ID    string
}

func (e *testEnv) session(nickname string) user {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/session", "", SessionRequest{Nickname: nickname})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("session status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	resp := decode[SessionResponse](e.t, rec)
	return user{Token: resp.Token, ID: resp.UserID}
}

// createRoom creates a room hosted by a new user. Rooms are private unless
// req says otherwise.
func (e *testEnv) createRoom(req CreateRoomRequest) (user, roomBody) {
	e.t.Helper()
	host := e.session("Hosty")
	if req.Name == "" {
		req.Name = "Friday lunch"
	}
	rec := e.do(http.MethodPost, "/api/rooms", host.Token, req)
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("create room status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	return host, decode[roomBody](e.t, rec)
}

func (e *testEnv) join(u user, code, password string) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do(http.MethodPost, "/api/rooms/join", u.Token, JoinRoomRequest{Code: code, Password: password})
}

func (e *testEnv) createWheel(host user, roomID string) wheelroom.Wheel {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/wheels", host.Token, wheel.CreateInput{
		RoomID: roomID,
		Title:  "Where to eat",
		Segments: []wheelroom.Segment{
			{Text: "Pizza", Color: "#e74c3c", Weight: 1},
			{Text: "Sushi", Color: "#3498db", Weight: 2},
			{Text: "Tacos", Color: "#2ecc71", Weight: 1},
		},
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("create wheel status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	return decode[wheelroom.Wheel](e.t, rec)
}

// roomBody mirrors RoomResponse for decoding.
type roomBody struct {
	wheelroom.Room
	HasPassword bool `json:"hasPassword"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	wantStatus(t, rec, status)
	if got := decode[ErrorResponse](t, rec).Code; got != code {
		t.Errorf("error code = %q, want %q", got, code)
	}
}

// nextEvent waits for the next event on sub.
func nextEvent(t *testing.T, sub *broadcast.Subscription) broadcast.Event {
	t.Helper()
	select {
	case data, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed")
		}
		var ev broadcast.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return broadcast.Event{}
}
