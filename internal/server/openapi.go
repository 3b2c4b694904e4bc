package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/wheelroom/api/internal/chat"
	"github.com/wheelroom/api/internal/handler/health"
	"github.com/wheelroom/api/internal/spin"
	"github.com/wheelroom/api/internal/wheel"
	"github.com/wheelroom/api/internal/wheelroom"
)

// operation describes one route for the generated document.
type operation struct {
	method, path  string
	summary, desc string
	params        any
	req           any
	resp          any
	status        int
	contentType   string
	errs          []int
}

type roomPath struct {
	RoomID string `path:"roomID"`
}

type codePath struct {
	Code string `path:"code"`
}

type wheelPath struct {
	WheelID string `path:"wheelID"`
}

type participantPath struct {
	RoomID string `path:"roomID"`
	UserID string `path:"userID"`
}

type pageQuery struct {
	Limit int `query:"limit"`
	Skip  int `query:"skip"`
}

type roomPageQuery struct {
	RoomID string `path:"roomID"`
	Limit  int    `query:"limit"`
	Skip   int    `query:"skip"`
}

type streamQuery struct {
	RoomID string `path:"roomID"`
	Token  string `query:"token" required:"true"`
}

var operations = []operation{
	{method: http.MethodGet, path: "/healthz", summary: "Health check",
		desc: "Returns the health status of backend dependencies.",
		resp: health.Report{}, status: http.StatusOK, errs: []int{http.StatusServiceUnavailable}},
	{method: http.MethodPost, path: "/api/session", summary: "Start a guest session",
		desc: "Issues a bearer token carrying a fresh user id for the nickname.",
		req:  SessionRequest{}, resp: SessionResponse{}, status: http.StatusCreated, errs: []int{http.StatusBadRequest}},

	{method: http.MethodGet, path: "/api/rooms", params: pageQuery{}, summary: "List public rooms",
		desc: "Active public rooms, newest first. Supports limit and skip.",
		resp: []RoomResponse{}, status: http.StatusOK, errs: []int{http.StatusBadRequest}},
	{method: http.MethodPost, path: "/api/rooms", summary: "Create room",
		desc: "Creates a room with the caller as host. Requires Bearer token.",
		req:  CreateRoomRequest{}, resp: RoomResponse{}, status: http.StatusCreated,
		errs: []int{http.StatusBadRequest, http.StatusUnauthorized}},
	{method: http.MethodPost, path: "/api/rooms/join", summary: "Join room",
		desc: "Joins an active room by code. Returning members are marked online again.",
		req:  JoinRoomRequest{}, resp: RoomResponse{}, status: http.StatusOK,
		errs: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict}},
	{method: http.MethodGet, path: "/api/rooms/code/{code}", params: codePath{}, summary: "Find room by code",
		desc: "Only active rooms are found.",
		resp: RoomResponse{}, status: http.StatusOK, errs: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/rooms/{roomID}", params: roomPath{}, summary: "Get room",
		resp: RoomResponse{}, status: http.StatusOK, errs: []int{http.StatusNotFound}},
	{method: http.MethodPatch, path: "/api/rooms/{roomID}", params: roomPath{}, summary: "Update room",
		desc: "Host only. Broadcasts roomUpdated.",
		req:  UpdateRoomRequest{}, resp: RoomResponse{}, status: http.StatusOK,
		errs: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/rooms/{roomID}/leave", params: roomPath{}, summary: "Leave room",
		desc: "Marks the caller offline. Broadcasts participantLeft.",
		resp: RoomResponse{}, status: http.StatusOK, errs: []int{http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/rooms/{roomID}/close", params: roomPath{}, summary: "Close room",
		desc: "Host only. The room stays readable but can no longer be joined.",
		resp: RoomResponse{}, status: http.StatusOK, errs: []int{http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/rooms/{roomID}/status", params: roomPath{}, summary: "Set presence",
		req:  UpdateStatusRequest{}, resp: RoomResponse{}, status: http.StatusOK,
		errs: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodPut, path: "/api/rooms/{roomID}/participants/{userID}/role", params: participantPath{}, summary: "Change role",
		desc: "Host only. The room's host id never changes.",
		req:  UpdateRoleRequest{}, resp: RoomResponse{}, status: http.StatusOK,
		errs: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/rooms/{roomID}/participants/online", params: roomPath{}, summary: "Online participants",
		resp: []wheelroom.Participant{}, status: http.StatusOK, errs: []int{http.StatusNotFound}},

	{method: http.MethodGet, path: "/api/rooms/{roomID}/wheel", params: roomPath{}, summary: "Current wheel",
		desc: "The room's most recently created wheel.",
		resp: wheelroom.Wheel{}, status: http.StatusOK, errs: []int{http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/wheels", summary: "Create wheel",
		desc: "Host only. Broadcasts wheelUpdated.",
		req:  wheel.CreateInput{}, resp: wheelroom.Wheel{}, status: http.StatusCreated,
		errs: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/wheels/{wheelID}", params: wheelPath{}, summary: "Get wheel",
		resp: wheelroom.Wheel{}, status: http.StatusOK, errs: []int{http.StatusNotFound}},
	{method: http.MethodPatch, path: "/api/wheels/{wheelID}", params: wheelPath{}, summary: "Update wheel",
		desc: "Host only. Segments, when given, replace the whole list.",
		req:  wheel.UpdateInput{}, resp: wheelroom.Wheel{}, status: http.StatusOK,
		errs: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodDelete, path: "/api/wheels/{wheelID}", params: wheelPath{}, summary: "Delete wheel",
		desc: "Host only. Broadcasts wheelDeleted.",
		resp: wheelroom.Wheel{}, status: http.StatusOK, errs: []int{http.StatusForbidden, http.StatusNotFound}},

	{method: http.MethodPost, path: "/api/rooms/{roomID}/spin", params: roomPath{}, summary: "Spin the wheel",
		desc: "Records the outcome, broadcasts spinStarted now and spinResult after the spin duration. Rate limited per caller.",
		req:  SpinRequest{}, resp: spin.Result{}, status: http.StatusOK,
		errs: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusTooManyRequests}},
	{method: http.MethodGet, path: "/api/rooms/{roomID}/spins", params: roomPageQuery{}, summary: "Spin history",
		desc: "Newest first. Supports limit and skip.",
		resp: []wheelroom.SpinRecord{}, status: http.StatusOK, errs: []int{http.StatusBadRequest}},
	{method: http.MethodGet, path: "/api/rooms/{roomID}/spins/latest", params: roomPath{}, summary: "Latest spin",
		resp: wheelroom.SpinRecord{}, status: http.StatusOK, errs: []int{http.StatusNotFound}},
	{method: http.MethodDelete, path: "/api/rooms/{roomID}/spins", params: roomPath{}, summary: "Clear spin history",
		desc: "Host only. Broadcasts historyCleared.",
		resp: ClearedEvent{}, status: http.StatusOK, errs: []int{http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/rooms/{roomID}/statistics", params: roomPath{}, summary: "Spin statistics",
		resp: wheelroom.RoomStatistics{}, status: http.StatusOK, errs: []int{http.StatusNotFound}},

	{method: http.MethodGet, path: "/api/rooms/{roomID}/messages", params: roomPageQuery{}, summary: "Chat messages",
		desc: "Newest first. Supports limit and skip.",
		resp: []wheelroom.ChatMessage{}, status: http.StatusOK, errs: []int{http.StatusBadRequest}},
	{method: http.MethodPost, path: "/api/rooms/{roomID}/messages", params: roomPath{}, summary: "Send chat message",
		req:  SendMessageRequest{}, resp: wheelroom.ChatMessage{}, status: http.StatusCreated,
		errs: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodDelete, path: "/api/rooms/{roomID}/messages", params: roomPath{}, summary: "Clear chat",
		desc: "Host only.",
		resp: ClearedEvent{}, status: http.StatusOK, errs: []int{http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/rooms/{roomID}/emoji", params: roomPath{}, summary: "Send emoji reaction",
		desc: "Broadcast only, not stored.",
		req:  EmojiRequest{}, resp: chat.Reaction{}, status: http.StatusAccepted,
		errs: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},

	{method: http.MethodGet, path: "/api/rooms/{roomID}/events", params: streamQuery{}, summary: "SSE event stream",
		desc: "Server-Sent Events for the room. Pass token as query parameter. The first event is a sync snapshot.",
		contentType: "text/event-stream", status: http.StatusOK,
		errs: []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/rooms/{roomID}/ws", params: streamQuery{}, summary: "WebSocket event stream",
		desc: "Same events as the SSE stream over a WebSocket. Pass token as query parameter.",
		contentType: "text/plain", status: http.StatusSwitchingProtocols,
		errs: []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "WheelRoom API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Live rooms around a shared decision wheel.")

	for _, op := range operations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.desc != "" {
			oc.SetDescription(op.desc)
		}
		if op.params != nil {
			oc.AddReqStructure(op.params)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		if op.contentType != "" {
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(op.status), openapi.WithContentType(op.contentType))
		} else {
			oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		}
		for _, status := range op.errs {
			if op.method == http.MethodGet && op.path == "/healthz" {
				oc.AddRespStructure(health.Report{}, openapi.WithHTTPStatus(status))
				continue
			}
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
