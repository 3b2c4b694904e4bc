package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wheelroom/api/internal/wheelroom"
)

// ErrorResponse is returned for all error responses. Code is the error
// kind so clients can tell a wrong password from a full room.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeFailure maps a domain error to its HTTP status. Internal failures
// are logged and hidden from the client.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := wheelroom.Kind(err)
	var status int
	switch {
	case errors.Is(err, wheelroom.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, wheelroom.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, wheelroom.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, wheelroom.ErrCapacity):
		status = http.StatusConflict
	default:
		loggerFrom(r).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, kind, "internal error")
		return
	}
	writeError(w, status, kind, err.Error())
}

func badBody(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "validation", "invalid request body")
}

// queryInt reads a non-negative integer query parameter, or def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, wheelroom.Validationf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// page reads the limit and skip query parameters. Zero limit means the
// store default.
func page(r *http.Request) (limit, skip int, err error) {
	if limit, err = queryInt(r, "limit", 0); err != nil {
		return 0, 0, err
	}
	if skip, err = queryInt(r, "skip", 0); err != nil {
		return 0, 0, err
	}
	return limit, skip, nil
}
