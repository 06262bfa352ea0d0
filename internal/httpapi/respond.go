package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	intake "github.com/goliatone/go-intake"
	"github.com/goliatone/go-intake/pkg/state"
)

// errorBody is the JSON envelope for failed requests.
type errorBody struct {
	Error       string            `json:"error"`
	Description string            `json:"error_description,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps wizard and store errors to statuses. Persistence failures
// never expose backend details.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorBody{Error: code}
	if status != http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		body.Description = err.Error()
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, state.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence_unavailable"
	case errors.Is(err, intake.ErrUnknownSection),
		errors.Is(err, intake.ErrUnknownField),
		errors.Is(err, intake.ErrUnknownCollection),
		errors.Is(err, intake.ErrUnknownEntry),
		errors.Is(err, state.ErrUnknownSubsection):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, intake.ErrNavigationBlocked):
		return http.StatusConflict, "navigation_blocked"
	case errors.Is(err, intake.ErrNoActiveSection):
		return http.StatusConflict, "no_active_section"
	case errors.Is(err, intake.ErrInvalidPayload):
		return http.StatusUnprocessableEntity, "invalid_payload"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

var errBadRequest = errors.New("httpapi: bad request")

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.Join(errBadRequest, err)
}
