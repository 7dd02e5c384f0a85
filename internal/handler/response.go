package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dan9191/lending-service/internal/middleware"
	"github.com/Dan9191/lending-service/internal/service"
	"github.com/gorilla/mux"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByOutcome = map[string]int{
	"not_found":          http.StatusNotFound,
	"forbidden":          http.StatusForbidden,
	"conflict":           http.StatusConflict,
	"invalid_argument":   http.StatusBadRequest,
	"insufficient_funds": http.StatusUnprocessableEntity,
	"nothing_to_pay":     http.StatusConflict,
	"unauthorized":       http.StatusUnauthorized,
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to its status. Internal failures are
// logged and hidden from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := service.Outcome(err)
	status, ok := statusByOutcome[code]
	if !ok {
		h.log.WithField("request_id", middleware.RequestIDFrom(r.Context())).Errorf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal", Message: "internal error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: code, Message: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", service.ErrInvalidArgument)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", service.ErrInvalidArgument, name)
	}
	return id, nil
}
