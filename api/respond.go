package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/crm-engine/crm"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps the crm sentinels onto HTTP statuses. Internal errors
// are logged and their details withheld.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case crm.IsNotFound(err):
		writeError(w, http.StatusNotFound, what+" not found", nil)
	case crm.IsConflict(err):
		writeError(w, http.StatusConflict, what+" conflicts with an existing record", err)
	case crm.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid "+what, err)
	default:
		h.Logger.Error().Err(err).
			Str("request_id", requestID(r)).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Failed to process "+what, nil)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
