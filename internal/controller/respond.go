package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/queue"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto HTTP statuses. Unexpected errors are logged and
// reported without details.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, appErrors.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case appErrors.IsNotFound(err):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, appErrors.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, queue.ErrClosed):
		status, msg = http.StatusServiceUnavailable, "dispatch queue unavailable"
	}

	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.Invalid("invalid body: %v", err)
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Invalid("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
