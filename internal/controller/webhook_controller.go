package controller

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/service"
)

// WebhookController receives the gateway's delivery callbacks.
type WebhookController struct {
	StatusService *service.StatusService
	Log           zerolog.Logger
}

type statusCallback struct {
	Status string   `json:"status"`
	IDs    []string `json:"ids"`
	// Some callbacks carry a single id.
	MessageID string `json:"messageId"`
}

// MessageStatus applies a status callback. Malformed or unhandled payloads are
// acknowledged so the provider does not retry them.
func (c *WebhookController) MessageStatus(w http.ResponseWriter, r *http.Request) {
	var body statusCallback
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.Log.Warn().Err(err).Msg("malformed status callback")
		writeJSON(w, http.StatusOK, service.StatusUpdateResult{Skipped: "malformed payload"})
		return
	}

	ids := body.IDs
	if len(ids) == 0 && body.MessageID != "" {
		ids = []string{body.MessageID}
	}

	res, err := c.StatusService.Apply(r.Context(), body.Status, ids)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *WebhookController) Disconnected(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	c.Log.Warn().Interface("payload", body).Msg("gateway reported the instance disconnected")
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
