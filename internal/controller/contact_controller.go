package controller

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/service"
)

type ContactController struct {
	ContactService *service.ContactService
	Log            zerolog.Logger
}

func (c *ContactController) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, pagination, err := c.ContactService.ListContacts(r.Context(), queryInt(r, "page", 1), queryInt(r, "page_size", 50))
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       contacts,
		"pagination": pagination,
	})
}

func (c *ContactController) CreateContact(w http.ResponseWriter, r *http.Request) {
	var body service.CreateContactInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}

	contact, err := c.ContactService.CreateContact(r.Context(), body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

func (c *ContactController) SetOptOut(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	var body struct {
		OptedOut *bool `json:"opted_out"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	optedOut := true
	if body.OptedOut != nil {
		optedOut = *body.OptedOut
	}

	contact, err := c.ContactService.SetOptOut(r.Context(), id, optedOut)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}
