package controller_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/controller"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
	"github.com/unclebandit/wacrm-dispatch/internal/service"
)

func newContactController() *controller.ContactController {
	store := repository.NewMemoryStore()
	return &controller.ContactController{
		ContactService: &service.ContactService{ContactRepo: store.Contacts(), Log: zerolog.Nop()},
		Log:            zerolog.Nop(),
	}
}

func TestContactController(t *testing.T) {
	ctrl := newContactController()

	w := httptest.NewRecorder()
	ctrl.CreateContact(w, httptest.NewRequest("POST", "/contacts",
		strings.NewReader(`{"name":"Ana","phone":"+55 11 99999-0001","tags":["lead"]}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created model.Contact
	decode(t, w, &created)
	if created.ID == 0 || created.OptedOut {
		t.Fatalf("unexpected contact %+v", created)
	}

	w = httptest.NewRecorder()
	ctrl.CreateContact(w, httptest.NewRequest("POST", "/contacts", strings.NewReader(`{"name":"","phone":"1"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	id := strconv.FormatInt(created.ID, 10)
	w = httptest.NewRecorder()
	ctrl.SetOptOut(w, withID(httptest.NewRequest("PATCH", "/contacts/"+id+"/opt-out", strings.NewReader(`{"opted_out":true}`)), id))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var updated model.Contact
	decode(t, w, &updated)
	if !updated.OptedOut || updated.OptOutAt == nil {
		t.Fatalf("expected opted out with timestamp, got %+v", updated)
	}

	w = httptest.NewRecorder()
	ctrl.SetOptOut(w, withID(httptest.NewRequest("PATCH", "/contacts/99/opt-out", strings.NewReader(`{"opted_out":true}`)), "99"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	ctrl.ListContacts(w, httptest.NewRequest("GET", "/contacts?page=1&page_size=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Data       []model.Contact `json:"data"`
		Pagination map[string]int  `json:"pagination"`
	}
	decode(t, w, &list)
	if len(list.Data) != 1 || list.Pagination["total_count"] != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
}
