package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/service"
)

func TestContactService(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := &service.ContactService{ContactRepo: f.contacts, Log: zerolog.Nop()}
	ctx := context.Background()

	c, err := svc.CreateContact(ctx, service.CreateContactInput{
		Name: " Ana ", Phone: "+55 11 99999-0001", Tags: []string{"lead", " lead", ""},
	})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	if c.ID == 0 || c.Name != "Ana" || len(c.Tags) != 1 {
		t.Fatalf("unexpected contact: %+v", c)
	}

	for _, in := range []service.CreateContactInput{{Name: "", Phone: "1"}, {Name: "x", Phone: "abc"}} {
		if _, err := svc.CreateContact(ctx, in); !errors.Is(err, appErrors.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", in, err)
		}
	}

	out, err := svc.SetOptOut(ctx, c.ID, true)
	if err != nil || !out.OptedOut || out.OptOutAt == nil {
		t.Fatalf("SetOptOut = %+v, %v", out, err)
	}
	if _, err := svc.SetOptOut(ctx, 999, true); !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, pagination, err := svc.ListContacts(ctx, 1, 10)
	if err != nil || len(list) != 1 || pagination["total_count"] != 1 {
		t.Fatalf("ListContacts = %v, %v, %v", list, pagination, err)
	}
}
