package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
)

func TestPreferenceDefaultsAndPartialUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewPreferenceService(f.store)
	c := f.addCustomer("Ana", "ana@example.com")

	p, err := svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !p.EmailEnabled || !p.SMSEnabled || !p.PushEnabled {
		t.Fatalf("missing row must default to opted in, got %+v", p)
	}

	off := false
	p, err = svc.Update(ctx, c.ID, PreferenceInput{SMSEnabled: &off, Categories: map[string]bool{"promotions": false}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !p.EmailEnabled || p.SMSEnabled || p.CategoryEnabled("promotions") || !p.CategoryEnabled("news") {
		t.Fatalf("unexpected preference %+v", p)
	}

	stored, _ := svc.Get(ctx, c.ID)
	if stored.SMSEnabled {
		t.Fatal("update was not persisted")
	}

	if _, err := svc.Get(ctx, uuid.New()); !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
