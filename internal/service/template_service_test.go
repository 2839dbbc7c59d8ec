package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		text string
		vars map[string]any
		want string
	}{
		{
			name: "nested and top level",
			text: "Hi {{customer.first_name}}, code {{code}}",
			vars: map[string]any{"customer": map[string]any{"first_name": "Ana"}, "code": "X1"},
			want: "Hi Ana, code X1",
		},
		{
			name: "missing left verbatim",
			text: "Hi {{missing}}",
			vars: map[string]any{},
			want: "Hi {{missing}}",
		},
		{
			name: "nil vars",
			text: "Hi {{customer.first_name}}",
			want: "Hi {{customer.first_name}}",
		},
		{
			name: "whitespace inside braces",
			text: "Total {{ amount }}",
			vars: map[string]any{"amount": 12.5},
			want: "Total 12.5",
		},
		{
			name: "large whole number from json",
			text: "Win {{prize}} points",
			vars: map[string]any{"prize": float64(1000000)},
			want: "Win 1000000 points",
		},
		{
			name: "small fraction",
			text: "{{rate}}",
			vars: map[string]any{"rate": 0.0000125},
			want: "0.0000125",
		},
		{
			name: "path into non map",
			text: "{{code.value}}",
			vars: map[string]any{"code": "X1"},
			want: "{{code.value}}",
		},
		{
			name: "map value is not rendered",
			text: "{{customer}}",
			vars: map[string]any{"customer": map[string]any{"first_name": "Ana"}},
			want: "{{customer}}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderTemplate(tt.text, tt.vars); got != tt.want {
				t.Errorf("RenderTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.templates.Create(context.Background(), TemplateInput{Channel: "fax"})
	if !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := err.(*appErrors.ValidationError).Fields
	if len(fields) != 3 {
		t.Fatalf("expected name, channel and body to be named, got %v", fields)
	}
}

func TestDeleteReferencedTemplateConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	if _, err := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "C", TemplateID: tmpl.ID}); err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	err := f.templates.Delete(ctx, tmpl.ID)
	if !appErrors.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := f.templates.Get(ctx, tmpl.ID)
	if !got.Active {
		t.Fatal("template must stay active after rejected delete")
	}

	if err := f.templates.HardDelete(ctx, tmpl.ID); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	if _, err := f.templates.Get(ctx, tmpl.ID); !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found after hard delete, got %v", err)
	}
}

func TestSoftDeleteHidesTemplateFromList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)

	if err := f.templates.Delete(ctx, tmpl.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := f.templates.List(ctx, "email")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no active templates, got %d", len(list))
	}
	if _, err := f.templates.List(ctx, "fax"); !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error for bad channel, got %v", err)
	}
	if err := f.templates.Delete(ctx, uuid.New()); !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateTemplate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)

	updated, err := f.templates.Update(ctx, tmpl.ID, TemplateInput{Name: "Renamed", Channel: model.ChannelSMS, Body: "Hi"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Channel != model.ChannelSMS || updated.Variables["code"] != "SPRING10" {
		t.Fatalf("unexpected template %+v", updated)
	}
}

func TestHardDeleteWithSentHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addCustomer("Ana", "ana@example.com")
	tmpl := f.emailTemplate(t)
	sent, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Old", TemplateID: tmpl.ID})
	if _, err := f.campaigns.SendCampaign(ctx, sent.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	draft, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Next", TemplateID: tmpl.ID})

	if err := f.templates.HardDelete(ctx, tmpl.ID); err != nil {
		t.Fatalf("hard delete: %v", err)
	}

	details, err := f.campaigns.GetCampaignDetailsWithStats(ctx, sent.ID)
	if err != nil {
		t.Fatalf("details of sent campaign: %v", err)
	}
	if details.SentCount != 1 || details.Stats["sent"] != 1 {
		t.Errorf("history lost: %+v", details.Campaign)
	}

	if _, err := f.campaigns.SendCampaign(ctx, draft.ID); !appErrors.IsNotFound(err) {
		t.Fatalf("expected NotFound sending without a template, got %v", err)
	}
	got, _ := f.store.Campaigns.GetByID(ctx, draft.ID)
	if got.Status != model.CampaignDraft {
		t.Fatalf("draft must be untouched, got %s", got.Status)
	}
}
