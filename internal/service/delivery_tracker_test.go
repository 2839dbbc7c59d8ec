package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

func sentCampaign(t *testing.T, f *fixture, customers int) (*model.Campaign, []model.Notification) {
	t.Helper()
	ctx := context.Background()
	tmpl := f.emailTemplate(t)
	for i := 0; i < customers; i++ {
		f.addCustomer("C", uuid.NewString()+"@example.com")
	}
	c, err := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Tracked", TemplateID: tmpl.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.campaigns.SendCampaign(ctx, c.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	return c, f.campaignNotifications(c.ID)
}

func TestRecordEventCountsEngagementOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tracker := NewDeliveryTracker(f.store, nil)
	c, ns := sentCampaign(t, f, 2)
	id := ns[0].ID

	if _, err := tracker.RecordEvent(ctx, id, DeliveryEvent{Status: model.NotificationOpened}); err != nil {
		t.Fatalf("opened: %v", err)
	}
	n, err := tracker.RecordEvent(ctx, id, DeliveryEvent{Status: model.NotificationClicked})
	if err != nil {
		t.Fatalf("clicked: %v", err)
	}
	if n.Status != model.NotificationClicked || n.OpenedAt == nil || n.ClickedAt == nil {
		t.Fatalf("unexpected notification %+v", n)
	}

	if _, err := tracker.RecordEvent(ctx, id, DeliveryEvent{Status: model.NotificationOpened}); !appErrors.IsConflict(err) {
		t.Fatalf("expected conflict moving backwards, got %v", err)
	}

	// Skipping straight to clicked counts as an open too.
	if _, err := tracker.RecordEvent(ctx, ns[1].ID, DeliveryEvent{Status: model.NotificationClicked}); err != nil {
		t.Fatalf("clicked: %v", err)
	}

	got, _ := f.store.Campaigns.GetByID(ctx, c.ID)
	if got.OpenedCount != 2 || got.ClickedCount != 2 {
		t.Fatalf("expected 2 opens and 2 clicks, got %d and %d", got.OpenedCount, got.ClickedCount)
	}
}

func TestRecordEventValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tracker := NewDeliveryTracker(f.store, nil)

	if _, err := tracker.RecordEvent(ctx, uuid.New(), DeliveryEvent{Status: "bounced"}); !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := tracker.RecordEvent(ctx, uuid.New(), DeliveryEvent{Status: model.NotificationQueued}); !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := tracker.RecordEvent(ctx, uuid.New(), DeliveryEvent{Status: model.NotificationDelivered}); !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFailedOnlyBeforeDelivered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tracker := NewDeliveryTracker(f.store, nil)
	_, ns := sentCampaign(t, f, 1)

	if _, err := tracker.RecordEvent(ctx, ns[0].ID, DeliveryEvent{Status: model.NotificationDelivered}); err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if _, err := tracker.RecordEvent(ctx, ns[0].ID, DeliveryEvent{Status: model.NotificationFailed, Error: "late bounce"}); !appErrors.IsConflict(err) {
		t.Fatalf("expected conflict failing a delivered notification, got %v", err)
	}
}

func TestAnalyticsRates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tracker := NewDeliveryTracker(f.store, nil)
	analytics := NewAnalyticsService(f.store)

	c, ns := sentCampaign(t, f, 4)
	_, _ = tracker.RecordEvent(ctx, ns[0].ID, DeliveryEvent{Status: model.NotificationOpened})
	_, _ = tracker.RecordEvent(ctx, ns[1].ID, DeliveryEvent{Status: model.NotificationClicked})

	tmpl := f.emailTemplate(t)
	empty, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Unsent", TemplateID: tmpl.ID})

	report, err := analytics.Report(ctx, 30)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Overall.Total != 4 || report.Overall.Sent != 4 || report.Overall.Opened != 2 || report.Overall.Clicked != 1 {
		t.Fatalf("unexpected overall counters %+v", report.Overall)
	}
	if report.Overall.Delivered != 2 {
		t.Fatalf("opened rows count as delivered, got %d", report.Overall.Delivered)
	}
	if len(report.Channels) != 1 || report.Channels[0].Channel != model.ChannelEmail {
		t.Fatalf("unexpected channels %+v", report.Channels)
	}

	rates := map[uuid.UUID]model.CampaignPerformance{}
	for _, p := range report.Campaigns {
		rates[p.CampaignID] = p
	}
	if got := rates[c.ID]; got.OpenRate != 0.5 || got.ClickRate != 0.25 {
		t.Fatalf("unexpected rates %+v", got)
	}
	if got := rates[empty.ID]; got.OpenRate != 0 || got.ClickRate != 0 {
		t.Fatalf("zero sent must give zero rates, got %+v", got)
	}

	if _, err := analytics.Report(ctx, 0); !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyticsWindowExcludesOldNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	analytics := NewAnalyticsService(f.store)
	sentCampaign(t, f, 1)
	analytics.Now = func() time.Time { return time.Now().AddDate(0, 0, 10) }

	report, err := analytics.Report(ctx, 7)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Overall.Total != 0 || len(report.Campaigns) != 0 {
		t.Fatalf("expected empty window, got %+v", report)
	}
}
