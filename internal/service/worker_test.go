package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/channel"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/queue"
)

func queuedNotification(t *testing.T, f *fixture, ch model.Channel, recipient string) *model.Notification {
	t.Helper()
	campaignID := uuid.New()
	n := &model.Notification{CampaignID: &campaignID, CustomerID: uuid.New(), Channel: ch, Recipient: recipient, Content: "hi"}
	if err := f.store.Notifications.Create(context.Background(), n); err != nil {
		t.Fatalf("create notification: %v", err)
	}
	return n
}

func TestWorkerDeliversQueuedNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := NewWorker(f.store, f.sender, nil)
	n := queuedNotification(t, f, model.ChannelEmail, "ana@example.com")

	if err := w.Handle(ctx, queue.Job{NotificationID: n.ID}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := f.store.Notifications.GetByID(ctx, n.ID)
	if got.Status != model.NotificationSent || got.MessageID == "" {
		t.Fatalf("unexpected notification %+v", got)
	}

	// Redelivery of the same job is a no-op.
	if err := w.Handle(ctx, queue.Job{NotificationID: n.ID}); err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if f.sender.count() != 1 {
		t.Fatalf("expected one send, got %d", f.sender.count())
	}
}

func TestWorkerLeavesUnsupportedChannelQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := NewWorker(f.store, channel.NewDispatcher(nil), nil)
	n := queuedNotification(t, f, model.ChannelPush, "token-1")

	if err := w.Handle(ctx, queue.Job{NotificationID: n.ID}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := f.store.Notifications.GetByID(ctx, n.ID)
	if got.Status != model.NotificationQueued {
		t.Fatalf("expected queued, got %s", got.Status)
	}
	if err := w.Handle(ctx, queue.Job{NotificationID: uuid.New()}); err != nil {
		t.Fatalf("missing notification must be dropped, got %v", err)
	}
}

func TestWorkerRecordsChannelFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sender.failFor["bounce@example.com"] = true
	w := NewWorker(f.store, f.sender, nil)
	n := queuedNotification(t, f, model.ChannelEmail, "bounce@example.com")

	if err := w.Handle(ctx, queue.Job{NotificationID: n.ID}); err != nil {
		t.Fatalf("channel failures must not be retried, got %v", err)
	}
	got, _ := f.store.Notifications.GetByID(ctx, n.ID)
	if got.Status != model.NotificationFailed || got.LastError == "" {
		t.Fatalf("unexpected notification %+v", got)
	}
}
