package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.CampaignID != nil {
		for _, existing := range r.s.notifications {
			if existing.CampaignID != nil && *existing.CampaignID == *n.CampaignID && existing.CustomerID == n.CustomerID {
				return appErrors.NewConflict("notification for customer %s already exists", n.CustomerID)
			}
		}
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = model.NotificationQueued
	}
	n.CreatedAt = time.Now().UTC()
	r.s.notifications[n.ID] = *n
	return nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, appErrors.NewNotFound("notification", id)
	}
	return &n, nil
}

func (r *notificationRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return r.GetByID(ctx, id)
}

func (r *notificationRepo) ApplyStatus(ctx context.Context, change model.StatusChange) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[change.NotificationID]
	if !ok {
		return appErrors.NewNotFound("notification", change.NotificationID)
	}
	if !n.Status.CanTransition(change.Status) {
		return appErrors.NewConflict("notification %s cannot move from %s to %s", n.ID, n.Status, change.Status)
	}

	at := change.At
	n.Status = change.Status
	if change.MessageID != "" {
		n.MessageID = change.MessageID
	}
	n.LastError = change.Error
	switch change.Status {
	case model.NotificationSent:
		n.SentAt = &at
	case model.NotificationDelivered:
		n.DeliveredAt = &at
	case model.NotificationOpened:
		if n.OpenedAt == nil {
			n.OpenedAt = &at
		}
	case model.NotificationClicked:
		if n.OpenedAt == nil {
			n.OpenedAt = &at
		}
		n.ClickedAt = &at
	}
	r.s.notifications[n.ID] = n
	return nil
}

func (r *notificationRepo) CountReached(ctx context.Context, campaignID uuid.UUID, status model.NotificationStatus) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.CampaignID != nil && *n.CampaignID == campaignID && n.Status.Reached(status) {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	stats := map[string]int{"total": 0}
	for _, s := range []model.NotificationStatus{model.NotificationQueued, model.NotificationSent, model.NotificationDelivered, model.NotificationOpened, model.NotificationClicked, model.NotificationFailed} {
		stats[string(s)] = 0
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, n := range r.s.notifications {
		if n.CampaignID != nil && *n.CampaignID == campaignID {
			stats[string(n.Status)]++
			stats["total"]++
		}
	}
	return stats, nil
}

func (r *notificationRepo) CountersByChannel(ctx context.Context, since time.Time) ([]model.ChannelCounters, error) {
	r.s.mu.RLock()
	byChannel := map[model.Channel]*model.ChannelCounters{}
	for _, n := range r.s.notifications {
		if n.CreatedAt.Before(since) {
			continue
		}
		c, ok := byChannel[n.Channel]
		if !ok {
			c = &model.ChannelCounters{Channel: n.Channel}
			byChannel[n.Channel] = c
		}
		c.Total++
		if n.Status == model.NotificationFailed {
			c.Failed++
			continue
		}
		if n.Status.Reached(model.NotificationSent) {
			c.Sent++
		}
		if n.Status.Reached(model.NotificationDelivered) {
			c.Delivered++
		}
		if n.Status.Reached(model.NotificationOpened) {
			c.Opened++
		}
		if n.Status.Reached(model.NotificationClicked) {
			c.Clicked++
		}
	}
	r.s.mu.RUnlock()

	out := make([]model.ChannelCounters, 0, len(byChannel))
	for _, c := range byChannel {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}

var _ repository.NotificationRepositoryInterface = (*notificationRepo)(nil)
