package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

type campaignRepo struct{ s *Store }

func (r *campaignRepo) Create(ctx context.Context, c *model.Campaign) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	r.s.campaigns[c.ID] = *c
	return nil
}

func (r *campaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return &c, nil
}

// LockByID relies on WithinTx serializing writers.
func (r *campaignRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	return r.GetByID(ctx, id)
}

func (r *campaignRepo) ListCampaigns(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int, error) {
	r.s.mu.RLock()
	out := []*model.Campaign{}
	for _, c := range r.s.campaigns {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Channel != "" {
			t, ok := r.s.templates[c.TemplateID]
			if !ok || t.Channel != f.Channel {
				continue
			}
		}
		if f.Audience != "" {
			ta := c.Filter.TargetAudience
			if ta == "" {
				ta = model.AudienceAll
			}
			if ta != f.Audience {
				continue
			}
		}
		c := c
		out = append(out, &c)
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Offset, f.Limit), len(out), nil
}

func (r *campaignRepo) ListByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error) {
	out := r.filter(func(c *model.Campaign) bool { return c.Status == status })
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ScheduledAt, out[j].ScheduledAt
		switch {
		case a == nil && b == nil:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return a.Before(*b)
	})
	return out, nil
}

func (r *campaignRepo) ListCreatedSince(ctx context.Context, since time.Time) ([]*model.Campaign, error) {
	out := r.filter(func(c *model.Campaign) bool { return !c.CreatedAt.Before(since) })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *campaignRepo) filter(keep func(c *model.Campaign) bool) []*model.Campaign {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Campaign
	for _, c := range r.s.campaigns {
		c := c
		if keep(&c) {
			out = append(out, &c)
		}
	}
	return out
}

func (r *campaignRepo) MarkSending(ctx context.Context, id uuid.UUID, totalRecipients int, at time.Time) error {
	defer r.s.enter(ctx)()
	return r.transition(id, model.CampaignSending, fromSendable, func(c *model.Campaign) {
		c.TotalRecipients = totalRecipients
		c.SendingAt = &at
	}, at)
}

func (r *campaignRepo) Finish(ctx context.Context, id uuid.UUID, status model.CampaignStatus, sentCount int, at time.Time) error {
	defer r.s.enter(ctx)()
	if status != model.CampaignSent && status != model.CampaignFailed {
		return fmt.Errorf("finish campaign: %s is not a terminal status", status)
	}
	return r.transition(id, status, fromSending, func(c *model.Campaign) {
		c.SentCount = sentCount
		c.SentAt = &at
	}, at)
}

func (r *campaignRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	defer r.s.enter(ctx)()
	return r.transition(id, model.CampaignFailed, fromLive, func(*model.Campaign) {}, at)
}

var (
	fromSendable = []model.CampaignStatus{model.CampaignDraft, model.CampaignScheduled}
	fromSending  = []model.CampaignStatus{model.CampaignSending}
	fromLive     = []model.CampaignStatus{model.CampaignDraft, model.CampaignScheduled, model.CampaignSending}
)

func (r *campaignRepo) transition(id uuid.UUID, to model.CampaignStatus, from []model.CampaignStatus, apply func(c *model.Campaign), at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	if !slices.Contains(from, c.Status) {
		return appErrors.NewConflict("campaign %s cannot move from %s to %s", id, c.Status, to)
	}
	c.Status = to
	c.UpdatedAt = at
	apply(&c)
	r.s.campaigns[id] = c
	return nil
}

func (r *campaignRepo) AddEngagement(ctx context.Context, id uuid.UUID, opened, clicked int) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil
	}
	c.OpenedCount += opened
	c.ClickedCount += clicked
	c.UpdatedAt = time.Now().UTC()
	r.s.campaigns[id] = c
	return nil
}

var _ repository.CampaignRepositoryInterface = (*campaignRepo)(nil)
