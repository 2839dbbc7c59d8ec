// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/shopnotify-backend/internal/audience"
	"github.com/unclebandit/shopnotify-backend/internal/channel"
	"github.com/unclebandit/shopnotify-backend/internal/db"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/queue"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

// Sender is the channel dispatch contract the services depend on.
type Sender interface {
	Send(ctx context.Context, msg channel.Message) (string, error)
}

type CampaignService struct {
	Tx            db.Transactor
	CampaignRepo  repository.CampaignRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	CustomerRepo  repository.CustomerRepositoryInterface
	Notifications repository.NotificationRepositoryInterface
	Resolver      *audience.Resolver
	Sender        Sender
	Queue         queue.Queue
	Concurrency   int
	Now           func() time.Time
	Logger        *zap.Logger
}

func NewCampaignService(store *repository.Store, resolver *audience.Resolver, sender Sender, q queue.Queue, concurrency int, logger *zap.Logger) *CampaignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &CampaignService{
		Tx:            store.Tx,
		CampaignRepo:  store.Campaigns,
		TemplateRepo:  store.Templates,
		CustomerRepo:  store.Customers,
		Notifications: store.Notifications,
		Resolver:      resolver,
		Sender:        sender,
		Queue:         q,
		Concurrency:   concurrency,
		Now:           time.Now,
		Logger:        logger,
	}
}

// Result struct for SendCampaign
type SendCampaignResult struct {
	CampaignID      uuid.UUID            `json:"campaign_id"`
	Status          model.CampaignStatus `json:"status"`
	TotalRecipients int                  `json:"total_recipients"`
	SentCount       int                  `json:"sent_count"`
	Failed          int                  `json:"failed"`
	Queued          int                  `json:"queued"`
}

type CampaignDetails struct {
	*model.Campaign
	Channel model.Channel  `json:"channel"`
	Stats   map[string]int `json:"stats"`
}

type CreateCampaignInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	TemplateID  uuid.UUID            `json:"template_id"`
	Category    string               `json:"category"`
	Filter      model.AudienceFilter `json:"audience_filter"`
	ScheduledAt *time.Time           `json:"scheduled_at"`
	CreatedBy   *uuid.UUID           `json:"-"`
}

// Preview is a message rendered for one customer without persisting it.
type Preview struct {
	CustomerID uuid.UUID     `json:"customer_id"`
	Channel    model.Channel `json:"channel"`
	Recipient  string        `json:"recipient"`
	Subject    string        `json:"subject,omitempty"`
	Content    string        `json:"content"`
}

type AudiencePreview struct {
	Count  int              `json:"count"`
	Sample []model.Customer `json:"sample"`
}

const audienceSampleSize = 10

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	var bad []string
	if strings.TrimSpace(in.Name) == "" {
		bad = append(bad, "name")
	}
	if in.TemplateID == uuid.Nil {
		bad = append(bad, "template_id")
	}
	for _, f := range in.Filter.Validate() {
		bad = append(bad, "audience_filter."+f)
	}
	if len(bad) > 0 {
		return nil, appErrors.NewValidation(bad...)
	}
	if _, err := s.TemplateRepo.GetByID(ctx, in.TemplateID); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		TemplateID:  in.TemplateID,
		Category:    strings.TrimSpace(in.Category),
		Filter:      in.Filter.Normalize(),
		ScheduledAt: in.ScheduledAt,
		Status:      model.CampaignDraft,
		CreatedBy:   in.CreatedBy,
	}
	if in.ScheduledAt != nil {
		at := in.ScheduledAt.UTC()
		c.ScheduledAt = &at
		c.Status = model.CampaignScheduled
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.Logger.Info("campaign created",
		zap.String("campaign_id", c.ID.String()),
		zap.String("status", string(c.Status)))
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, f model.CampaignFilter) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	f.Offset = (page - 1) * pageSize
	f.Limit = pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, id uuid.UUID) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	details := &CampaignDetails{Campaign: c}
	if t, err := s.TemplateRepo.GetByID(ctx, c.TemplateID); err == nil {
		details.Channel = t.Channel
	} else if !appErrors.IsNotFound(err) {
		return nil, err
	}
	details.Stats, err = s.Notifications.StatsByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return details, nil
}

// PersonalizedPreview renders the campaign's template for one customer.
func (s *CampaignService) PersonalizedPreview(ctx context.Context, campaignID, customerID uuid.UUID) (*Preview, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	t, err := s.TemplateRepo.GetByID(ctx, c.TemplateID)
	if err != nil {
		return nil, err
	}
	customer, err := s.CustomerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	ch := deliveryChannel(c.Filter, t)
	vars := recipientVars(t.Variables, customer)
	return &Preview{
		CustomerID: customer.ID,
		Channel:    ch,
		Recipient:  customer.Address(ch),
		Subject:    RenderTemplate(t.Subject, vars),
		Content:    RenderTemplate(t.Body, vars),
	}, nil
}

// PreviewAudience resolves a filter without sending anything.
func (s *CampaignService) PreviewAudience(ctx context.Context, f model.AudienceFilter) (*AudiencePreview, error) {
	customers, err := s.Resolver.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	sample := customers
	if len(sample) > audienceSampleSize {
		sample = sample[:audienceSampleSize]
	}
	return &AudiencePreview{Count: len(customers), Sample: sample}, nil
}

// deliveryChannel is the filter's notification type, else the template's channel.
func deliveryChannel(f model.AudienceFilter, t *model.Template) model.Channel {
	if f.NotificationType != "" {
		return f.NotificationType
	}
	return t.Channel
}

// SendCampaign moves a draft or scheduled campaign to sending, persists one
// queued notification per recipient, dispatches email inline and hands other
// channels to the queue, then closes the campaign as sent.
//
// Everything up to the sending transition runs in one transaction: a store
// failure there leaves the campaign untouched. Per-recipient failures are
// recorded on the notification row and never abort the batch.
func (s *CampaignService) SendCampaign(ctx context.Context, campaignID uuid.UUID) (*SendCampaignResult, error) {
	var (
		campaign   *model.Campaign
		tmpl       *model.Template
		recipients []model.Customer
		ch         model.Channel
	)

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.CampaignRepo.LockByID(ctx, campaignID)
		if err != nil {
			return err
		}
		t, err := s.TemplateRepo.GetByID(ctx, c.TemplateID)
		if err != nil {
			return err
		}
		if !c.Status.Sendable() {
			return appErrors.NewConflict("campaign %s cannot be sent in status %s", c.ID, c.Status)
		}

		f := c.Filter
		ch = deliveryChannel(f, t)
		f.NotificationType = ch
		if f.Category == "" {
			f.Category = c.Category
		}
		recipients, err = s.Resolver.Resolve(ctx, f)
		if err != nil {
			return err
		}
		if err := s.CampaignRepo.MarkSending(ctx, c.ID, len(recipients), s.Now().UTC()); err != nil {
			return err
		}
		campaign, tmpl = c, t
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The campaign is committed to sending; caller cancellation must not
	// turn the remaining recipients into failures.
	ctx = context.WithoutCancel(ctx)

	log := s.Logger.With(zap.String("campaign_id", campaign.ID.String()))
	log.Info("campaign sending", zap.Int("recipients", len(recipients)), zap.String("channel", ch.String()))

	result := &SendCampaignResult{CampaignID: campaign.ID, TotalRecipients: len(recipients)}
	var mu sync.Mutex
	tally := func(status model.NotificationStatus) {
		mu.Lock()
		defer mu.Unlock()
		switch status {
		case model.NotificationFailed:
			result.Failed++
		case model.NotificationQueued:
			result.Queued++
		}
	}

	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i := range recipients {
		customer := &recipients[i]
		g.Go(func() error {
			tally(s.deliver(ctx, log, campaign, tmpl, ch, customer))
			return nil
		})
	}
	_ = g.Wait()

	sent, err := s.Notifications.CountReached(ctx, campaign.ID, model.NotificationSent)
	if err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.Finish(ctx, campaign.ID, model.CampaignSent, sent, s.Now().UTC()); err != nil {
		return nil, err
	}

	result.Status = model.CampaignSent
	result.SentCount = sent
	log.Info("campaign sent", zap.Int("sent", sent), zap.Int("failed", result.Failed), zap.Int("queued", result.Queued))
	return result, nil
}

// deliver handles one recipient and returns the notification's resulting status.
func (s *CampaignService) deliver(ctx context.Context, log *zap.Logger, c *model.Campaign, t *model.Template, ch model.Channel, customer *model.Customer) model.NotificationStatus {
	vars := recipientVars(t.Variables, customer)
	campaignID := c.ID
	n := &model.Notification{
		CampaignID: &campaignID,
		CustomerID: customer.ID,
		Channel:    ch,
		Recipient:  customer.Address(ch),
		Subject:    RenderTemplate(t.Subject, vars),
		Content:    RenderTemplate(t.Body, vars),
		Status:     model.NotificationQueued,
	}
	log = log.With(zap.String("customer_id", customer.ID.String()))

	if err := s.Notifications.Create(ctx, n); err != nil {
		if appErrors.IsConflict(err) {
			log.Warn("notification already exists, skipping")
			return ""
		}
		log.Error("persist notification failed", zap.Error(err))
		return model.NotificationFailed
	}
	log = log.With(zap.String("notification_id", n.ID.String()))

	if ch != model.ChannelEmail {
		if s.Queue != nil {
			if err := s.Queue.Publish(ctx, queue.TopicNotificationDispatch, queue.Job{NotificationID: n.ID}); err != nil {
				log.Warn("enqueue notification failed", zap.Error(err))
			}
		}
		return model.NotificationQueued
	}

	change := model.StatusChange{NotificationID: n.ID, Status: model.NotificationSent}
	messageID, err := s.Sender.Send(ctx, channel.Message{
		Channel:   ch,
		Recipient: n.Recipient,
		Name:      strings.TrimSpace(customer.FirstName + " " + customer.LastName),
		Subject:   n.Subject,
		Content:   n.Content,
	})
	if err != nil {
		change.Status = model.NotificationFailed
		change.Error = err.Error()
	} else {
		change.MessageID = messageID
	}
	change.At = s.Now().UTC()

	if err := s.Notifications.ApplyStatus(ctx, change); err != nil {
		log.Error("record delivery result failed", zap.Error(err))
	}
	return change.Status
}

// ReconcileStale fails campaigns stuck in sending for longer than olderThan,
// keeping the count of notifications that did go out.
func (s *CampaignService) ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error) {
	sending, err := s.CampaignRepo.ListByStatus(ctx, model.CampaignSending)
	if err != nil {
		return 0, err
	}
	now := s.Now().UTC()
	cutoff := now.Add(-olderThan)

	reconciled := 0
	for _, c := range sending {
		started := c.UpdatedAt
		if c.SendingAt != nil {
			started = *c.SendingAt
		}
		if started.After(cutoff) {
			continue
		}
		sent, err := s.Notifications.CountReached(ctx, c.ID, model.NotificationSent)
		if err != nil {
			return reconciled, err
		}
		if err := s.CampaignRepo.Finish(ctx, c.ID, model.CampaignFailed, sent, now); err != nil {
			if appErrors.IsConflict(err) {
				continue
			}
			return reconciled, err
		}
		s.Logger.Warn("stale sending campaign marked failed",
			zap.String("campaign_id", c.ID.String()),
			zap.Time("sending_at", started),
			zap.Int("sent", sent))
		reconciled++
	}
	return reconciled, nil
}
