package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
	"github.com/unclebandit/shopnotify-backend/internal/service"
)

const (
	sweepLockKey      = "campaign-sweep"
	markFailedTimeout = 10 * time.Second
)

// CampaignSender is the part of the campaign lifecycle the sweep drives.
type CampaignSender interface {
	SendCampaign(ctx context.Context, id uuid.UUID) (*service.SendCampaignResult, error)
	ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type SweepReport struct {
	Due        int `json:"due"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Reconciled int `json:"reconciled"`
}

// Sweeper sends every scheduled campaign whose time has come.
type Sweeper struct {
	Campaigns  repository.CampaignRepositoryInterface
	Sender     CampaignSender
	Lock       Lock
	LockTTL    time.Duration
	StaleAfter time.Duration
	Now        func() time.Time
	Logger     *zap.Logger
}

func NewSweeper(campaigns repository.CampaignRepositoryInterface, sender CampaignSender, lock Lock, staleAfter time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lock == nil {
		lock = NoopLock{}
	}
	return &Sweeper{
		Campaigns:  campaigns,
		Sender:     sender,
		Lock:       lock,
		LockTTL:    5 * time.Minute,
		StaleAfter: staleAfter,
		Now:        time.Now,
		Logger:     logger,
	}
}

// Run adapts RunOnce to a registry Job.
func (s *Sweeper) Run(ctx context.Context) error {
	_, err := s.RunOnce(ctx)
	return err
}

// RunOnce processes due campaigns in ascending scheduled_at order. Due-ness
// is decided with the sweeper's own clock. A failing campaign is marked
// failed and the pass continues.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	release, ok, err := s.Lock.Acquire(ctx, sweepLockKey, s.LockTTL)
	if err != nil {
		return report, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		s.Logger.Debug("sweep already running elsewhere")
		return report, nil
	}
	defer release()

	if s.StaleAfter > 0 {
		n, err := s.Sender.ReconcileStale(ctx, s.StaleAfter)
		if err != nil {
			s.Logger.Error("stale sending reconciliation failed", zap.Error(err))
		}
		report.Reconciled = n
	}

	scheduled, err := s.Campaigns.ListByStatus(ctx, model.CampaignScheduled)
	if err != nil {
		return report, err
	}
	now := s.Now().UTC()

	var due []*model.Campaign
	for _, c := range scheduled {
		if c.ScheduledAt == nil || !c.ScheduledAt.After(now) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return scheduledAt(due[i]).Before(scheduledAt(due[j]))
	})
	report.Due = len(due)

	for _, c := range due {
		if ctx.Err() != nil {
			break
		}
		log := s.Logger.With(zap.String("campaign_id", c.ID.String()))
		err := s.sendIsolated(ctx, c.ID)
		switch {
		case err == nil:
			report.Sent++
		case appErrors.IsConflict(err):
			report.Skipped++
			log.Info("campaign no longer sendable, skipping", zap.Error(err))
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			// Cancelled before the send committed; the campaign is still scheduled.
			report.Skipped++
			log.Warn("sweep cancelled, campaign left for the next pass", zap.Error(err))
		default:
			report.Failed++
			log.Error("scheduled campaign send failed", zap.Error(err))
			if merr := s.markFailed(ctx, c.ID); merr != nil && !appErrors.IsConflict(merr) {
				log.Error("mark campaign failed", zap.Error(merr))
			}
		}
	}

	if report.Due > 0 || report.Reconciled > 0 {
		s.Logger.Info("sweep finished",
			zap.Int("due", report.Due),
			zap.Int("sent", report.Sent),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Int("reconciled", report.Reconciled))
	}
	return report, nil
}

// markFailed records the failure even when the sweep context is already done.
func (s *Sweeper) markFailed(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markFailedTimeout)
	defer cancel()
	return s.Campaigns.MarkFailed(ctx, id, s.Now().UTC())
}

func (s *Sweeper) sendIsolated(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = s.Sender.SendCampaign(ctx, id)
	return err
}

func scheduledAt(c *model.Campaign) time.Time {
	if c.ScheduledAt == nil {
		return c.CreatedAt
	}
	return *c.ScheduledAt
}
