package service

import (
	"context"
	"time"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

const maxAnalyticsPeriodDays = 365

type AnalyticsService struct {
	Campaigns     repository.CampaignRepositoryInterface
	Notifications repository.NotificationRepositoryInterface
	Now           func() time.Time
}

func NewAnalyticsService(store *repository.Store) *AnalyticsService {
	return &AnalyticsService{Campaigns: store.Campaigns, Notifications: store.Notifications, Now: time.Now}
}

// Report aggregates delivery counters over the trailing periodDays.
func (s *AnalyticsService) Report(ctx context.Context, periodDays int) (*model.AnalyticsReport, error) {
	if periodDays < 1 || periodDays > maxAnalyticsPeriodDays {
		return nil, appErrors.NewValidation("period")
	}
	since := s.Now().UTC().AddDate(0, 0, -periodDays)

	channels, err := s.Notifications.CountersByChannel(ctx, since)
	if err != nil {
		return nil, err
	}
	report := &model.AnalyticsReport{
		PeriodDays: periodDays,
		Channels:   channels,
		Campaigns:  []model.CampaignPerformance{},
	}
	if report.Channels == nil {
		report.Channels = []model.ChannelCounters{}
	}
	for _, c := range channels {
		report.Overall.Add(c.DeliveryCounters)
	}

	campaigns, err := s.Campaigns.ListCreatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, c := range campaigns {
		report.Campaigns = append(report.Campaigns, model.CampaignPerformance{
			CampaignID:   c.ID,
			Name:         c.Name,
			Status:       c.Status,
			SentCount:    c.SentCount,
			OpenedCount:  c.OpenedCount,
			ClickedCount: c.ClickedCount,
			OpenRate:     model.Rate(c.OpenedCount, c.SentCount),
			ClickRate:    model.Rate(c.ClickedCount, c.SentCount),
		})
	}
	return report, nil
}
