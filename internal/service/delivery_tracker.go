package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/db"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

// DeliveryTracker applies provider status events to notifications.
type DeliveryTracker struct {
	Tx            db.Transactor
	Notifications repository.NotificationRepositoryInterface
	Campaigns     repository.CampaignRepositoryInterface
	Now           func() time.Time
	Logger        *zap.Logger
}

func NewDeliveryTracker(store *repository.Store, logger *zap.Logger) *DeliveryTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryTracker{
		Tx:            store.Tx,
		Notifications: store.Notifications,
		Campaigns:     store.Campaigns,
		Now:           time.Now,
		Logger:        logger,
	}
}

type DeliveryEvent struct {
	Status    model.NotificationStatus `json:"status"`
	MessageID string                   `json:"message_id"`
	Error     string                   `json:"error"`
	At        *time.Time               `json:"at"`
}

// RecordEvent advances the notification and, the first time it reaches
// opened or clicked, bumps the owning campaign's engagement counters.
func (t *DeliveryTracker) RecordEvent(ctx context.Context, id uuid.UUID, ev DeliveryEvent) (*model.Notification, error) {
	if !ev.Status.Valid() || ev.Status == model.NotificationQueued {
		return nil, appErrors.NewValidation("status")
	}
	at := t.Now().UTC()
	if ev.At != nil {
		at = ev.At.UTC()
	}

	var updated *model.Notification
	err := t.Tx.WithinTx(ctx, func(ctx context.Context) error {
		before, err := t.Notifications.LockByID(ctx, id)
		if err != nil {
			return err
		}
		err = t.Notifications.ApplyStatus(ctx, model.StatusChange{
			NotificationID: id,
			Status:         ev.Status,
			MessageID:      ev.MessageID,
			Error:          ev.Error,
			At:             at,
		})
		if err != nil {
			return err
		}

		if before.CampaignID != nil {
			opened, clicked := 0, 0
			if !before.Status.Reached(model.NotificationOpened) && ev.Status.Reached(model.NotificationOpened) {
				opened = 1
			}
			if !before.Status.Reached(model.NotificationClicked) && ev.Status.Reached(model.NotificationClicked) {
				clicked = 1
			}
			if opened+clicked > 0 {
				if err := t.Campaigns.AddEngagement(ctx, *before.CampaignID, opened, clicked); err != nil {
					return err
				}
			}
		}

		updated, err = t.Notifications.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	t.Logger.Debug("delivery event applied",
		zap.String("notification_id", id.String()),
		zap.String("status", string(ev.Status)))
	return updated, nil
}
