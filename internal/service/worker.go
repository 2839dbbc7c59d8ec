package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/channel"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/queue"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

// Worker delivers queued notifications handed off through the queue.
type Worker struct {
	Notifications repository.NotificationRepositoryInterface
	Sender        Sender
	Now           func() time.Time
	Logger        *zap.Logger
}

func NewWorker(store *repository.Store, sender Sender, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{Notifications: store.Notifications, Sender: sender, Now: time.Now, Logger: logger}
}

// Start subscribes the worker to the dispatch topic.
func (w *Worker) Start(q queue.Queue) error {
	return q.Subscribe(queue.TopicNotificationDispatch, w.Handle)
}

// Handle sends one notification. Only store errors are returned, so the
// queue retries those; channel failures are recorded on the row.
func (w *Worker) Handle(ctx context.Context, job queue.Job) error {
	log := w.Logger.With(zap.String("notification_id", job.NotificationID.String()))

	n, err := w.Notifications.GetByID(ctx, job.NotificationID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			log.Warn("notification not found, dropping job")
			return nil
		}
		return err
	}
	if n.Status != model.NotificationQueued {
		return nil
	}

	messageID, sendErr := w.Sender.Send(ctx, channel.Message{
		Channel:   n.Channel,
		Recipient: n.Recipient,
		Subject:   n.Subject,
		Content:   n.Content,
	})
	if channel.IsUnsupported(sendErr) {
		log.Info("no transport for channel, notification stays queued", zap.String("channel", n.Channel.String()))
		return nil
	}

	change := model.StatusChange{NotificationID: n.ID, Status: model.NotificationSent, MessageID: messageID, At: w.Now().UTC()}
	if sendErr != nil {
		change.Status = model.NotificationFailed
		change.MessageID = ""
		change.Error = sendErr.Error()
	}
	if err := w.Notifications.ApplyStatus(ctx, change); err != nil {
		if appErrors.IsConflict(err) {
			return nil
		}
		return err
	}
	log.Info("notification delivered", zap.String("status", string(change.Status)))
	return nil
}
