package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/shopnotify-backend/internal/db"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

type NotificationRepositoryInterface interface {
	// Create inserts a queued row. A second row for the same campaign and
	// customer is rejected with a ConflictError.
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	// ApplyStatus moves the row to change.Status only if its current status
	// may transition there; otherwise it returns a ConflictError.
	ApplyStatus(ctx context.Context, change model.StatusChange) error
	// CountReached counts campaign notifications that have passed through status.
	CountReached(ctx context.Context, campaignID uuid.UUID, status model.NotificationStatus) (int, error)
	StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
	CountersByChannel(ctx context.Context, since time.Time) ([]model.ChannelCounters, error)
}

type NotificationRepository struct {
	DB *sql.DB
}

const notificationColumns = `id, campaign_id, customer_id, channel, recipient, subject, content, status, message_id,
	last_error, created_at, sent_at, delivered_at, opened_at, clicked_at`

func scanNotification(row interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	err := row.Scan(&n.ID, &n.CampaignID, &n.CustomerID, &n.Channel, &n.Recipient, &n.Subject, &n.Content, &n.Status,
		&n.MessageID, &n.LastError, &n.CreatedAt, &n.SentAt, &n.DeliveredAt, &n.OpenedAt, &n.ClickedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = model.NotificationQueued
	}
	n.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO notifications (id, campaign_id, customer_id, channel, recipient, subject, content, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, query,
		n.ID, n.CampaignID, n.CustomerID, n.Channel, n.Recipient, n.Subject, n.Content, n.Status, n.CreatedAt)
	if err != nil {
		return appErrors.Infra("create notification", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return appErrors.NewConflict("notification for customer %s already exists", n.CustomerID)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return r.get(ctx, id, "")
}

func (r *NotificationRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *NotificationRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1` + suffix
	n, err := scanNotification(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("notification", id)
		}
		return nil, appErrors.Infra("get notification", err)
	}
	return n, nil
}

func (r *NotificationRepository) ApplyStatus(ctx context.Context, change model.StatusChange) error {
	from := model.AllowedPredecessors(change.Status)
	if len(from) == 0 {
		return appErrors.NewConflict("no status may move to %s", change.Status)
	}
	query := `
		UPDATE notifications SET
			status = $1,
			message_id = CASE WHEN $2 <> '' THEN $2 ELSE message_id END,
			last_error = $3,
			sent_at = CASE WHEN $1 = 'sent' THEN $4 ELSE sent_at END,
			delivered_at = CASE WHEN $1 = 'delivered' THEN $4 ELSE delivered_at END,
			opened_at = CASE WHEN $1 IN ('opened', 'clicked') AND opened_at IS NULL THEN $4 ELSE opened_at END,
			clicked_at = CASE WHEN $1 = 'clicked' THEN $4 ELSE clicked_at END
		WHERE id = $5 AND status = ANY($6)`
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, query,
		change.Status, change.MessageID, change.Error, change.At, change.NotificationID, pq.Array(statusStrings(from)))
	if err != nil {
		return appErrors.Infra("update notification status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return appErrors.Infra("update notification status", err)
	}
	if n == 0 {
		current, err := r.GetByID(ctx, change.NotificationID)
		if err != nil {
			return err
		}
		return appErrors.NewConflict("notification %s cannot move from %s to %s", change.NotificationID, current.Status, change.Status)
	}
	return nil
}

func (r *NotificationRepository) CountReached(ctx context.Context, campaignID uuid.UUID, status model.NotificationStatus) (int, error) {
	var count int
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE campaign_id = $1 AND status = ANY($2)`,
		campaignID, pq.Array(statusStrings(model.ReachedStatuses(status)))).Scan(&count)
	return count, appErrors.Infra("count notifications", err)
}

func (r *NotificationRepository) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM notifications WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, appErrors.Infra("campaign stats", err)
	}
	defer rows.Close()

	stats := map[string]int{"total": 0}
	for _, s := range []model.NotificationStatus{model.NotificationQueued, model.NotificationSent, model.NotificationDelivered, model.NotificationOpened, model.NotificationClicked, model.NotificationFailed} {
		stats[string(s)] = 0
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, appErrors.Infra("scan campaign stats", err)
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, appErrors.Infra("campaign stats", rows.Err())
}

func (r *NotificationRepository) CountersByChannel(ctx context.Context, since time.Time) ([]model.ChannelCounters, error) {
	query := `
		SELECT channel,
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('sent', 'delivered', 'opened', 'clicked')),
			COUNT(*) FILTER (WHERE status IN ('delivered', 'opened', 'clicked')),
			COUNT(*) FILTER (WHERE status IN ('opened', 'clicked')),
			COUNT(*) FILTER (WHERE status = 'clicked'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM notifications
		WHERE created_at >= $1
		GROUP BY channel
		ORDER BY channel`
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, since)
	if err != nil {
		return nil, appErrors.Infra("channel counters", err)
	}
	defer rows.Close()

	var out []model.ChannelCounters
	for rows.Next() {
		var c model.ChannelCounters
		if err := rows.Scan(&c.Channel, &c.Total, &c.Sent, &c.Delivered, &c.Opened, &c.Clicked, &c.Failed); err != nil {
			return nil, appErrors.Infra("scan channel counters", err)
		}
		out = append(out, c)
	}
	return out, appErrors.Infra("channel counters", rows.Err())
}

var _ NotificationRepositoryInterface = (*NotificationRepository)(nil)

func statusStrings(statuses []model.NotificationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
