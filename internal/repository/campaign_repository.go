package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/shopnotify-backend/internal/db"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	// LockByID loads the campaign and holds a row lock until the enclosing
	// transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int, error)
	ListByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]*model.Campaign, error)

	// State transitions are conditional on the current status and return a
	// ConflictError when the row is not in an allowed source state.
	MarkSending(ctx context.Context, id uuid.UUID, totalRecipients int, at time.Time) error
	Finish(ctx context.Context, id uuid.UUID, status model.CampaignStatus, sentCount int, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error

	AddEngagement(ctx context.Context, id uuid.UUID, opened, clicked int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `c.id, c.name, c.description, c.template_id, c.category, c.audience_filter, c.scheduled_at,
	c.status, c.total_recipients, c.sent_count, c.opened_count, c.clicked_count, c.created_by,
	c.created_at, c.updated_at, c.sending_at, c.sent_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.TemplateID, &c.Category, &c.Filter, &c.ScheduledAt,
		&c.Status, &c.TotalRecipients, &c.SentCount, &c.OpenedCount, &c.ClickedCount, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt, &c.SendingAt, &c.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
		INSERT INTO notification_campaigns
			(id, name, description, template_id, category, audience_filter, scheduled_at, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := db.Conn(ctx, r.DB).ExecContext(ctx, query,
		c.ID, c.Name, c.Description, c.TemplateID, c.Category, c.Filter, c.ScheduledAt, c.Status, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return appErrors.Infra("create campaign", err)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	return r.get(ctx, id, "")
}

func (r *CampaignRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *CampaignRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM notification_campaigns c WHERE c.id = $1` + suffix
	c, err := scanCampaign(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, appErrors.Infra("get campaign", err)
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int, error) {
	where := ` FROM notification_campaigns c LEFT JOIN notification_templates t ON t.id = c.template_id WHERE 1=1`
	args := []any{}
	argPos := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND c.status=$%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.Channel != "" {
		where += fmt.Sprintf(" AND t.channel=$%d", argPos)
		args = append(args, f.Channel)
		argPos++
	}
	if f.Audience != "" {
		where += fmt.Sprintf(" AND COALESCE(c.audience_filter->>'target_audience', 'all')=$%d", argPos)
		args = append(args, f.Audience)
		argPos++
	}

	conn := db.Conn(ctx, r.DB)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, appErrors.Infra("count campaigns", err)
	}

	query := `SELECT ` + campaignColumns + where +
		fmt.Sprintf(" ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	rows, err := conn.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, appErrors.Infra("list campaigns", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, appErrors.Infra("scan campaign", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, appErrors.Infra("list campaigns", rows.Err())
}

func (r *CampaignRepository) ListByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM notification_campaigns c WHERE c.status = $1 ORDER BY c.scheduled_at NULLS LAST, c.created_at`
	return r.list(ctx, query, status)
}

func (r *CampaignRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM notification_campaigns c WHERE c.created_at >= $1 ORDER BY c.created_at DESC`
	return r.list(ctx, query, since)
}

func (r *CampaignRepository) list(ctx context.Context, query string, args ...any) ([]*model.Campaign, error) {
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErrors.Infra("list campaigns", err)
	}
	defer rows.Close()

	var out []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, appErrors.Infra("scan campaign", err)
		}
		out = append(out, c)
	}
	return out, appErrors.Infra("list campaigns", rows.Err())
}

// ====================== State transitions ======================

func (r *CampaignRepository) MarkSending(ctx context.Context, id uuid.UUID, totalRecipients int, at time.Time) error {
	query := `
		UPDATE notification_campaigns
		SET status = 'sending', total_recipients = $1, sending_at = $2, updated_at = $2
		WHERE id = $3 AND status IN ('draft', 'scheduled')`
	return r.transition(ctx, id, model.CampaignSending, query, totalRecipients, at, id)
}

func (r *CampaignRepository) Finish(ctx context.Context, id uuid.UUID, status model.CampaignStatus, sentCount int, at time.Time) error {
	if status != model.CampaignSent && status != model.CampaignFailed {
		return fmt.Errorf("finish campaign: %s is not a terminal status", status)
	}
	query := `
		UPDATE notification_campaigns
		SET status = $1, sent_count = $2, sent_at = $3, updated_at = $3
		WHERE id = $4 AND status = 'sending'`
	return r.transition(ctx, id, status, query, status, sentCount, at, id)
}

func (r *CampaignRepository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE notification_campaigns
		SET status = 'failed', updated_at = $1
		WHERE id = $2 AND status = ANY($3)`
	from := pq.Array([]string{string(model.CampaignDraft), string(model.CampaignScheduled), string(model.CampaignSending)})
	return r.transition(ctx, id, model.CampaignFailed, query, at, id, from)
}

func (r *CampaignRepository) transition(ctx context.Context, id uuid.UUID, to model.CampaignStatus, query string, args ...any) error {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, query, args...)
	if err != nil {
		return appErrors.Infra("update campaign status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return appErrors.Infra("update campaign status", err)
	}
	if n == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return appErrors.NewConflict("campaign %s cannot move from %s to %s", id, current.Status, to)
	}
	return nil
}

func (r *CampaignRepository) AddEngagement(ctx context.Context, id uuid.UUID, opened, clicked int) error {
	query := `
		UPDATE notification_campaigns
		SET opened_count = opened_count + $1, clicked_count = clicked_count + $2, updated_at = NOW()
		WHERE id = $3`
	_, err := db.Conn(ctx, r.DB).ExecContext(ctx, query, opened, clicked, id)
	return appErrors.Infra("update campaign engagement", err)
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
