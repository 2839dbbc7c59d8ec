package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/db"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

type PreferenceRepositoryInterface interface {
	// Get returns a NotFoundError when the customer has no preference row.
	Get(ctx context.Context, customerID uuid.UUID) (*model.Preference, error)
	Upsert(ctx context.Context, p *model.Preference) error
}

type PreferenceRepository struct {
	DB *sql.DB
}

func (r *PreferenceRepository) Get(ctx context.Context, customerID uuid.UUID) (*model.Preference, error) {
	query := `
		SELECT customer_id, email_enabled, sms_enabled, push_enabled, categories, updated_at
		FROM customer_notification_preferences WHERE customer_id = $1`
	var p model.Preference
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx, query, customerID).
		Scan(&p.CustomerID, &p.EmailEnabled, &p.SMSEnabled, &p.PushEnabled, &p.Categories, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("preference", customerID)
		}
		return nil, appErrors.Infra("get preference", err)
	}
	return &p, nil
}

func (r *PreferenceRepository) Upsert(ctx context.Context, p *model.Preference) error {
	p.UpdatedAt = time.Now().UTC()
	if p.Categories == nil {
		p.Categories = model.Categories{}
	}
	query := `
		INSERT INTO customer_notification_preferences (customer_id, email_enabled, sms_enabled, push_enabled, categories, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (customer_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			push_enabled = EXCLUDED.push_enabled,
			categories = EXCLUDED.categories,
			updated_at = EXCLUDED.updated_at`
	_, err := db.Conn(ctx, r.DB).ExecContext(ctx, query,
		p.CustomerID, p.EmailEnabled, p.SMSEnabled, p.PushEnabled, p.Categories, p.UpdatedAt)
	return appErrors.Infra("upsert preference", err)
}

var _ PreferenceRepositoryInterface = (*PreferenceRepository)(nil)
