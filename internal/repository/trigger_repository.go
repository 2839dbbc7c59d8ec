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

type TriggerRepositoryInterface interface {
	Create(ctx context.Context, t *model.Trigger) error
	List(ctx context.Context) ([]*model.Trigger, error)
	// FindActiveByType returns the newest active trigger of a type.
	FindActiveByType(ctx context.Context, triggerType model.TriggerType) (*model.Trigger, error)
}

type TriggerRepository struct {
	DB *sql.DB
}

const triggerColumns = `id, name, trigger_type, condition, template_id, is_active, created_at`

func scanTrigger(row interface{ Scan(...any) error }) (*model.Trigger, error) {
	var t model.Trigger
	if err := row.Scan(&t.ID, &t.Name, &t.TriggerType, &t.Condition, &t.TemplateID, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TriggerRepository) Create(ctx context.Context, t *model.Trigger) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	query := `INSERT INTO notification_triggers (` + triggerColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := db.Conn(ctx, r.DB).ExecContext(ctx, query,
		t.ID, t.Name, t.TriggerType, t.Condition, t.TemplateID, t.Active, t.CreatedAt)
	return appErrors.Infra("create trigger", err)
}

func (r *TriggerRepository) List(ctx context.Context) ([]*model.Trigger, error) {
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx,
		`SELECT `+triggerColumns+` FROM notification_triggers ORDER BY created_at DESC`)
	if err != nil {
		return nil, appErrors.Infra("list triggers", err)
	}
	defer rows.Close()

	triggers := []*model.Trigger{}
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, appErrors.Infra("scan trigger", err)
		}
		triggers = append(triggers, t)
	}
	return triggers, appErrors.Infra("list triggers", rows.Err())
}

func (r *TriggerRepository) FindActiveByType(ctx context.Context, triggerType model.TriggerType) (*model.Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM notification_triggers
		WHERE trigger_type = $1 AND is_active = TRUE ORDER BY created_at DESC LIMIT 1`
	t, err := scanTrigger(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, triggerType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &appErrors.NotFoundError{Entity: "trigger", ID: string(triggerType)}
		}
		return nil, appErrors.Infra("find trigger", err)
	}
	return t, nil
}

var _ TriggerRepositoryInterface = (*TriggerRepository)(nil)
