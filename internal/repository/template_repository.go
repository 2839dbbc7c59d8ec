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

type TemplateRepositoryInterface interface {
	Create(ctx context.Context, t *model.Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error)
	List(ctx context.Context, channel model.Channel) ([]*model.Template, error)
	Update(ctx context.Context, t *model.Template) error
	// CountReferences counts non-terminal campaigns and active triggers using the template.
	CountReferences(ctx context.Context, id uuid.UUID) (model.TemplateRefs, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
}

type TemplateRepository struct {
	DB *sql.DB
}

const templateColumns = `id, name, channel, subject, body, variables, is_active, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*model.Template, error) {
	var t model.Template
	if err := row.Scan(&t.ID, &t.Name, &t.Channel, &t.Subject, &t.Body, &t.Variables, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	query := `
		INSERT INTO notification_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := db.Conn(ctx, r.DB).ExecContext(ctx, query,
		t.ID, t.Name, t.Channel, t.Subject, t.Body, t.Variables, t.Active, t.CreatedAt, t.UpdatedAt)
	return appErrors.Infra("create template", err)
}

func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE id = $1`
	t, err := scanTemplate(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewTemplateNotFound(id)
		}
		return nil, appErrors.Infra("get template", err)
	}
	return t, nil
}

// List returns active templates, optionally restricted to one channel.
func (r *TemplateRepository) List(ctx context.Context, channel model.Channel) ([]*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE is_active = TRUE`
	args := []any{}
	if channel != "" {
		query += ` AND channel = $1`
		args = append(args, channel)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErrors.Infra("list templates", err)
	}
	defer rows.Close()

	templates := []*model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, appErrors.Infra("scan template", err)
		}
		templates = append(templates, t)
	}
	return templates, appErrors.Infra("list templates", rows.Err())
}

func (r *TemplateRepository) Update(ctx context.Context, t *model.Template) error {
	t.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE notification_templates
		SET name=$1, channel=$2, subject=$3, body=$4, variables=$5, is_active=$6, updated_at=$7
		WHERE id=$8`
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, query,
		t.Name, t.Channel, t.Subject, t.Body, t.Variables, t.Active, t.UpdatedAt, t.ID)
	return r.expectRow(res, err, t.ID, "update template")
}

func (r *TemplateRepository) CountReferences(ctx context.Context, id uuid.UUID) (model.TemplateRefs, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM notification_campaigns WHERE template_id = $1 AND status IN ('draft', 'scheduled', 'sending')),
			(SELECT COUNT(*) FROM notification_triggers WHERE template_id = $1 AND is_active = TRUE)`
	var refs model.TemplateRefs
	if err := db.Conn(ctx, r.DB).QueryRowContext(ctx, query, id).Scan(&refs.Campaigns, &refs.Triggers); err != nil {
		return refs, appErrors.Infra("count template references", err)
	}
	return refs, nil
}

func (r *TemplateRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE notification_templates SET is_active = FALSE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return r.expectRow(res, err, id, "soft delete template")
}

func (r *TemplateRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM notification_templates WHERE id = $1`, id)
	return r.expectRow(res, err, id, "delete template")
}

func (r *TemplateRepository) expectRow(res sql.Result, err error, id uuid.UUID, op string) error {
	if err != nil {
		return appErrors.Infra(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return appErrors.Infra(op, err)
	}
	if n == 0 {
		return appErrors.NewTemplateNotFound(id)
	}
	return nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
