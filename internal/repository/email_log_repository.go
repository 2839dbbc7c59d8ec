package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/db"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

// EmailLogRepositoryInterface is append-only: rows are never updated or deleted.
type EmailLogRepositoryInterface interface {
	Create(ctx context.Context, l *model.EmailLog) error
	List(ctx context.Context, f model.EmailLogFilter) ([]*model.EmailLog, int, error)
	HasSentBetween(ctx context.Context, customerID uuid.UUID, emailType model.EmailType, from, to time.Time) (bool, error)
}

type EmailLogRepository struct {
	DB *sql.DB
}

func (r *EmailLogRepository) Create(ctx context.Context, l *model.EmailLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.SentAt.IsZero() {
		l.SentAt = time.Now().UTC()
	}
	query := `
		INSERT INTO email_logs (id, customer_id, email_type, recipient, status, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := db.Conn(ctx, r.DB).ExecContext(ctx, query,
		l.ID, l.CustomerID, l.EmailType, l.Recipient, l.Status, l.Error, l.SentAt)
	return appErrors.Infra("create email log", err)
}

func (r *EmailLogRepository) List(ctx context.Context, f model.EmailLogFilter) ([]*model.EmailLog, int, error) {
	where := ` FROM email_logs WHERE 1=1`
	args := []any{}
	argPos := 1
	if f.EmailType != "" {
		where += fmt.Sprintf(" AND email_type=$%d", argPos)
		args = append(args, f.EmailType)
		argPos++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, f.Status)
		argPos++
	}

	conn := db.Conn(ctx, r.DB)
	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, appErrors.Infra("count email logs", err)
	}

	query := `SELECT id, customer_id, email_type, recipient, status, error, sent_at` + where +
		fmt.Sprintf(" ORDER BY sent_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	rows, err := conn.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, appErrors.Infra("list email logs", err)
	}
	defer rows.Close()

	logs := []*model.EmailLog{}
	for rows.Next() {
		var l model.EmailLog
		if err := rows.Scan(&l.ID, &l.CustomerID, &l.EmailType, &l.Recipient, &l.Status, &l.Error, &l.SentAt); err != nil {
			return nil, 0, appErrors.Infra("scan email log", err)
		}
		logs = append(logs, &l)
	}
	return logs, total, appErrors.Infra("list email logs", rows.Err())
}

func (r *EmailLogRepository) HasSentBetween(ctx context.Context, customerID uuid.UUID, emailType model.EmailType, from, to time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM email_logs
			WHERE customer_id = $1 AND email_type = $2 AND status = 'sent' AND sent_at >= $3 AND sent_at < $4
		)`
	var exists bool
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx, query, customerID, emailType, from, to).Scan(&exists)
	return exists, appErrors.Infra("check email log", err)
}

var _ EmailLogRepositoryInterface = (*EmailLogRepository)(nil)
