package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/audience"
	"github.com/unclebandit/shopnotify-backend/internal/db"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

// DateField selects which stored date a month/day lookup compares.
type DateField string

const (
	DateBirthday    DateField = "birthday"
	DateAnniversary DateField = "anniversary"
)

// CustomerRepositoryInterface is the read side of the shop's customer directory.
type CustomerRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	FindAudience(ctx context.Context, p audience.Predicate) ([]model.Customer, error)
	// ListByMonthDay returns active customers with an email whose stored
	// date falls on month/day in any year.
	ListByMonthDay(ctx context.Context, field DateField, month, day int) ([]model.Customer, error)
	// ListWithSpecialDates returns active customers with an email and a
	// birthday or anniversary on file.
	ListWithSpecialDates(ctx context.Context) ([]model.Customer, error)
}

// CustomerRepository is the concrete implementation
type CustomerRepository struct {
	DB *sql.DB
}

const customerSelect = `
	SELECT c.id, c.first_name, c.last_name, c.email, c.phone, c.push_token, c.customer_group, c.is_active,
		c.total_spent, c.loyalty_points, c.last_purchase_at, c.birthday, c.anniversary, c.created_at,
		p.customer_id, p.email_enabled, p.sms_enabled, p.push_enabled, p.categories, p.updated_at
	FROM customers c
	LEFT JOIN customer_notification_preferences p ON p.customer_id = c.id`

func scanCustomer(row interface{ Scan(...any) error }) (model.Customer, error) {
	var (
		c          model.Customer
		prefID     *uuid.UUID
		emailOn    sql.NullBool
		smsOn      sql.NullBool
		pushOn     sql.NullBool
		categories model.Categories
		prefAt     sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.PushToken, &c.CustomerGroup, &c.Active,
		&c.TotalSpent, &c.LoyaltyPoints, &c.LastPurchaseAt, &c.Birthday, &c.Anniversary, &c.CreatedAt,
		&prefID, &emailOn, &smsOn, &pushOn, &categories, &prefAt,
	)
	if err != nil {
		return c, err
	}
	if prefID != nil {
		c.Preference = &model.Preference{
			CustomerID:   *prefID,
			EmailEnabled: emailOn.Bool,
			SMSEnabled:   smsOn.Bool,
			PushEnabled:  pushOn.Bool,
			Categories:   categories,
			UpdatedAt:    prefAt.Time,
		}
	}
	return c, nil
}

// GetByID fetches a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	c, err := scanCustomer(db.Conn(ctx, r.DB).QueryRowContext(ctx, customerSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("customer", id)
		}
		return nil, appErrors.Infra("get customer", err)
	}
	return &c, nil
}

func (r *CustomerRepository) FindAudience(ctx context.Context, p audience.Predicate) ([]model.Customer, error) {
	where, args := p.Where(1)
	return r.query(ctx, customerSelect+` WHERE 1=1`+where+` ORDER BY c.id`, args...)
}

func (r *CustomerRepository) ListByMonthDay(ctx context.Context, field DateField, month, day int) ([]model.Customer, error) {
	col, err := dateColumn(field)
	if err != nil {
		return nil, err
	}
	query := customerSelect + fmt.Sprintf(`
		WHERE c.is_active = TRUE AND COALESCE(c.email, '') <> ''
		AND EXTRACT(MONTH FROM %[1]s) = $1 AND EXTRACT(DAY FROM %[1]s) = $2
		ORDER BY c.id`, col)
	return r.query(ctx, query, month, day)
}

func (r *CustomerRepository) ListWithSpecialDates(ctx context.Context) ([]model.Customer, error) {
	query := customerSelect + `
		WHERE c.is_active = TRUE AND COALESCE(c.email, '') <> ''
		AND (c.birthday IS NOT NULL OR c.anniversary IS NOT NULL)
		ORDER BY c.id`
	return r.query(ctx, query)
}

func (r *CustomerRepository) query(ctx context.Context, query string, args ...any) ([]model.Customer, error) {
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErrors.Infra("query customers", err)
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, appErrors.Infra("scan customer", err)
		}
		customers = append(customers, c)
	}
	return customers, appErrors.Infra("query customers", rows.Err())
}

func dateColumn(field DateField) (string, error) {
	switch field {
	case DateBirthday:
		return "c.birthday", nil
	case DateAnniversary:
		return "c.anniversary", nil
	}
	return "", fmt.Errorf("unknown date field %q", field)
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
