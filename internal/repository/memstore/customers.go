package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/audience"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

type customerRepo struct{ s *Store }

// joined attaches the preference row the way the SQL left join does.
// Callers hold s.mu.
func (r *customerRepo) joined(c model.Customer) model.Customer {
	if p, ok := r.s.preferences[c.ID]; ok {
		p.Categories = cloneMap(p.Categories)
		c.Preference = &p
	}
	return c
}

func (r *customerRepo) sorted(keep func(c *model.Customer) bool) []model.Customer {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Customer{}
	for _, c := range r.s.customers {
		c = r.joined(c)
		if keep(&c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r *customerRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, appErrors.NewNotFound("customer", id)
	}
	c = r.joined(c)
	return &c, nil
}

func (r *customerRepo) FindAudience(ctx context.Context, p audience.Predicate) ([]model.Customer, error) {
	return r.sorted(p.Matches), nil
}

func (r *customerRepo) ListByMonthDay(ctx context.Context, field repository.DateField, month, day int) ([]model.Customer, error) {
	if field != repository.DateBirthday && field != repository.DateAnniversary {
		return nil, fmt.Errorf("unknown date field %q", field)
	}
	return r.sorted(func(c *model.Customer) bool {
		if !c.Active || c.Email == "" {
			return false
		}
		d := c.Birthday
		if field == repository.DateAnniversary {
			d = c.Anniversary
		}
		return d != nil && int(d.Month()) == month && d.Day() == day
	}), nil
}

func (r *customerRepo) ListWithSpecialDates(ctx context.Context) ([]model.Customer, error) {
	return r.sorted(func(c *model.Customer) bool {
		return c.Active && c.Email != "" && (c.Birthday != nil || c.Anniversary != nil)
	}), nil
}

var _ repository.CustomerRepositoryInterface = (*customerRepo)(nil)
