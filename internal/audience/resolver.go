package audience

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
)

// CustomerSource executes a predicate against the customer directory,
// left-joining preference rows onto each customer.
type CustomerSource interface {
	FindAudience(ctx context.Context, p Predicate) ([]model.Customer, error)
}

type Resolver struct {
	Customers         CustomerSource
	NewCustomerWindow time.Duration
	Now               func() time.Time
	Logger            *zap.Logger
}

func NewResolver(src CustomerSource, newWindow time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{Customers: src, NewCustomerWindow: newWindow, Now: time.Now, Logger: logger}
}

// Resolve returns the deduplicated active customers selected by f.
func (r *Resolver) Resolve(ctx context.Context, f model.AudienceFilter) ([]model.Customer, error) {
	if bad := f.Validate(); len(bad) > 0 {
		return nil, appErrors.NewValidation(bad...)
	}
	p := Build(f, r.Now(), r.NewCustomerWindow)

	found, err := r.Customers.FindAudience(ctx, p)
	if err != nil {
		return nil, appErrors.Infra("resolve audience", err)
	}

	seen := make(map[string]struct{}, len(found))
	out := make([]model.Customer, 0, len(found))
	for _, c := range found {
		key := c.ID.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	r.Logger.Debug("audience resolved",
		zap.String("target_audience", string(f.Normalize().TargetAudience)),
		zap.Strings("clauses", p.Names()),
		zap.Int("size", len(out)),
	)
	return out, nil
}
