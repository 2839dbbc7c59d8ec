// Package audience turns declarative filters into customer lists.
package audience

import (
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/shopnotify-backend/internal/model"
)

// Clause is one typed condition. SQL uses "?" for parameters and refers to
// customers as c and the left-joined preference row as p. Match evaluates
// the same condition in memory.
type Clause struct {
	Name  string
	SQL   string
	Args  []any
	Match func(c *model.Customer) bool
}

// Predicate is an ordered conjunction of clauses.
type Predicate struct {
	Clauses []Clause
}

// Names lists clause names in order.
func (p Predicate) Names() []string {
	out := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		out[i] = c.Name
	}
	return out
}

// Where renders " AND ..." with positional $n parameters starting at argPos.
func (p Predicate) Where(argPos int) (string, []any) {
	var sb strings.Builder
	var args []any
	for _, c := range p.Clauses {
		sb.WriteString(" AND ")
		sql := c.SQL
		for _, a := range c.Args {
			sql = strings.Replace(sql, "?", fmt.Sprintf("$%d", argPos), 1)
			args = append(args, a)
			argPos++
		}
		sb.WriteString(sql)
	}
	return sb.String(), args
}

// Matches reports whether every clause accepts the customer.
func (p Predicate) Matches(c *model.Customer) bool {
	for _, cl := range p.Clauses {
		if !cl.Match(c) {
			return false
		}
	}
	return true
}

var addressColumn = map[model.Channel]string{
	model.ChannelEmail: "c.email",
	model.ChannelSMS:   "c.phone",
	model.ChannelPush:  "c.push_token",
}

var preferenceColumn = map[model.Channel]string{
	model.ChannelEmail: "p.email_enabled",
	model.ChannelSMS:   "p.sms_enabled",
	model.ChannelPush:  "p.push_enabled",
}

// Build composes the clauses for f. now anchors every relative window.
func Build(f model.AudienceFilter, now time.Time, newWindow time.Duration) Predicate {
	f = f.Normalize()
	ch := f.NotificationType
	if ch == "" {
		ch = model.ChannelEmail
	}

	clauses := []Clause{
		{
			Name:  "active",
			SQL:   "c.is_active = TRUE",
			Match: func(c *model.Customer) bool { return c.Active },
		},
		{
			Name:  "address",
			SQL:   fmt.Sprintf("COALESCE(%s, '') <> ''", addressColumn[ch]),
			Match: func(c *model.Customer) bool { return strings.TrimSpace(c.Address(ch)) != "" },
		},
	}

	switch f.TargetAudience {
	case model.AudienceNew:
		since := now.Add(-newWindow)
		clauses = append(clauses, Clause{
			Name:  "target_audience",
			SQL:   "c.created_at >= ?",
			Args:  []any{since},
			Match: func(c *model.Customer) bool { return !c.CreatedAt.Before(since) },
		})
	case model.AudienceReturning:
		clauses = append(clauses, Clause{
			Name:  "target_audience",
			SQL:   "c.total_spent > 0",
			Match: func(c *model.Customer) bool { return c.TotalSpent > 0 },
		})
	case model.AudienceLoyalty:
		clauses = append(clauses, Clause{
			Name:  "target_audience",
			SQL:   "c.loyalty_points > 0",
			Match: func(c *model.Customer) bool { return c.LoyaltyPoints > 0 },
		})
	}

	if f.CustomerGroup != "" {
		group := f.CustomerGroup
		clauses = append(clauses, Clause{
			Name:  "customer_group",
			SQL:   "c.customer_group = ?",
			Args:  []any{group},
			Match: func(c *model.Customer) bool { return c.CustomerGroup == group },
		})
	}

	if f.MinPurchaseAmount != nil {
		min := *f.MinPurchaseAmount
		clauses = append(clauses, Clause{
			Name:  "min_purchase_amount",
			SQL:   "c.total_spent >= ?",
			Args:  []any{min},
			Match: func(c *model.Customer) bool { return c.TotalSpent >= min },
		})
	}

	if f.LastPurchaseDays != nil {
		since := now.AddDate(0, 0, -*f.LastPurchaseDays)
		clauses = append(clauses, Clause{
			Name: "last_purchase_days",
			SQL:  "c.last_purchase_at >= ?",
			Args: []any{since},
			Match: func(c *model.Customer) bool {
				return c.LastPurchaseAt != nil && !c.LastPurchaseAt.Before(since)
			},
		})
	}

	// Customers without a preference row are included.
	clauses = append(clauses, Clause{
		Name: "channel_opt_in",
		SQL:  fmt.Sprintf("(p.customer_id IS NULL OR %s = TRUE)", preferenceColumn[ch]),
		Match: func(c *model.Customer) bool {
			return c.Preference == nil || c.Preference.ChannelEnabled(ch)
		},
	})

	if f.Category != "" {
		category := f.Category
		clauses = append(clauses, Clause{
			Name: "category_opt_in",
			SQL:  "(p.customer_id IS NULL OR COALESCE((p.categories ->> ?)::boolean, TRUE))",
			Args: []any{category},
			Match: func(c *model.Customer) bool {
				return c.Preference == nil || c.Preference.CategoryEnabled(category)
			},
		})
	}

	return Predicate{Clauses: clauses}
}
