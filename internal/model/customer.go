// internal/model/customer.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a read-only view of the shop's customer directory.
type Customer struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone"`
	PushToken      string     `db:"push_token" json:"push_token,omitempty"`
	CustomerGroup  string     `db:"customer_group" json:"customer_group,omitempty"`
	Active         bool       `db:"is_active" json:"is_active"`
	TotalSpent     float64    `db:"total_spent" json:"total_spent"`
	LoyaltyPoints  int        `db:"loyalty_points" json:"loyalty_points"`
	LastPurchaseAt *time.Time `db:"last_purchase_at" json:"last_purchase_at,omitempty"`
	Birthday       *time.Time `db:"birthday" json:"birthday,omitempty"`
	Anniversary    *time.Time `db:"anniversary" json:"anniversary,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`

	// Preference is nil when the customer has no preference row.
	Preference *Preference `json:"preference,omitempty"`
}

// Address returns the recipient address for a channel, empty when unusable.
func (c *Customer) Address(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.Phone
	case ChannelPush:
		return c.PushToken
	}
	return ""
}

// TemplateVars exposes the customer under the "customer" render key.
func (c *Customer) TemplateVars() map[string]any {
	return map[string]any{
		"id":         c.ID.String(),
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"email":      c.Email,
		"phone":      c.Phone,
	}
}
