// internal/model/preference.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Preference is a customer's per-channel and per-category opt-in.
// A missing row means opted into everything.
type Preference struct {
	CustomerID   uuid.UUID  `db:"customer_id" json:"customer_id"`
	EmailEnabled bool       `db:"email_enabled" json:"email_enabled"`
	SMSEnabled   bool       `db:"sms_enabled" json:"sms_enabled"`
	PushEnabled  bool       `db:"push_enabled" json:"push_enabled"`
	Categories   Categories `db:"categories" json:"categories"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// DefaultPreference is what a customer without a row is treated as.
func DefaultPreference(customerID uuid.UUID) Preference {
	return Preference{
		CustomerID:   customerID,
		EmailEnabled: true,
		SMSEnabled:   true,
		PushEnabled:  true,
		Categories:   Categories{},
	}
}

func (p *Preference) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelPush:
		return p.PushEnabled
	}
	return false
}

// CategoryEnabled is true unless the category is explicitly disabled.
func (p *Preference) CategoryEnabled(category string) bool {
	if category == "" || p.Categories == nil {
		return true
	}
	enabled, ok := p.Categories[category]
	return !ok || enabled
}
