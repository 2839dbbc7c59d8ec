// internal/model/audience_filter.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

type TargetAudience string

const (
	AudienceAll       TargetAudience = "all"
	AudienceNew       TargetAudience = "new"
	AudienceReturning TargetAudience = "returning"
	AudienceLoyalty   TargetAudience = "loyalty"
)

func (a TargetAudience) Valid() bool {
	switch a {
	case AudienceAll, AudienceNew, AudienceReturning, AudienceLoyalty:
		return true
	}
	return false
}

// AudienceFilter is the declarative audience selection stored on a campaign.
// Zero values mean "no constraint".
type AudienceFilter struct {
	TargetAudience    TargetAudience `json:"target_audience"`
	CustomerGroup     string         `json:"customer_group,omitempty"`
	MinPurchaseAmount *float64       `json:"min_purchase_amount,omitempty"`
	LastPurchaseDays  *int           `json:"last_purchase_days,omitempty"`
	NotificationType  Channel        `json:"notification_type,omitempty"`
	Category          string         `json:"category,omitempty"`
}

// Normalize fills defaults: an empty audience means everyone.
func (f AudienceFilter) Normalize() AudienceFilter {
	if f.TargetAudience == "" {
		f.TargetAudience = AudienceAll
	}
	f.CustomerGroup = strings.TrimSpace(f.CustomerGroup)
	f.Category = strings.TrimSpace(f.Category)
	return f
}

// Validate returns the names of the offending fields.
func (f AudienceFilter) Validate() []string {
	var bad []string
	if f.TargetAudience != "" && !f.TargetAudience.Valid() {
		bad = append(bad, "target_audience")
	}
	if f.MinPurchaseAmount != nil && *f.MinPurchaseAmount < 0 {
		bad = append(bad, "min_purchase_amount")
	}
	if f.LastPurchaseDays != nil && *f.LastPurchaseDays <= 0 {
		bad = append(bad, "last_purchase_days")
	}
	if f.NotificationType != "" && !f.NotificationType.Valid() {
		bad = append(bad, "notification_type")
	}
	return bad
}

func (f AudienceFilter) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *AudienceFilter) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = AudienceFilter{TargetAudience: AudienceAll}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("audience filter: unsupported type %T", src)
	}
	var out AudienceFilter
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("audience filter: %w", err)
	}
	if bad := out.Validate(); len(bad) > 0 {
		return fmt.Errorf("audience filter: invalid fields %s", strings.Join(bad, ", "))
	}
	*f = out.Normalize()
	return nil
}
