// internal/model/trigger.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TriggerType string

const (
	TriggerBirthday    TriggerType = "birthday"
	TriggerAnniversary TriggerType = "anniversary"
	TriggerCustom      TriggerType = "custom"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerBirthday, TriggerAnniversary, TriggerCustom:
		return true
	}
	return false
}

// TriggerCondition is stored as-is; only date predicates are evaluated.
type TriggerCondition json.RawMessage

func (c TriggerCondition) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("{}"), nil
	}
	return c, nil
}

func (c *TriggerCondition) UnmarshalJSON(b []byte) error {
	if !json.Valid(b) {
		return fmt.Errorf("trigger condition: invalid json")
	}
	*c = append((*c)[:0], b...)
	return nil
}

func (c TriggerCondition) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "{}", nil
	}
	return string(c), nil
}

func (c *TriggerCondition) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = nil
	case []byte:
		*c = append((*c)[:0], v...)
	case string:
		*c = TriggerCondition(v)
	default:
		return fmt.Errorf("trigger condition: unsupported type %T", src)
	}
	return nil
}

type Trigger struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	Name        string           `db:"name" json:"name"`
	TriggerType TriggerType      `db:"trigger_type" json:"trigger_type"`
	Condition   TriggerCondition `db:"condition" json:"condition"`
	TemplateID  uuid.UUID        `db:"template_id" json:"template_id"`
	Active      bool             `db:"is_active" json:"is_active"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
