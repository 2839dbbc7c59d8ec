// internal/model/variables.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Variables holds template defaults and per-recipient render values.
type Variables map[string]any

// Merge returns a copy of v overlaid with other.
func (v Variables) Merge(other map[string]any) Variables {
	out := make(Variables, len(v)+len(other))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range other {
		out[k] = val
	}
	return out
}

func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Variables) Scan(src any) error {
	return scanJSONMap(src, v, "variables")
}

// Categories maps a message category to an opt-in flag.
type Categories map[string]bool

func (c Categories) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *Categories) Scan(src any) error {
	return scanJSONMap(src, c, "categories")
}

func scanJSONMap(src any, dst any, name string) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("%s: unsupported type %T", name, src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
