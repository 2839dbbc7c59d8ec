// internal/model/template.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Template is a reusable message skeleton with {{placeholder}} markers.
type Template struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Channel   Channel   `db:"channel" json:"channel"`
	Subject   string    `db:"subject" json:"subject,omitempty"`
	Body      string    `db:"body" json:"body"`
	Variables Variables `db:"variables" json:"variables,omitempty"`
	Active    bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TemplateRefs counts live references that block a soft delete.
type TemplateRefs struct {
	Campaigns int `json:"campaigns"`
	Triggers  int `json:"triggers"`
}

func (r TemplateRefs) Total() int { return r.Campaigns + r.Triggers }
