// internal/model/email_log.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type EmailType string

const (
	EmailTypeBirthday    EmailType = "birthday"
	EmailTypeAnniversary EmailType = "anniversary"
)

func (t EmailType) Valid() bool {
	return t == EmailTypeBirthday || t == EmailTypeAnniversary
}

const (
	EmailLogSent   = "sent"
	EmailLogFailed = "failed"
)

// EmailLog is the ledger row of one special-day send attempt.
type EmailLog struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customer_id"`
	EmailType  EmailType `json:"email_type"`
	Recipient  string    `json:"recipient"`
	Status     string    `json:"status"`
	Error      *string   `json:"error,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

type EmailLogFilter struct {
	EmailType EmailType
	Status    string
	Offset    int
	Limit     int
}
