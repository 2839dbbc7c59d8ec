// internal/model/campaign.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignSending, CampaignSent, CampaignFailed:
		return true
	}
	return false
}

// Sendable reports whether a send may start from this status.
func (s CampaignStatus) Sendable() bool {
	return s == CampaignDraft || s == CampaignScheduled
}

// Terminal reports whether the status can never change again.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignSent || s == CampaignFailed
}

// CanTransition enforces draft|scheduled -> sending -> sent|failed.
// Failing straight out of draft or scheduled is allowed for sweep failures.
func (s CampaignStatus) CanTransition(to CampaignStatus) bool {
	switch to {
	case CampaignSending:
		return s.Sendable()
	case CampaignSent:
		return s == CampaignSending
	case CampaignFailed:
		return !s.Terminal()
	}
	return false
}

type Campaign struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Description     string         `db:"description" json:"description"`
	TemplateID      uuid.UUID      `db:"template_id" json:"template_id"`
	Category        string         `db:"category" json:"category"`
	Filter          AudienceFilter `db:"audience_filter" json:"audience_filter"`
	ScheduledAt     *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Status          CampaignStatus `db:"status" json:"status"`
	TotalRecipients int            `db:"total_recipients" json:"total_recipients"`
	SentCount       int            `db:"sent_count" json:"sent_count"`
	OpenedCount     int            `db:"opened_count" json:"opened_count"`
	ClickedCount    int            `db:"clicked_count" json:"clicked_count"`
	CreatedBy       *uuid.UUID     `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
	SendingAt       *time.Time     `db:"sending_at" json:"sending_at,omitempty"`
	SentAt          *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
}

// CampaignFilter narrows campaign listings.
type CampaignFilter struct {
	Status   CampaignStatus
	Channel  Channel
	Audience TargetAudience
	Offset   int
	Limit    int
}
