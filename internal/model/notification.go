// internal/model/notification.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationQueued    NotificationStatus = "queued"
	NotificationSent      NotificationStatus = "sent"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationOpened    NotificationStatus = "opened"
	NotificationClicked   NotificationStatus = "clicked"
	NotificationFailed    NotificationStatus = "failed"
)

var notificationRank = map[NotificationStatus]int{
	NotificationQueued:    0,
	NotificationSent:      1,
	NotificationDelivered: 2,
	NotificationOpened:    3,
	NotificationClicked:   4,
}

func (s NotificationStatus) Valid() bool {
	_, ok := notificationRank[s]
	return ok || s == NotificationFailed
}

// CanTransition allows forward moves along queued -> sent -> delivered ->
// opened -> clicked, and failing from any state before delivered.
func (s NotificationStatus) CanTransition(to NotificationStatus) bool {
	if s == NotificationFailed {
		return false
	}
	if to == NotificationFailed {
		return s == NotificationQueued || s == NotificationSent
	}
	from, ok := notificationRank[s]
	if !ok {
		return false
	}
	next, ok := notificationRank[to]
	return ok && next > from
}

// AllowedPredecessors lists every status from which to is reachable.
func AllowedPredecessors(to NotificationStatus) []NotificationStatus {
	var out []NotificationStatus
	for _, s := range []NotificationStatus{NotificationQueued, NotificationSent, NotificationDelivered, NotificationOpened, NotificationClicked} {
		if s.CanTransition(to) {
			out = append(out, s)
		}
	}
	return out
}

// Reached reports whether a notification currently in s has passed through target.
func (s NotificationStatus) Reached(target NotificationStatus) bool {
	if s == NotificationFailed || target == NotificationFailed {
		return s == target
	}
	return notificationRank[s] >= notificationRank[target]
}

// ReachedStatuses lists every status that has passed through target.
func ReachedStatuses(target NotificationStatus) []NotificationStatus {
	var out []NotificationStatus
	for _, s := range []NotificationStatus{NotificationQueued, NotificationSent, NotificationDelivered, NotificationOpened, NotificationClicked, NotificationFailed} {
		if s.Reached(target) {
			out = append(out, s)
		}
	}
	return out
}

type Notification struct {
	ID          uuid.UUID          `db:"id" json:"id"`
	CampaignID  *uuid.UUID         `db:"campaign_id" json:"campaign_id,omitempty"`
	CustomerID  uuid.UUID          `db:"customer_id" json:"customer_id"`
	Channel     Channel            `db:"channel" json:"channel"`
	Recipient   string             `db:"recipient" json:"recipient"`
	Subject     string             `db:"subject" json:"subject,omitempty"`
	Content     string             `db:"content" json:"content"`
	Status      NotificationStatus `db:"status" json:"status"`
	MessageID   string             `db:"message_id" json:"message_id,omitempty"`
	LastError   string             `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	SentAt      *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt *time.Time         `db:"delivered_at" json:"delivered_at,omitempty"`
	OpenedAt    *time.Time         `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt   *time.Time         `db:"clicked_at" json:"clicked_at,omitempty"`
}

// StatusChange is one applied delivery transition.
type StatusChange struct {
	NotificationID uuid.UUID
	Status         NotificationStatus
	MessageID      string
	Error          string
	At             time.Time
}
