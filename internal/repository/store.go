package repository

import (
	"database/sql"

	"github.com/unclebandit/shopnotify-backend/internal/db"
)

// Store bundles every repository with the transactor they share.
type Store struct {
	Tx            db.Transactor
	Customers     CustomerRepositoryInterface
	Templates     TemplateRepositoryInterface
	Campaigns     CampaignRepositoryInterface
	Notifications NotificationRepositoryInterface
	Triggers      TriggerRepositoryInterface
	Preferences   PreferenceRepositoryInterface
	EmailLogs     EmailLogRepositoryInterface
}

// NewPostgresStore wires the SQL repositories onto one connection pool.
func NewPostgresStore(conn *sql.DB) *Store {
	return &Store{
		Tx:            &db.SQLTransactor{DB: conn},
		Customers:     &CustomerRepository{DB: conn},
		Templates:     &TemplateRepository{DB: conn},
		Campaigns:     &CampaignRepository{DB: conn},
		Notifications: &NotificationRepository{DB: conn},
		Triggers:      &TriggerRepository{DB: conn},
		Preferences:   &PreferenceRepository{DB: conn},
		EmailLogs:     &EmailLogRepository{DB: conn},
	}
}
