// Package memstore keeps every repository in process memory. It backs local
// runs without PostgreSQL and the service tests.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	customers     map[uuid.UUID]model.Customer
	preferences   map[uuid.UUID]model.Preference
	templates     map[uuid.UUID]model.Template
	campaigns     map[uuid.UUID]model.Campaign
	notifications map[uuid.UUID]model.Notification
	triggers      map[uuid.UUID]model.Trigger
	emailLogs     []model.EmailLog
}

func New() *Store {
	return &Store{
		customers:     map[uuid.UUID]model.Customer{},
		preferences:   map[uuid.UUID]model.Preference{},
		templates:     map[uuid.UUID]model.Template{},
		campaigns:     map[uuid.UUID]model.Campaign{},
		notifications: map[uuid.UUID]model.Notification{},
		triggers:      map[uuid.UUID]model.Trigger{},
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tx:            s,
		Customers:     &customerRepo{s},
		Templates:     &templateRepo{s},
		Campaigns:     &campaignRepo{s},
		Notifications: &notificationRepo{s},
		Triggers:      &triggerRepo{s},
		Preferences:   &preferenceRepo{s},
		EmailLogs:     &emailLogRepo{s},
	}
}

// AddCustomer inserts or replaces a directory entry.
func (s *Store) AddCustomer(c model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Preference = nil
	s.customers[c.ID] = c
}

// Notifications returns a snapshot of every notification row.
func (s *Store) Notifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	return out
}

type txKey struct{}

// WithinTx serializes transactions and restores the previous state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// enter serializes a write made outside WithinTx against open transactions,
// so a rollback never discards it.
func (s *Store) enter(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

type snapshot struct {
	preferences   map[uuid.UUID]model.Preference
	templates     map[uuid.UUID]model.Template
	campaigns     map[uuid.UUID]model.Campaign
	notifications map[uuid.UUID]model.Notification
	triggers      map[uuid.UUID]model.Trigger
	emailLogs     []model.EmailLog
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		preferences:   cloneMap(s.preferences),
		templates:     cloneMap(s.templates),
		campaigns:     cloneMap(s.campaigns),
		notifications: cloneMap(s.notifications),
		triggers:      cloneMap(s.triggers),
		emailLogs:     append([]model.EmailLog(nil), s.emailLogs...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences = snap.preferences
	s.templates = snap.templates
	s.campaigns = snap.campaigns
	s.notifications = snap.notifications
	s.triggers = snap.triggers
	s.emailLogs = snap.emailLogs
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
