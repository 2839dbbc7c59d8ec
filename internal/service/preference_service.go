package service

import (
	"context"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

type PreferenceService struct {
	Preferences repository.PreferenceRepositoryInterface
	Customers   repository.CustomerRepositoryInterface
}

func NewPreferenceService(store *repository.Store) *PreferenceService {
	return &PreferenceService{Preferences: store.Preferences, Customers: store.Customers}
}

// PreferenceInput is a partial update; nil fields keep their current value.
type PreferenceInput struct {
	EmailEnabled *bool           `json:"email_enabled"`
	SMSEnabled   *bool           `json:"sms_enabled"`
	PushEnabled  *bool           `json:"push_enabled"`
	Categories   map[string]bool `json:"categories"`
}

// Get returns the stored preference, or the opted-in default when none exists.
func (s *PreferenceService) Get(ctx context.Context, customerID uuid.UUID) (*model.Preference, error) {
	if _, err := s.Customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	p, err := s.Preferences.Get(ctx, customerID)
	if appErrors.IsNotFound(err) {
		def := model.DefaultPreference(customerID)
		return &def, nil
	}
	return p, err
}

func (s *PreferenceService) Update(ctx context.Context, customerID uuid.UUID, in PreferenceInput) (*model.Preference, error) {
	p, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if in.EmailEnabled != nil {
		p.EmailEnabled = *in.EmailEnabled
	}
	if in.SMSEnabled != nil {
		p.SMSEnabled = *in.SMSEnabled
	}
	if in.PushEnabled != nil {
		p.PushEnabled = *in.PushEnabled
	}
	if p.Categories == nil {
		p.Categories = model.Categories{}
	}
	for k, v := range in.Categories {
		if k == "" {
			return nil, appErrors.NewValidation("categories")
		}
		p.Categories[k] = v
	}
	if err := s.Preferences.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
