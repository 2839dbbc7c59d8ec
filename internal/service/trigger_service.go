package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

type TriggerService struct {
	Triggers  repository.TriggerRepositoryInterface
	Templates repository.TemplateRepositoryInterface
}

func NewTriggerService(store *repository.Store) *TriggerService {
	return &TriggerService{Triggers: store.Triggers, Templates: store.Templates}
}

type TriggerInput struct {
	Name        string                 `json:"name"`
	TriggerType model.TriggerType      `json:"trigger_type"`
	Condition   model.TriggerCondition `json:"condition"`
	TemplateID  uuid.UUID              `json:"template_id"`
	Active      *bool                  `json:"is_active"`
}

func (s *TriggerService) Create(ctx context.Context, in TriggerInput) (*model.Trigger, error) {
	var bad []string
	if strings.TrimSpace(in.Name) == "" {
		bad = append(bad, "name")
	}
	if !in.TriggerType.Valid() {
		bad = append(bad, "trigger_type")
	}
	if in.TemplateID == uuid.Nil {
		bad = append(bad, "template_id")
	}
	if len(bad) > 0 {
		return nil, appErrors.NewValidation(bad...)
	}
	if _, err := s.Templates.GetByID(ctx, in.TemplateID); err != nil {
		return nil, err
	}

	t := &model.Trigger{
		Name:        strings.TrimSpace(in.Name),
		TriggerType: in.TriggerType,
		Condition:   in.Condition,
		TemplateID:  in.TemplateID,
		Active:      in.Active == nil || *in.Active,
	}
	if err := s.Triggers.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TriggerService) List(ctx context.Context) ([]*model.Trigger, error) {
	return s.Triggers.List(ctx)
}
