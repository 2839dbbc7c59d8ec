// internal/service/template_service.go
package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/db"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*)\s*\}\}`)

// RenderTemplate substitutes {{key}} and {{a.b}} placeholders from vars.
// Placeholders without a value are left verbatim.
func RenderTemplate(template string, vars map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := lookup(vars, strings.Split(path, "."))
		if !ok {
			return match
		}
		return v
	})
}

func lookup(vars map[string]any, path []string) (string, bool) {
	var cur any = vars
	for _, key := range path {
		switch m := cur.(type) {
		case map[string]any:
			cur = m[key]
		case model.Variables:
			cur = m[key]
		case map[string]string:
			s, ok := m[key]
			if !ok {
				return "", false
			}
			cur = s
		default:
			return "", false
		}
		if cur == nil {
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case map[string]any, model.Variables, map[string]string:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// recipientVars overlays the customer onto a template's default variables.
func recipientVars(defaults model.Variables, c *model.Customer) map[string]any {
	return defaults.Merge(map[string]any{"customer": c.TemplateVars()})
}

type TemplateService struct {
	Tx        db.Transactor
	Templates repository.TemplateRepositoryInterface
	Logger    *zap.Logger
}

func NewTemplateService(store *repository.Store, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{Tx: store.Tx, Templates: store.Templates, Logger: logger}
}

// TemplateInput is the writable part of a template.
type TemplateInput struct {
	Name      string          `json:"name"`
	Channel   model.Channel   `json:"channel"`
	Subject   string          `json:"subject"`
	Body      string          `json:"body"`
	Variables model.Variables `json:"variables"`
	Active    *bool           `json:"is_active"`
}

func (in TemplateInput) validate() error {
	var bad []string
	if strings.TrimSpace(in.Name) == "" {
		bad = append(bad, "name")
	}
	if !in.Channel.Valid() {
		bad = append(bad, "channel")
	}
	if strings.TrimSpace(in.Body) == "" {
		bad = append(bad, "body")
	}
	if len(bad) > 0 {
		return appErrors.NewValidation(bad...)
	}
	return nil
}

func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (*model.Template, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := &model.Template{
		Name:      strings.TrimSpace(in.Name),
		Channel:   in.Channel,
		Subject:   in.Subject,
		Body:      in.Body,
		Variables: in.Variables,
		Active:    in.Active == nil || *in.Active,
	}
	if err := s.Templates.Create(ctx, t); err != nil {
		return nil, err
	}
	s.Logger.Info("template created", zap.String("template_id", t.ID.String()), zap.String("channel", t.Channel.String()))
	return t, nil
}

func (s *TemplateService) Get(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	return s.Templates.GetByID(ctx, id)
}

// List returns active templates, optionally narrowed to one channel.
func (s *TemplateService) List(ctx context.Context, channel string) ([]*model.Template, error) {
	var ch model.Channel
	if channel != "" {
		parsed, err := model.ChannelFromString(channel)
		if err != nil {
			return nil, appErrors.NewValidation("channel")
		}
		ch = parsed
	}
	return s.Templates.List(ctx, ch)
}

func (s *TemplateService) Update(ctx context.Context, id uuid.UUID, in TemplateInput) (*model.Template, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t, err := s.Templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Name = strings.TrimSpace(in.Name)
	t.Channel = in.Channel
	t.Subject = in.Subject
	t.Body = in.Body
	if in.Variables != nil {
		t.Variables = in.Variables
	}
	if in.Active != nil {
		t.Active = *in.Active
	}
	if err := s.Templates.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete deactivates the template unless a live campaign or active trigger uses it.
func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Templates.GetByID(ctx, id); err != nil {
			return err
		}
		refs, err := s.Templates.CountReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs.Total() > 0 {
			return appErrors.NewConflict("template is used by %d active campaign(s) and %d active trigger(s)", refs.Campaigns, refs.Triggers)
		}
		return s.Templates.SoftDelete(ctx, id)
	})
}

// HardDelete removes the row unconditionally.
func (s *TemplateService) HardDelete(ctx context.Context, id uuid.UUID) error {
	if err := s.Templates.HardDelete(ctx, id); err != nil {
		return err
	}
	s.Logger.Warn("template hard deleted", zap.String("template_id", id.String()))
	return nil
}
