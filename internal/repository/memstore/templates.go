package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

type templateRepo struct{ s *Store }

func (r *templateRepo) Create(ctx context.Context, t *model.Template) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.templates[t.ID] = *t
	return nil
}

func (r *templateRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, appErrors.NewTemplateNotFound(id)
	}
	return &t, nil
}

func (r *templateRepo) List(ctx context.Context, channel model.Channel) ([]*model.Template, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Template{}
	for _, t := range r.s.templates {
		if !t.Active || (channel != "" && t.Channel != channel) {
			continue
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *templateRepo) Update(ctx context.Context, t *model.Template) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.templates[t.ID]
	if !ok {
		return appErrors.NewTemplateNotFound(t.ID)
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	r.s.templates[t.ID] = *t
	return nil
}

func (r *templateRepo) CountReferences(ctx context.Context, id uuid.UUID) (model.TemplateRefs, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var refs model.TemplateRefs
	for _, c := range r.s.campaigns {
		if c.TemplateID == id && !c.Status.Terminal() {
			refs.Campaigns++
		}
	}
	for _, t := range r.s.triggers {
		if t.TemplateID == id && t.Active {
			refs.Triggers++
		}
	}
	return refs, nil
}

func (r *templateRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return appErrors.NewTemplateNotFound(id)
	}
	t.Active = false
	t.UpdatedAt = time.Now().UTC()
	r.s.templates[id] = t
	return nil
}

func (r *templateRepo) HardDelete(ctx context.Context, id uuid.UUID) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[id]; !ok {
		return appErrors.NewTemplateNotFound(id)
	}
	delete(r.s.templates, id)
	return nil
}

var _ repository.TemplateRepositoryInterface = (*templateRepo)(nil)
