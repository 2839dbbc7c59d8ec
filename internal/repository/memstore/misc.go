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

// ====================== Triggers ======================

type triggerRepo struct{ s *Store }

func (r *triggerRepo) Create(ctx context.Context, t *model.Trigger) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	r.s.triggers[t.ID] = *t
	return nil
}

func (r *triggerRepo) List(ctx context.Context) ([]*model.Trigger, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Trigger{}
	for _, t := range r.s.triggers {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *triggerRepo) FindActiveByType(ctx context.Context, triggerType model.TriggerType) (*model.Trigger, error) {
	all, _ := r.List(ctx)
	for _, t := range all {
		if t.TriggerType == triggerType && t.Active {
			return t, nil
		}
	}
	return nil, &appErrors.NotFoundError{Entity: "trigger", ID: string(triggerType)}
}

// ====================== Preferences ======================

type preferenceRepo struct{ s *Store }

func (r *preferenceRepo) Get(ctx context.Context, customerID uuid.UUID) (*model.Preference, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.preferences[customerID]
	if !ok {
		return nil, appErrors.NewNotFound("preference", customerID)
	}
	p.Categories = cloneMap(p.Categories)
	return &p, nil
}

func (r *preferenceRepo) Upsert(ctx context.Context, p *model.Preference) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	stored := *p
	stored.Categories = cloneMap(p.Categories)
	r.s.preferences[p.CustomerID] = stored
	return nil
}

// ====================== Email logs ======================

type emailLogRepo struct{ s *Store }

func (r *emailLogRepo) Create(ctx context.Context, l *model.EmailLog) error {
	defer r.s.enter(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.SentAt.IsZero() {
		l.SentAt = time.Now().UTC()
	}
	r.s.emailLogs = append(r.s.emailLogs, *l)
	return nil
}

func (r *emailLogRepo) List(ctx context.Context, f model.EmailLogFilter) ([]*model.EmailLog, int, error) {
	r.s.mu.RLock()
	out := []*model.EmailLog{}
	for _, l := range r.s.emailLogs {
		if (f.EmailType != "" && l.EmailType != f.EmailType) || (f.Status != "" && l.Status != f.Status) {
			continue
		}
		l := l
		out = append(out, &l)
	}
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return paginate(out, f.Offset, f.Limit), len(out), nil
}

func (r *emailLogRepo) HasSentBetween(ctx context.Context, customerID uuid.UUID, emailType model.EmailType, from, to time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, l := range r.s.emailLogs {
		if l.CustomerID == customerID && l.EmailType == emailType && l.Status == model.EmailLogSent &&
			!l.SentAt.Before(from) && l.SentAt.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

var (
	_ repository.TriggerRepositoryInterface    = (*triggerRepo)(nil)
	_ repository.PreferenceRepositoryInterface = (*preferenceRepo)(nil)
	_ repository.EmailLogRepositoryInterface   = (*emailLogRepo)(nil)
)
