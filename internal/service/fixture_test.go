package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/audience"
	"github.com/unclebandit/shopnotify-backend/internal/channel"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
	"github.com/unclebandit/shopnotify-backend/internal/repository/memstore"
)

// recordingSender captures outgoing messages and fails for listed recipients.
type recordingSender struct {
	mu      sync.Mutex
	sent    []channel.Message
	failFor map[string]bool
}

func (s *recordingSender) Send(ctx context.Context, msg channel.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[msg.Recipient] {
		return "", errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, msg)
	return "msg-" + uuid.NewString(), nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fixture struct {
	mem       *memstore.Store
	store     *repository.Store
	sender    *recordingSender
	templates *TemplateService
	campaigns *CampaignService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memstore.New()
	store := mem.Repositories()
	sender := &recordingSender{failFor: map[string]bool{}}
	resolver := audience.NewResolver(store.Customers, 30*24*time.Hour, nil)
	return &fixture{
		mem:       mem,
		store:     store,
		sender:    sender,
		templates: NewTemplateService(store, nil),
		campaigns: NewCampaignService(store, resolver, sender, nil, 4, nil),
	}
}

func (f *fixture) addCustomer(first, email string) model.Customer {
	c := model.Customer{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  "Tester",
		Email:     email,
		Active:    true,
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}
	f.mem.AddCustomer(c)
	return c
}

func (f *fixture) emailTemplate(t *testing.T) *model.Template {
	t.Helper()
	tmpl, err := f.templates.Create(context.Background(), TemplateInput{
		Name:    "Welcome",
		Channel: model.ChannelEmail,
		Subject: "Hi {{customer.first_name}}",
		Body:    "<p>Hello {{customer.first_name}}, use {{code}}</p>",
		Variables: model.Variables{
			"code": "SPRING10",
		},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tmpl
}

func (f *fixture) campaignNotifications(id uuid.UUID) []model.Notification {
	var out []model.Notification
	for _, n := range f.mem.Notifications() {
		if n.CampaignID != nil && *n.CampaignID == id {
			out = append(out, n)
		}
	}
	return out
}
