package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/channel"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
)

const maxUpcomingDays = 366

var defaultSpecialDayContent = map[model.EmailType]struct{ subject, body string }{
	model.EmailTypeBirthday: {
		subject: "Happy Birthday, {{customer.first_name}}!",
		body:    "<p>Dear {{customer.first_name}},</p><p>Everyone at the shop wishes you a wonderful birthday.</p>",
	},
	model.EmailTypeAnniversary: {
		subject: "Happy Anniversary, {{customer.first_name}}!",
		body:    "<p>Dear {{customer.first_name}},</p><p>Congratulations on your anniversary from all of us at the shop.</p>",
	},
}

// SpecialDayService sends birthday and anniversary emails and keeps the
// EmailLog ledger. It does not create campaigns or notifications.
type SpecialDayService struct {
	Customers repository.CustomerRepositoryInterface
	Triggers  repository.TriggerRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	EmailLogs repository.EmailLogRepositoryInterface
	Sender    Sender
	Now       func() time.Time
	Logger    *zap.Logger
}

func NewSpecialDayService(store *repository.Store, sender Sender, logger *zap.Logger) *SpecialDayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpecialDayService{
		Customers: store.Customers,
		Triggers:  store.Triggers,
		Templates: store.Templates,
		EmailLogs: store.EmailLogs,
		Sender:    sender,
		Now:       time.Now,
		Logger:    logger,
	}
}

type SpecialDayResult struct {
	EmailType model.EmailType `json:"email_type"`
	Matched   int             `json:"matched"`
	Sent      int             `json:"sent"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
}

type SpecialDayReport struct {
	Birthday    *SpecialDayResult `json:"birthday"`
	Anniversary *SpecialDayResult `json:"anniversary"`
	Errors      []string          `json:"errors,omitempty"`
}

type UpcomingSpecialDay struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	Email      string          `json:"email"`
	EmailType  model.EmailType `json:"email_type"`
	Date       string          `json:"date"`
	DaysUntil  int             `json:"days_until"`
}

func dateField(t model.EmailType) repository.DateField {
	if t == model.EmailTypeAnniversary {
		return repository.DateAnniversary
	}
	return repository.DateBirthday
}

func (s *SpecialDayService) today() (time.Time, time.Time) {
	now := s.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

func (s *SpecialDayService) matchToday(ctx context.Context, t model.EmailType) ([]model.Customer, error) {
	start, _ := s.today()
	customers, err := s.Customers.ListByMonthDay(ctx, dateField(t), int(start.Month()), start.Day())
	return customers, appErrors.Infra("list "+string(t)+" customers", err)
}

func (s *SpecialDayService) CustomersWithBirthdayToday(ctx context.Context) ([]model.Customer, error) {
	return s.matchToday(ctx, model.EmailTypeBirthday)
}

func (s *SpecialDayService) CustomersWithAnniversaryToday(ctx context.Context) ([]model.Customer, error) {
	return s.matchToday(ctx, model.EmailTypeAnniversary)
}

func (s *SpecialDayService) SendBirthdayEmails(ctx context.Context) (*SpecialDayResult, error) {
	return s.sendAll(ctx, model.EmailTypeBirthday)
}

func (s *SpecialDayService) SendAnniversaryEmails(ctx context.Context) (*SpecialDayResult, error) {
	return s.sendAll(ctx, model.EmailTypeAnniversary)
}

// SendAllSpecialDayEmails runs both paths; a failure or panic in one never
// stops the other.
func (s *SpecialDayService) SendAllSpecialDayEmails(ctx context.Context) *SpecialDayReport {
	report := &SpecialDayReport{}
	for _, t := range []model.EmailType{model.EmailTypeBirthday, model.EmailTypeAnniversary} {
		res, err := s.runIsolated(ctx, t)
		if err != nil {
			s.Logger.Error("special day dispatch failed", zap.String("email_type", string(t)), zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", t, err))
		}
		if t == model.EmailTypeBirthday {
			report.Birthday = res
		} else {
			report.Anniversary = res
		}
	}
	return report
}

func (s *SpecialDayService) runIsolated(ctx context.Context, t model.EmailType) (res *SpecialDayResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.sendAll(ctx, t)
}

func (s *SpecialDayService) sendAll(ctx context.Context, t model.EmailType) (*SpecialDayResult, error) {
	customers, err := s.matchToday(ctx, t)
	if err != nil {
		return nil, err
	}
	subject, body, defaults := s.content(ctx, t)
	start, end := s.today()

	res := &SpecialDayResult{EmailType: t, Matched: len(customers)}
	for i := range customers {
		c := &customers[i]
		already, err := s.EmailLogs.HasSentBetween(ctx, c.ID, t, start, end)
		if err != nil {
			return res, err
		}
		if already {
			res.Skipped++
			continue
		}
		if entry := s.send(ctx, t, c, subject, body, defaults); entry.Status == model.EmailLogSent {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	s.Logger.Info("special day emails processed",
		zap.String("email_type", string(t)),
		zap.Int("matched", res.Matched),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// content prefers the newest active trigger's template over the built-in copy.
func (s *SpecialDayService) content(ctx context.Context, t model.EmailType) (string, string, model.Variables) {
	def := defaultSpecialDayContent[t]
	trig, err := s.Triggers.FindActiveByType(ctx, model.TriggerType(t))
	if err != nil {
		if !appErrors.IsNotFound(err) {
			s.Logger.Warn("trigger lookup failed, using default content", zap.String("email_type", string(t)), zap.Error(err))
		}
		return def.subject, def.body, nil
	}
	tmpl, err := s.Templates.GetByID(ctx, trig.TemplateID)
	if err != nil || !tmpl.Active || tmpl.Channel != model.ChannelEmail {
		s.Logger.Warn("trigger template unusable, using default content",
			zap.String("trigger_id", trig.ID.String()), zap.Error(err))
		return def.subject, def.body, nil
	}
	subject := tmpl.Subject
	if strings.TrimSpace(subject) == "" {
		subject = def.subject
	}
	return subject, tmpl.Body, tmpl.Variables
}

// send dispatches one email and appends its ledger row.
func (s *SpecialDayService) send(ctx context.Context, t model.EmailType, c *model.Customer, subject, body string, defaults model.Variables) *model.EmailLog {
	vars := recipientVars(defaults, c)
	_, sendErr := s.Sender.Send(ctx, channel.Message{
		Channel:   model.ChannelEmail,
		Recipient: c.Email,
		Name:      strings.TrimSpace(c.FirstName + " " + c.LastName),
		Subject:   RenderTemplate(subject, vars),
		Content:   RenderTemplate(body, vars),
	})

	entry := &model.EmailLog{
		CustomerID: c.ID,
		EmailType:  t,
		Recipient:  c.Email,
		Status:     model.EmailLogSent,
		SentAt:     s.Now().UTC(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Status = model.EmailLogFailed
		entry.Error = &msg
	}
	if err := s.EmailLogs.Create(ctx, entry); err != nil {
		s.Logger.Error("write email log failed",
			zap.String("customer_id", c.ID.String()),
			zap.String("email_type", string(t)),
			zap.String("status", entry.Status),
			zap.Error(err))
	}
	return entry
}

// SendTest sends one special-day email to a customer regardless of the date.
func (s *SpecialDayService) SendTest(ctx context.Context, customerID uuid.UUID, t model.EmailType) (*model.EmailLog, error) {
	if !t.Valid() {
		return nil, appErrors.NewValidation("email_type")
	}
	c, err := s.Customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c.Email == "" {
		return nil, appErrors.NewValidation("customer.email")
	}
	subject, body, defaults := s.content(ctx, t)
	return s.send(ctx, t, c, subject, body, defaults), nil
}

// UpcomingSpecialDays lists birthdays and anniversaries falling within the
// next days days, today included, soonest first.
func (s *SpecialDayService) UpcomingSpecialDays(ctx context.Context, days int) ([]UpcomingSpecialDay, error) {
	if days < 1 || days > maxUpcomingDays {
		return nil, appErrors.NewValidation("days")
	}
	customers, err := s.Customers.ListWithSpecialDates(ctx)
	if err != nil {
		return nil, appErrors.Infra("list special dates", err)
	}
	start, _ := s.today()

	out := []UpcomingSpecialDay{}
	for _, c := range customers {
		for _, d := range []struct {
			t    model.EmailType
			date *time.Time
		}{{model.EmailTypeBirthday, c.Birthday}, {model.EmailTypeAnniversary, c.Anniversary}} {
			if d.date == nil {
				continue
			}
			if offset, ok := nextOccurrence(start, *d.date, days); ok {
				out = append(out, UpcomingSpecialDay{
					CustomerID: c.ID,
					FirstName:  c.FirstName,
					LastName:   c.LastName,
					Email:      c.Email,
					EmailType:  d.t,
					Date:       start.AddDate(0, 0, offset).Format("2006-01-02"),
					DaysUntil:  offset,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysUntil < out[j].DaysUntil })
	return out, nil
}

// nextOccurrence finds the first day in [from, from+days) whose month and day
// equal stored's. Feb 29 only matches in leap years.
func nextOccurrence(from, stored time.Time, days int) (int, bool) {
	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, i)
		if d.Month() == stored.Month() && d.Day() == stored.Day() {
			return i, true
		}
	}
	return 0, false
}

// ListEmailLogs pages through the ledger, newest first.
func (s *SpecialDayService) ListEmailLogs(ctx context.Context, emailType, status string, page, pageSize int) ([]*model.EmailLog, map[string]int, error) {
	f := model.EmailLogFilter{EmailType: model.EmailType(emailType), Status: status}
	if emailType != "" && !f.EmailType.Valid() {
		return nil, nil, appErrors.NewValidation("type")
	}
	if status != "" && status != model.EmailLogSent && status != model.EmailLogFailed {
		return nil, nil, appErrors.NewValidation("status")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	f.Offset, f.Limit = (page-1)*pageSize, pageSize

	logs, total, err := s.EmailLogs.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return logs, map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}, nil
}
