package controller

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/service"
)

const defaultUpcomingDays = 7

type SpecialDayController struct {
	SpecialDayService *service.SpecialDayService
	Logger            *zap.Logger
}

func NewSpecialDayController(svc *service.SpecialDayService, logger *zap.Logger) *SpecialDayController {
	return &SpecialDayController{SpecialDayService: svc, Logger: orNop(logger)}
}

// SendTest sends one birthday or anniversary email now, ignoring the date.
func (c *SpecialDayController) SendTest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID uuid.UUID       `json:"customer_id"`
		EmailType  model.EmailType `json:"email_type"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if body.CustomerID == uuid.Nil {
		fail(w, r, c.Logger, appErrors.NewValidation("customer_id"))
		return
	}
	entry, err := c.SpecialDayService.SendTest(r.Context(), body.CustomerID, body.EmailType)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, entry)
}

// Run fires today's birthday and anniversary sends.
func (c *SpecialDayController) Run(w http.ResponseWriter, r *http.Request) {
	ok(w, c.SpecialDayService.SendAllSpecialDayEmails(r.Context()))
}

func (c *SpecialDayController) Upcoming(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultUpcomingDays)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	upcoming, err := c.SpecialDayService.UpcomingSpecialDays(r.Context(), days)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, upcoming)
}

func (c *SpecialDayController) Logs(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	q := r.URL.Query()
	logs, pagination, err := c.SpecialDayService.ListEmailLogs(r.Context(), q.Get("type"), q.Get("status"), page, pageSize)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	if logs == nil {
		logs = []*model.EmailLog{}
	}
	ok(w, Page{Items: logs, Pagination: pagination})
}
