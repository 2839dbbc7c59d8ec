package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/service"
)

type TriggerController struct {
	TriggerService *service.TriggerService
	Logger         *zap.Logger
}

func NewTriggerController(svc *service.TriggerService, logger *zap.Logger) *TriggerController {
	return &TriggerController{TriggerService: svc, Logger: orNop(logger)}
}

func (c *TriggerController) Create(w http.ResponseWriter, r *http.Request) {
	var in service.TriggerInput
	if err := decode(r, &in); err != nil {
		badRequest(w, "invalid body")
		return
	}
	t, err := c.TriggerService.Create(r.Context(), in)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	created(w, t)
}

func (c *TriggerController) List(w http.ResponseWriter, r *http.Request) {
	triggers, err := c.TriggerService.List(r.Context())
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, triggers)
}
