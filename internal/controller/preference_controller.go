package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/service"
)

type PreferenceController struct {
	PreferenceService *service.PreferenceService
	Logger            *zap.Logger
}

func NewPreferenceController(svc *service.PreferenceService, logger *zap.Logger) *PreferenceController {
	return &PreferenceController{PreferenceService: svc, Logger: orNop(logger)}
}

func (c *PreferenceController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	p, err := c.PreferenceService.Get(r.Context(), id)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, p)
}

// Update applies a partial update; omitted fields keep their value.
func (c *PreferenceController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	var in service.PreferenceInput
	if err := decode(r, &in); err != nil {
		badRequest(w, "invalid body")
		return
	}
	p, err := c.PreferenceService.Update(r.Context(), id, in)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, p)
}
