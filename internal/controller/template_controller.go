package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/service"
)

type TemplateController struct {
	TemplateService *service.TemplateService
	Logger          *zap.Logger
}

func NewTemplateController(svc *service.TemplateService, logger *zap.Logger) *TemplateController {
	return &TemplateController{TemplateService: svc, Logger: orNop(logger)}
}

func (c *TemplateController) Create(w http.ResponseWriter, r *http.Request) {
	var in service.TemplateInput
	if err := decode(r, &in); err != nil {
		badRequest(w, "invalid body")
		return
	}
	t, err := c.TemplateService.Create(r.Context(), in)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	created(w, t)
}

func (c *TemplateController) List(w http.ResponseWriter, r *http.Request) {
	templates, err := c.TemplateService.List(r.Context(), r.URL.Query().Get("channel"))
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, templates)
}

func (c *TemplateController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	t, err := c.TemplateService.Get(r.Context(), id)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, t)
}

func (c *TemplateController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	var in service.TemplateInput
	if err := decode(r, &in); err != nil {
		badRequest(w, "invalid body")
		return
	}
	t, err := c.TemplateService.Update(r.Context(), id, in)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, t)
}

// Delete soft-deletes; a template still in use answers 409.
func (c *TemplateController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	if err := c.TemplateService.Delete(r.Context(), id); err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, map[string]interface{}{"id": id, "deleted": true})
}

func (c *TemplateController) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	if err := c.TemplateService.HardDelete(r.Context(), id); err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, map[string]interface{}{"id": id, "deleted": true, "hard": true})
}
