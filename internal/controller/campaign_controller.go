package controller

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/auth"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          *zap.Logger
}

func NewCampaignController(svc *service.CampaignService, logger *zap.Logger) *CampaignController {
	return &CampaignController{CampaignService: svc, Logger: orNop(logger)}
}

// CreateCampaign stores a draft, or a scheduled campaign when scheduled_at is set.
// The creator is taken from the authenticated actor.
func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	body.CreatedBy = auth.ActorFromContext(r.Context())

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	created(w, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	q := r.URL.Query()
	f := model.CampaignFilter{
		Status:   model.CampaignStatus(q.Get("status")),
		Audience: model.TargetAudience(q.Get("audience")),
	}
	var bad []string
	if f.Status != "" && !f.Status.Valid() {
		bad = append(bad, "status")
	}
	if ch := q.Get("channel"); ch != "" {
		parsed, err := model.ChannelFromString(ch)
		if err != nil {
			bad = append(bad, "channel")
		}
		f.Channel = parsed
	}
	if f.Audience != "" && !f.Audience.Valid() {
		bad = append(bad, "audience")
	}
	if len(bad) > 0 {
		fail(w, r, c.Logger, appErrors.NewValidation(bad...))
		return
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, f)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, Page{Items: campaigns, Pagination: pagination})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, details)
}

// SendCampaign sends now. A campaign that is already sending or finished answers 409.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	result, err := c.CampaignService.SendCampaign(r.Context(), id)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, result)
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	campaignID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	var body struct {
		CustomerID uuid.UUID `json:"customer_id"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if body.CustomerID == uuid.Nil {
		fail(w, r, c.Logger, appErrors.NewValidation("customer_id"))
		return
	}
	preview, err := c.CampaignService.PersonalizedPreview(r.Context(), campaignID, body.CustomerID)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, preview)
}

// PreviewAudience resolves a filter without creating or sending anything.
func (c *CampaignController) PreviewAudience(w http.ResponseWriter, r *http.Request) {
	var f model.AudienceFilter
	if err := decode(r, &f); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if bad := f.Validate(); len(bad) > 0 {
		fail(w, r, c.Logger, appErrors.NewValidation(bad...))
		return
	}
	preview, err := c.CampaignService.PreviewAudience(r.Context(), f.Normalize())
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, preview)
}
