package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/service"
)

const defaultAnalyticsPeriod = 30

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
	Logger           *zap.Logger
}

func NewAnalyticsController(svc *service.AnalyticsService, logger *zap.Logger) *AnalyticsController {
	return &AnalyticsController{AnalyticsService: svc, Logger: orNop(logger)}
}

// Report serves GET /analytics?period=<days>.
func (c *AnalyticsController) Report(w http.ResponseWriter, r *http.Request) {
	period, err := queryInt(r, "period", defaultAnalyticsPeriod)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	report, err := c.AnalyticsService.Report(r.Context(), period)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, report)
}
