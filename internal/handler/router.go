package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/auth"
	"github.com/unclebandit/shopnotify-backend/internal/controller"
	"github.com/unclebandit/shopnotify-backend/internal/service"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	Templates   *service.TemplateService
	Campaigns   *service.CampaignService
	Analytics   *service.AnalyticsService
	Triggers    *service.TriggerService
	Preferences *service.PreferenceService
	Tracker     *service.DeliveryTracker
	SpecialDays *service.SpecialDayService
}

// NewRouter mounts the API. jwtService may be nil when no secret is configured.
func NewRouter(svc Services, jwtService *auth.JWTService, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	templates := controller.NewTemplateController(svc.Templates, logger)
	campaigns := controller.NewCampaignController(svc.Campaigns, logger)
	analytics := controller.NewAnalyticsController(svc.Analytics, logger)
	triggers := controller.NewTriggerController(svc.Triggers, logger)
	preferences := controller.NewPreferenceController(svc.Preferences, logger)
	notifications := controller.NewNotificationController(svc.Tracker, logger)
	specialDays := controller.NewSpecialDayController(svc.SpecialDays, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Observe(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"status":"ok"}}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Actor(jwtService))

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", templates.Create)
			r.Get("/", templates.List)
			r.Get("/{id}", templates.Get)
			r.Put("/{id}", templates.Update)
			r.Delete("/{id}", templates.Delete)
			r.Delete("/{id}/hard", templates.HardDelete)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", campaigns.CreateCampaign)
			r.Get("/", campaigns.ListCampaigns)
			r.Get("/{id}", campaigns.GetCampaignDetails)
			r.Post("/{id}/send", campaigns.SendCampaign)
			r.Post("/{id}/personalized-preview", campaigns.PersonalizedPreview)
		})

		r.Post("/audience/preview", campaigns.PreviewAudience)
		r.Get("/analytics", analytics.Report)

		r.Post("/triggers", triggers.Create)
		r.Get("/triggers", triggers.List)

		r.Get("/customers/{id}/preferences", preferences.Get)
		r.Put("/customers/{id}/preferences", preferences.Update)

		r.Route("/special-days", func(r chi.Router) {
			r.Post("/test", specialDays.SendTest)
			r.Post("/run", specialDays.Run)
			r.Get("/upcoming", specialDays.Upcoming)
			r.Get("/logs", specialDays.Logs)
		})
	})

	// Provider callbacks carry no operator identity.
	r.Post("/notifications/{id}/events", notifications.RecordEvent)

	return r
}
