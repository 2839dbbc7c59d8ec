package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/service"
)

// NotificationController receives delivery status callbacks from providers.
type NotificationController struct {
	Tracker *service.DeliveryTracker
	Logger  *zap.Logger
}

func NewNotificationController(tracker *service.DeliveryTracker, logger *zap.Logger) *NotificationController {
	return &NotificationController{Tracker: tracker, Logger: orNop(logger)}
}

// RecordEvent serves POST /notifications/{id}/events. A status that does not
// advance the notification answers 409.
func (c *NotificationController) RecordEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	var ev service.DeliveryEvent
	if err := decode(r, &ev); err != nil {
		badRequest(w, "invalid body")
		return
	}
	n, err := c.Tracker.RecordEvent(r.Context(), id, ev)
	if err != nil {
		fail(w, r, c.Logger, err)
		return
	}
	ok(w, n)
}
