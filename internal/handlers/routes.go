package handlers

import (
	"context"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type Handlers struct {
	CheckIn *CheckInHandler
	Queue   *QueueHandler
	Seat    *SeatHandler

	// Health reports whether shared dependencies such as Redis are reachable.
	Health func(ctx context.Context) error
}

// Register mounts the API on the PocketBase router. Station endpoints need
// any authenticated record; resets and seat assignment are superuser only.
func (h *Handlers) Register(se *core.ServeEvent) {
	api := se.Router.Group("/api/v1")
	api.Bind(apis.RequireAuth())

	// Check-in
	api.POST("/activities/{activityId}/checkin", h.CheckIn.CheckIn)
	api.GET("/activities/{activityId}/registrations/{registrationId}/qr", h.CheckIn.QRToken)
	api.POST("/activities/{activityId}/counters/reset", h.CheckIn.ResetCounters).Bind(apis.RequireSuperuserAuth())

	// Queue channels
	api.POST("/channels/{channelId}/call-next", h.Queue.CallNext)
	api.POST("/channels/{channelId}/recall", h.Queue.Recall)
	api.POST("/channels/{channelId}/insert", h.Queue.Insert)
	api.POST("/channels/{channelId}/course", h.Queue.AssignCourse)
	api.POST("/activities/{activityId}/reset-called", h.Queue.ResetCalled).Bind(apis.RequireSuperuserAuth())

	// Seats
	api.POST("/activities/{activityId}/seats/auto-assign", h.Seat.AutoAssign).Bind(apis.RequireSuperuserAuth())
	api.GET("/activities/{activityId}/seating-chart", h.Seat.SeatingChart)

	se.Router.GET("/health", h.health)
}

func (h *Handlers) health(e *core.RequestEvent) error {
	if h.Health != nil {
		if err := h.Health(e.Request.Context()); err != nil {
			return e.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
