package handlers

import (
	"net/http"

	"checkin-system/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type QueueHandler struct {
	dispatcher *services.Dispatcher
}

func NewQueueHandler(dispatcher *services.Dispatcher) *QueueHandler {
	return &QueueHandler{dispatcher: dispatcher}
}

func (h *QueueHandler) CallNext(e *core.RequestEvent) error {
	res, err := h.dispatcher.CallNext(e.Request.Context(), e.Request.PathValue("channelId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ok": true, "call": res})
}

func (h *QueueHandler) Recall(e *core.RequestEvent) error {
	res, err := h.dispatcher.Recall(e.Request.Context(), e.Request.PathValue("channelId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ok": true, "call": res})
}

// Insert - call a specific ticket out of turn
func (h *QueueHandler) Insert(e *core.RequestEvent) error {
	var req struct {
		DisplayQueueNumber string `json:"display_queue_number"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.DisplayQueueNumber == "" {
		return apis.NewBadRequestError("display_queue_number is required", nil)
	}

	res, err := h.dispatcher.Insert(e.Request.Context(), e.Request.PathValue("channelId"), req.DisplayQueueNumber)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ok": true, "call": res})
}

// AssignCourse - set or clear the course a channel serves
func (h *QueueHandler) AssignCourse(e *core.RequestEvent) error {
	var req struct {
		Course string `json:"course"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ch, err := h.dispatcher.AssignCourse(e.Request.Context(), e.Request.PathValue("channelId"), req.Course)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ok": true, "channel": ch})
}

func (h *QueueHandler) ResetCalled(e *core.RequestEvent) error {
	n, err := h.dispatcher.ResetCalled(e.Request.Context(), e.Request.PathValue("activityId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ok": true, "reset": n})
}
