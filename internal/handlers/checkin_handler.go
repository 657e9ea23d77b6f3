package handlers

import (
	"net/http"
	"strings"

	"checkin-system/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type CheckInHandler struct {
	checkin  *services.CheckInService
	counters *services.CounterService
}

func NewCheckInHandler(checkin *services.CheckInService, counters *services.CounterService) *CheckInHandler {
	return &CheckInHandler{checkin: checkin, counters: counters}
}

// CheckIn - check a registrant in by QR token or registration id
func (h *CheckInHandler) CheckIn(e *core.RequestEvent) error {
	activityID := e.Request.PathValue("activityId")

	var req struct {
		RegistrationID string `json:"registration_id"`
		QRToken        string `json:"qr_token"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	var (
		alloc *services.Allocation
		err   error
	)
	switch {
	case strings.TrimSpace(req.QRToken) != "":
		alloc, err = h.checkin.CheckInToken(e.Request.Context(), activityID, req.QRToken)
	case req.RegistrationID != "":
		alloc, err = h.checkin.CheckIn(e.Request.Context(), activityID, req.RegistrationID)
	default:
		return apis.NewBadRequestError("registration_id or qr_token is required", nil)
	}
	if err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ok": true, "allocation": alloc})
}

// ResetCounters - point every course counter at its first unused number
func (h *CheckInHandler) ResetCounters(e *core.RequestEvent) error {
	counters, err := h.counters.ResetAllCounters(e.Request.Context(), e.Request.PathValue("activityId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ok": true, "queue_counters": counters})
}

// QRToken - payload for the QR code printed on a registrant's pass
func (h *CheckInHandler) QRToken(e *core.RequestEvent) error {
	token, err := h.checkin.IssueToken(e.Request.PathValue("activityId"), e.Request.PathValue("registrationId"))
	if err != nil {
		return apis.NewBadRequestError("QR check-in is not configured", nil)
	}
	return e.JSON(http.StatusOK, map[string]string{"qr_token": token})
}
