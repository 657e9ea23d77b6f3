package handlers

import (
	"net/http"

	"checkin-system/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type SeatHandler struct {
	seatService *services.SeatService
}

func NewSeatHandler(seatService *services.SeatService) *SeatHandler {
	return &SeatHandler{seatService: seatService}
}

// AutoAssign - seat the whole roster; every previous seat is overwritten
func (h *SeatHandler) AutoAssign(e *core.RequestEvent) error {
	var req services.AutoAssignOptions
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	switch req.SortBy {
	case "":
		req.SortBy = services.SortByImportOrder
	case services.SortByImportOrder, services.SortByName:
	default:
		return apis.NewBadRequestError("sort_by must be import_order or name", nil)
	}

	res, err := h.seatService.AutoAssign(e.Request.Context(), e.Request.PathValue("activityId"), req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, res)
}

func (h *SeatHandler) SeatingChart(e *core.RequestEvent) error {
	rows, err := h.seatService.SeatingChart(e.Request.Context(), e.Request.PathValue("activityId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"rows": rows})
}
