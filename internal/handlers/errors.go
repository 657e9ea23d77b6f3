package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"checkin-system/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type errorInfo struct {
	target  error
	code    string
	status  int
	message string
}

var errorTable = []errorInfo{
	{status.ErrNotFound, "not_found", http.StatusNotFound, "Record not found"},
	{status.ErrAlreadyProcessed, "already_processed", http.StatusOK, "Already checked in"},
	{status.ErrCancelled, "cancelled", http.StatusConflict, "This registration has been cancelled"},
	{status.ErrMissingCourse, "missing_course", http.StatusUnprocessableEntity, "The registrant has no course, please set one first"},
	{status.ErrConfiguration, "configuration", http.StatusUnprocessableEntity, "This channel has no course assigned"},
	{status.ErrQueueEmpty, "queue_empty", http.StatusOK, "No one is waiting for this course"},
	{status.ErrNothingToRecall, "nothing_to_recall", http.StatusOK, "Nothing to recall on this channel"},
	{status.ErrContention, "contention", http.StatusServiceUnavailable, "The system is busy, please try again"},
	{status.ErrInvalidToken, "invalid_token", http.StatusBadRequest, "This QR code is not valid"},
	{status.ErrNoSeatLayout, "no_seat_layout", http.StatusUnprocessableEntity, "This activity type has no seat layout"},
	{status.ErrAssignmentInProgress, "assignment_in_progress", http.StatusConflict, "Seat assignment is already running for this activity"},
	{status.ErrCapacityExceeded, "capacity_exceeded", http.StatusUnprocessableEntity, "There are more registrants than seats"},
}

func classify(err error) (errorInfo, bool) {
	for _, info := range errorTable {
		if errors.Is(err, info.target) {
			return info, true
		}
	}
	return errorInfo{}, false
}

// UserMessage turns a service error into text for an operator screen.
func UserMessage(err error) string {
	if info, ok := classify(err); ok {
		return info.message
	}
	return "Something went wrong, please try again"
}

// outcome is the body of informational responses such as an empty queue,
// which are answered with 200 so station UIs can show them inline.
type outcome struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(e *core.RequestEvent, err error) error {
	info, ok := classify(err)
	if !ok {
		slog.Error("Unhandled request error", "error", err, "path", e.Request.URL.Path)
		return apis.NewInternalServerError(UserMessage(err), nil)
	}
	if status.Informational(err) {
		return e.JSON(http.StatusOK, outcome{OK: false, Code: info.code, Message: info.message})
	}
	return apis.NewApiError(info.status, info.message, nil)
}
