// Package seating holds the fixed venue layouts and the deterministic
// assignment of an ordered roster onto them. Nothing here touches storage.
package seating

import (
	"fmt"

	"checkin-system/internal/status"
	"checkin-system/models"
)

// Layout is an ordered list of assignable seats grouped into display rows.
type Layout interface {
	Name() string
	// Seats lists assignable seats in fill order.
	Seats() []Seat
	// Rows lists every seat, reserved ones included, row by row.
	Rows() []Row
}

type Row struct {
	Label string
	Seats []Seat
}

// LayoutFor picks the venue layout used by an activity type.
func LayoutFor(t models.ActivityType) (Layout, error) {
	switch t {
	case models.ActivityExam:
		return Exam, nil
	case models.ActivityGraduation, models.ActivityEvent:
		return Theater, nil
	default:
		return nil, fmt.Errorf("%w: %q", status.ErrNoSeatLayout, t)
	}
}

type Assignment struct {
	RegistrationID string `json:"registration_id"`
	Seat           string `json:"seat"`
}

// AutoAssign gives the i-th registrant the i-th assignable seat. Registrants
// past the end of the layout are returned as unseated.
func AutoAssign(layout Layout, ordered []*models.Registration) ([]Assignment, []string) {
	seats := layout.Seats()

	assignments := make([]Assignment, 0, min(len(ordered), len(seats)))
	var unseated []string
	for i, r := range ordered {
		if i >= len(seats) {
			unseated = append(unseated, r.ID)
			continue
		}
		assignments = append(assignments, Assignment{RegistrationID: r.ID, Seat: seats[i].String()})
	}
	return assignments, unseated
}
