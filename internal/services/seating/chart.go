package seating

import "checkin-system/models"

type ChartSeat struct {
	Seat           string `json:"seat"`
	Reserved       bool   `json:"reserved"`
	RegistrationID string `json:"registration_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Course         string `json:"course,omitempty"`
}

type ChartRow struct {
	Label          string      `json:"label"`
	DominantCourse string      `json:"dominant_course"`
	Seats          []ChartSeat `json:"seats"`
}

// Chart lays registrants onto the layout by their current seat and names
// the most common course of each row. Ties go to the course seen first in
// seat order; a row with nobody seated has no dominant course.
func Chart(layout Layout, regs []*models.Registration) []ChartRow {
	bySeat := make(map[string]*models.Registration, len(regs))
	for _, r := range regs {
		if r.SeatNumber != "" {
			bySeat[r.SeatNumber] = r
		}
	}

	rows := layout.Rows()
	out := make([]ChartRow, len(rows))
	for i, row := range rows {
		chartRow := ChartRow{Label: row.Label, Seats: make([]ChartSeat, len(row.Seats))}

		counts := map[string]int{}
		var order []string
		for j, seat := range row.Seats {
			label := seat.String()
			cs := ChartSeat{Seat: label, Reserved: IsReserved(seat)}
			if r, ok := bySeat[label]; ok {
				cs.RegistrationID = r.ID
				cs.Name = r.Name
				cs.Course = r.Course
				if r.Course != "" {
					if counts[r.Course] == 0 {
						order = append(order, r.Course)
					}
					counts[r.Course]++
				}
			}
			chartRow.Seats[j] = cs
		}

		best := 0
		for _, course := range order {
			if counts[course] > best {
				best = counts[course]
				chartRow.DominantCourse = course
			}
		}
		out[i] = chartRow
	}
	return out
}
