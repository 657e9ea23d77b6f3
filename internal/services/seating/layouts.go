package seating

import "fmt"

const (
	examZones    = "ABCDEF"
	examZoneSize = 100

	theaterRows = 18
	theaterCols = 10
	vipSeats    = 10
)

var theaterZones = []string{"A", "B"}

// ajSeats are aisle seats held back for ushers. They sit at the outer edge
// of every third row, first column of zone A and last column of zone B.
var ajSeats = map[string]bool{
	"A1-1": true, "B1-10": true,
	"A4-1": true, "B4-10": true,
	"A7-1": true, "B7-10": true,
	"A10-1": true, "B10-10": true,
	"A13-1": true, "B13-10": true,
	"A16-1": true, "B16-10": true,
}

// IsReserved reports whether a seat is never auto-assigned.
func IsReserved(s Seat) bool {
	return s.VIP || ajSeats[s.String()]
}

// VIPSeats lists the manually assigned VIP seats.
func VIPSeats() []Seat {
	out := make([]Seat, vipSeats)
	for i := range out {
		out[i] = Seat{Number: i + 1, VIP: true}
	}
	return out
}

type examLayout struct{}

// Exam is six zones A-F of one hundred seats numbered A001 to F600.
var Exam Layout = examLayout{}

func (examLayout) Name() string { return "exam" }

func (examLayout) Seats() []Seat {
	seats := make([]Seat, 0, len(examZones)*examZoneSize)
	for z := 0; z < len(examZones); z++ {
		for i := 0; i < examZoneSize; i++ {
			seats = append(seats, Seat{
				Zone:   examZones[z : z+1],
				Number: z*examZoneSize + i + 1,
			})
		}
	}
	return seats
}

func (l examLayout) Rows() []Row {
	seats := l.Seats()
	rows := make([]Row, len(examZones))
	for z := range rows {
		rows[z] = Row{
			Label: "Zone " + examZones[z:z+1],
			Seats: seats[z*examZoneSize : (z+1)*examZoneSize],
		}
	}
	return rows
}

type theaterLayout struct{}

// Theater is two zones of 18 rows by 10 seats. Zone A fills completely
// before zone B, row-major, skipping reserved seats.
var Theater Layout = theaterLayout{}

func (theaterLayout) Name() string { return "theater" }

func (theaterLayout) Seats() []Seat {
	var seats []Seat
	for _, zone := range theaterZones {
		for row := 1; row <= theaterRows; row++ {
			for col := 1; col <= theaterCols; col++ {
				s := Seat{Zone: zone, Row: row, Col: col}
				if IsReserved(s) {
					continue
				}
				seats = append(seats, s)
			}
		}
	}
	return seats
}

// Rows pairs row n of zone A with row n of zone B, as seen from the stage.
func (theaterLayout) Rows() []Row {
	rows := make([]Row, theaterRows)
	for row := 1; row <= theaterRows; row++ {
		seats := make([]Seat, 0, len(theaterZones)*theaterCols)
		for _, zone := range theaterZones {
			for col := 1; col <= theaterCols; col++ {
				seats = append(seats, Seat{Zone: zone, Row: row, Col: col})
			}
		}
		rows[row-1] = Row{Label: fmt.Sprintf("Row %d", row), Seats: seats}
	}
	return rows
}
