package seating

import (
	"fmt"
	"strconv"
	"strings"
)

// Seat is a parsed seat label. Exam seats carry a zone letter and a running
// number ("B150"). Theater seats carry zone, row and column ("A4-1"). VIP
// seats are numbered outside any zone.
type Seat struct {
	Zone   string
	Row    int
	Col    int
	Number int
	VIP    bool
}

func (s Seat) String() string {
	switch {
	case s.VIP:
		return fmt.Sprintf("VIP-%02d", s.Number)
	case s.Row > 0:
		return fmt.Sprintf("%s%d-%d", s.Zone, s.Row, s.Col)
	default:
		return fmt.Sprintf("%s%03d", s.Zone, s.Number)
	}
}

func ParseSeat(label string) (Seat, error) {
	if rest, ok := strings.CutPrefix(label, "VIP-"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return Seat{}, fmt.Errorf("seat %q: bad vip number", label)
		}
		return Seat{Number: n, VIP: true}, nil
	}
	if len(label) < 2 || label[0] < 'A' || label[0] > 'Z' {
		return Seat{}, fmt.Errorf("seat %q: missing zone", label)
	}
	zone, rest := label[:1], label[1:]

	if row, col, ok := strings.Cut(rest, "-"); ok {
		r, err1 := strconv.Atoi(row)
		c, err2 := strconv.Atoi(col)
		if err1 != nil || err2 != nil || r <= 0 || c <= 0 {
			return Seat{}, fmt.Errorf("seat %q: bad row or column", label)
		}
		return Seat{Zone: zone, Row: r, Col: c}, nil
	}

	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return Seat{}, fmt.Errorf("seat %q: bad number", label)
	}
	return Seat{Zone: zone, Number: n}, nil
}
