package services

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"checkin-system/models"
)

// Ticket is a queue label split into its course prefix and running number.
// Labels are only formatted and parsed here.
type Ticket struct {
	Prefix string
	Number int
}

// String renders the label with the number zero-padded to three digits.
// Numbers above 999 keep all their digits.
func (t Ticket) String() string {
	return fmt.Sprintf("%s-%03d", t.Prefix, t.Number)
}

// ParseTicket splits a label such as "ANE-007". The number is the trailing
// run of digits; everything before it, minus a separating dash, is the prefix.
func ParseTicket(label string) (Ticket, error) {
	label = strings.TrimSpace(label)
	end := len(label)
	start := end
	for start > 0 && label[start-1] >= '0' && label[start-1] <= '9' {
		start--
	}
	if start == end {
		return Ticket{}, fmt.Errorf("ticket %q: no numeric suffix", label)
	}
	n, err := strconv.Atoi(label[start:end])
	if err != nil {
		return Ticket{}, fmt.Errorf("ticket %q: %w", label, err)
	}
	return Ticket{
		Prefix: strings.TrimSuffix(label[:start], "-"),
		Number: n,
	}, nil
}

// ticketNumber returns the issued number of a registration, preferring the
// stored integer over the parsed label.
func ticketNumber(r *models.Registration) (int, bool) {
	if r.QueueNumber > 0 {
		return r.QueueNumber, true
	}
	if r.DisplayQueueNumber == "" {
		return 0, false
	}
	t, err := ParseTicket(r.DisplayQueueNumber)
	if err != nil || t.Number <= 0 {
		return 0, false
	}
	return t.Number, true
}

// CoursePrefix returns the label prefix for course: the activity's override
// when one is configured, otherwise the first three letters upper-cased.
func CoursePrefix(a *models.Activity, course string) string {
	if p, ok := a.CoursePrefixes[course]; ok && p != "" {
		return p
	}

	var b strings.Builder
	n := 0
	for _, r := range course {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		n++
		if n == 3 {
			break
		}
	}
	if b.Len() == 0 {
		return "Q"
	}
	return b.String()
}
