package services

import (
	"testing"

	"checkin-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicket_String(t *testing.T) {
	assert.Equal(t, "ANE-001", Ticket{Prefix: "ANE", Number: 1}.String())
	assert.Equal(t, "ANE-042", Ticket{Prefix: "ANE", Number: 42}.String())
	assert.Equal(t, "ANE-1234", Ticket{Prefix: "ANE", Number: 1234}.String())
}

func TestParseTicket(t *testing.T) {
	tests := []struct {
		label string
		want  Ticket
	}{
		{"ANE-007", Ticket{Prefix: "ANE", Number: 7}},
		{" NUR-120 ", Ticket{Prefix: "NUR", Number: 120}},
		{"Q2-015", Ticket{Prefix: "Q2", Number: 15}},
		{"42", Ticket{Prefix: "", Number: 42}},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseTicket(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "ANE-", "ANE"} {
		_, err := ParseTicket(bad)
		assert.Error(t, err, bad)
	}
}

func TestCoursePrefix(t *testing.T) {
	a := &models.Activity{CoursePrefixes: map[string]string{"Anesthesia": "ANE"}}

	assert.Equal(t, "ANE", CoursePrefix(a, "Anesthesia"))
	assert.Equal(t, "NUR", CoursePrefix(a, "nursing science"))
	assert.Equal(t, "MD", CoursePrefix(a, "M.D."))
	assert.Equal(t, "Q", CoursePrefix(a, "123"))
	assert.Equal(t, "PHA", CoursePrefix(&models.Activity{}, "Pharmacy"))
}

func TestFirstGap(t *testing.T) {
	assert.Equal(t, 3, FirstGap([]int{1, 2, 4, 5}))
	assert.Equal(t, 1, FirstGap(nil))
	assert.Equal(t, 1, FirstGap([]int{2, 3}))
	assert.Equal(t, 4, FirstGap([]int{3, 1, 2, 2}))
}
