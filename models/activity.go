package models

type ActivityType string

const (
	ActivityEvent      ActivityType = "event"
	ActivityExam       ActivityType = "exam"
	ActivityGraduation ActivityType = "graduation"
	ActivityQueue      ActivityType = "queue"
)

type Activity struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     ActivityType `json:"type"`
	Capacity int          `json:"capacity"`

	// QueueCounters holds the last issued queue number per course.
	// A missing key means the counter has never been recorded.
	QueueCounters map[string]int `json:"queue_counters"`

	// CoursePrefixes overrides the ticket prefix derived from a course name.
	CoursePrefixes map[string]string `json:"course_prefixes,omitempty"`
}

// Counter returns the recorded counter for course and whether it exists.
func (a *Activity) Counter(course string) (int, bool) {
	if a.QueueCounters == nil {
		return 0, false
	}
	n, ok := a.QueueCounters[course]
	return n, ok
}

func (a *Activity) SetCounter(course string, n int) {
	if a.QueueCounters == nil {
		a.QueueCounters = make(map[string]int)
	}
	a.QueueCounters[course] = n
}
