package models

// QueueChannel is one service counter calling tickets for a single course.
type QueueChannel struct {
	ID            string `json:"id"`
	ActivityID    string `json:"activity_id"`
	ChannelNumber int    `json:"channel_number"`
	ChannelName   string `json:"channel_name"`
	ServingCourse string `json:"serving_course"`

	CurrentQueueNumber        int    `json:"current_queue_number"`
	CurrentDisplayQueueNumber string `json:"current_display_queue_number"`
	CurrentStudentName        string `json:"current_student_name"`
	PingID                    string `json:"ping_id"`
}

type ChannelState string

const (
	ChannelIdle     ChannelState = "idle"
	ChannelAssigned ChannelState = "assigned"
	ChannelServing  ChannelState = "serving"
)

func (c *QueueChannel) State() ChannelState {
	switch {
	case c.ServingCourse == "":
		return ChannelIdle
	case c.CurrentDisplayQueueNumber == "":
		return ChannelAssigned
	default:
		return ChannelServing
	}
}

// ClearCurrent drops the current call, leaving the ping untouched.
func (c *QueueChannel) ClearCurrent() {
	c.CurrentQueueNumber = 0
	c.CurrentDisplayQueueNumber = ""
	c.CurrentStudentName = ""
}

// DisplayUpdate is pushed to passive display boards after every call.
type DisplayUpdate struct {
	Type               string `json:"type"` // call, recall
	ActivityID         string `json:"activity_id"`
	ChannelID          string `json:"channel_id"`
	ChannelNumber      int    `json:"channel_number"`
	ChannelName        string `json:"channel_name"`
	Course             string `json:"course"`
	QueueNumber        int    `json:"queue_number"`
	DisplayQueueNumber string `json:"display_queue_number"`
	StudentName        string `json:"student_name"`
	PingID             string `json:"ping_id"`
}
