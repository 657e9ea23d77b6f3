package pbstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"checkin-system/internal/store"
	"checkin-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

func (t *tx) Activity(id string) (*models.Activity, error) {
	rec, err := t.find(CollectionActivities, id)
	if err != nil {
		return nil, err
	}
	return toActivity(rec)
}

func (t *tx) SaveActivity(a *models.Activity) error {
	rec, err := t.find(CollectionActivities, a.ID)
	if err != nil {
		return err
	}
	applyActivity(rec, a)
	return t.app.Save(rec)
}

func (t *tx) Registration(id string) (*models.Registration, error) {
	rec, err := t.find(CollectionRegistrations, id)
	if err != nil {
		return nil, err
	}
	return toRegistration(rec), nil
}

func (t *tx) FindRegistrations(q store.RegistrationQuery) ([]*models.Registration, error) {
	filter, params := registrationFilter(q)
	recs, err := t.app.FindRecordsByFilter(CollectionRegistrations, filter, "import_order", -1, 0, params)
	if err != nil {
		return nil, fmt.Errorf("find registrations: %w", err)
	}

	out := make([]*models.Registration, 0, len(recs))
	for _, rec := range recs {
		if cached, ok := t.records[CollectionRegistrations+"/"+rec.Id]; ok {
			rec = cached
		} else {
			t.remember(CollectionRegistrations, rec)
		}
		out = append(out, toRegistration(rec))
	}
	return out, nil
}

func (t *tx) SaveRegistration(r *models.Registration) error {
	rec, err := t.find(CollectionRegistrations, r.ID)
	if err != nil {
		return err
	}
	applyRegistration(rec, r)
	return t.app.Save(rec)
}

func (t *tx) Channel(id string) (*models.QueueChannel, error) {
	rec, err := t.find(CollectionChannels, id)
	if err != nil {
		return nil, err
	}
	return toChannel(rec), nil
}

func (t *tx) FindChannels(activityID string) ([]*models.QueueChannel, error) {
	recs, err := t.app.FindRecordsByFilter(CollectionChannels, "activity = {:activity}", "channel_number", -1, 0, dbx.Params{"activity": activityID})
	if err != nil {
		return nil, fmt.Errorf("find channels: %w", err)
	}

	out := make([]*models.QueueChannel, 0, len(recs))
	for _, rec := range recs {
		if cached, ok := t.records[CollectionChannels+"/"+rec.Id]; ok {
			rec = cached
		} else {
			t.remember(CollectionChannels, rec)
		}
		out = append(out, toChannel(rec))
	}
	return out, nil
}

func (t *tx) SaveChannel(c *models.QueueChannel) error {
	rec, err := t.find(CollectionChannels, c.ID)
	if err != nil {
		return err
	}
	applyChannel(rec, c)
	return t.app.Save(rec)
}

// registrationFilter renders q as a PocketBase filter with bound params.
func registrationFilter(q store.RegistrationQuery) (string, dbx.Params) {
	parts := []string{"activity = {:activity}"}
	params := dbx.Params{"activity": q.ActivityID}

	if q.Course != "" {
		parts = append(parts, "course = {:course}")
		params["course"] = q.Course
	}
	if len(q.Statuses) > 0 {
		ors := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			key := fmt.Sprintf("s%d", i)
			ors[i] = fmt.Sprintf("status = {:%s}", key)
			params[key] = string(s)
		}
		parts = append(parts, "("+strings.Join(ors, " || ")+")")
	}
	for i, s := range q.ExcludeStatuses {
		key := fmt.Sprintf("x%d", i)
		parts = append(parts, fmt.Sprintf("status != {:%s}", key))
		params[key] = string(s)
	}
	if q.DisplayQueueNumber != "" {
		parts = append(parts, "display_queue_number = {:display}")
		params["display"] = q.DisplayQueueNumber
	}
	if q.QueueNumber > 0 {
		parts = append(parts, "queue_number = {:number}")
		params["number"] = q.QueueNumber
	}
	switch q.Called {
	case store.CalledOnly:
		parts = append(parts, "called_at != ''")
	case store.UncalledOnly:
		parts = append(parts, "called_at = ''")
	}
	if q.TicketedOnly {
		parts = append(parts, "(queue_number > 0 || display_queue_number != '')")
	}
	if q.ExcludeID != "" {
		parts = append(parts, "id != {:exclude}")
		params["exclude"] = q.ExcludeID
	}

	return strings.Join(parts, " && "), params
}

func toActivity(rec *core.Record) (*models.Activity, error) {
	a := &models.Activity{
		ID:       rec.Id,
		Name:     rec.GetString("name"),
		Type:     models.ActivityType(rec.GetString("type")),
		Capacity: rec.GetInt("capacity"),
	}
	if err := decodeJSON(rec, "queue_counters", &a.QueueCounters); err != nil {
		return nil, err
	}
	if err := decodeJSON(rec, "course_prefixes", &a.CoursePrefixes); err != nil {
		return nil, err
	}
	return a, nil
}

func applyActivity(rec *core.Record, a *models.Activity) {
	rec.Set("name", a.Name)
	rec.Set("type", string(a.Type))
	rec.Set("capacity", a.Capacity)
	rec.Set("queue_counters", a.QueueCounters)
	rec.Set("course_prefixes", a.CoursePrefixes)
}

func toRegistration(rec *core.Record) *models.Registration {
	r := &models.Registration{
		ID:                 rec.Id,
		ActivityID:         rec.GetString("activity"),
		Course:             rec.GetString("course"),
		NationalID:         rec.GetString("national_id"),
		Name:               rec.GetString("name"),
		ContactID:          rec.GetString("contact_id"),
		Status:             models.RegistrationStatus(rec.GetString("status")),
		QueueNumber:        rec.GetInt("queue_number"),
		DisplayQueueNumber: rec.GetString("display_queue_number"),
		SeatNumber:         rec.GetString("seat_number"),
		ImportOrder:        rec.GetInt("import_order"),
	}
	if dt := rec.GetDateTime("called_at"); !dt.IsZero() {
		calledAt := dt.Time()
		r.CalledAt = &calledAt
	}
	return r
}

func applyRegistration(rec *core.Record, r *models.Registration) {
	rec.Set("activity", r.ActivityID)
	rec.Set("course", r.Course)
	rec.Set("national_id", r.NationalID)
	rec.Set("name", r.Name)
	rec.Set("contact_id", r.ContactID)
	rec.Set("status", string(r.Status))
	rec.Set("queue_number", r.QueueNumber)
	rec.Set("display_queue_number", r.DisplayQueueNumber)
	rec.Set("seat_number", r.SeatNumber)
	rec.Set("import_order", r.ImportOrder)
	if r.CalledAt == nil {
		rec.Set("called_at", "")
	} else {
		rec.Set("called_at", *r.CalledAt)
	}
}

func toChannel(rec *core.Record) *models.QueueChannel {
	return &models.QueueChannel{
		ID:                        rec.Id,
		ActivityID:                rec.GetString("activity"),
		ChannelNumber:             rec.GetInt("channel_number"),
		ChannelName:               rec.GetString("channel_name"),
		ServingCourse:             rec.GetString("serving_course"),
		CurrentQueueNumber:        rec.GetInt("current_queue_number"),
		CurrentDisplayQueueNumber: rec.GetString("current_display_queue_number"),
		CurrentStudentName:        rec.GetString("current_student_name"),
		PingID:                    rec.GetString("ping_id"),
	}
}

func applyChannel(rec *core.Record, c *models.QueueChannel) {
	rec.Set("activity", c.ActivityID)
	rec.Set("channel_number", c.ChannelNumber)
	rec.Set("channel_name", c.ChannelName)
	rec.Set("serving_course", c.ServingCourse)
	rec.Set("current_queue_number", c.CurrentQueueNumber)
	rec.Set("current_display_queue_number", c.CurrentDisplayQueueNumber)
	rec.Set("current_student_name", c.CurrentStudentName)
	rec.Set("ping_id", c.PingID)
}

func decodeJSON(rec *core.Record, field string, dst any) error {
	raw := strings.TrimSpace(rec.GetString(field))
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s.%s: %w", rec.Collection().Name, field, err)
	}
	return nil
}
