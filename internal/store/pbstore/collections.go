package pbstore

import (
	"checkin-system/models"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

func ActivitiesCollection() *core.Collection {
	c := core.NewBaseCollection(CollectionActivities)
	c.Fields.Add(
		&core.TextField{Name: "name", Required: true, Max: 200},
		&core.SelectField{
			Name:      "type",
			Required:  true,
			MaxSelect: 1,
			Values: []string{
				string(models.ActivityEvent),
				string(models.ActivityExam),
				string(models.ActivityGraduation),
				string(models.ActivityQueue),
			},
		},
		&core.NumberField{Name: "capacity", OnlyInt: true},
		&core.JSONField{Name: "queue_counters"},
		&core.JSONField{Name: "course_prefixes"},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	return c
}

func RegistrationsCollection(activitiesID string) *core.Collection {
	c := core.NewBaseCollection(CollectionRegistrations)
	c.Fields.Add(
		&core.RelationField{Name: "activity", Required: true, CollectionId: activitiesID, MaxSelect: 1, CascadeDelete: true},
		&core.TextField{Name: "course", Max: 100},
		&core.TextField{Name: "national_id", Required: true, Max: 32},
		&core.TextField{Name: "name", Max: 200},
		&core.TextField{Name: "contact_id", Max: 100},
		&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values: []string{
				string(models.StatusRegistered),
				string(models.StatusCheckedIn),
				string(models.StatusInterviewing),
				string(models.StatusCompleted),
				string(models.StatusCancelled),
				string(models.StatusWaitlisted),
			},
		},
		&core.NumberField{Name: "queue_number", OnlyInt: true},
		&core.TextField{Name: "display_queue_number", Max: 32},
		&core.TextField{Name: "seat_number", Max: 16},
		&core.DateField{Name: "called_at"},
		&core.NumberField{Name: "import_order", OnlyInt: true},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	c.AddIndex("idx_registrations_national_id", true, "activity, national_id", "status != 'cancelled'")
	c.AddIndex("idx_registrations_course", false, "activity, course, status", "")
	c.AddIndex("idx_registrations_display", false, "activity, display_queue_number", "")
	return c
}

func ChannelsCollection(activitiesID string) *core.Collection {
	c := core.NewBaseCollection(CollectionChannels)
	// Display boards subscribe to channel changes without auth.
	c.ListRule = types.Pointer("")
	c.ViewRule = types.Pointer("")
	c.Fields.Add(
		&core.RelationField{Name: "activity", Required: true, CollectionId: activitiesID, MaxSelect: 1, CascadeDelete: true},
		&core.NumberField{Name: "channel_number", OnlyInt: true},
		&core.TextField{Name: "channel_name", Max: 100},
		&core.TextField{Name: "serving_course", Max: 100},
		&core.NumberField{Name: "current_queue_number", OnlyInt: true},
		&core.TextField{Name: "current_display_queue_number", Max: 32},
		&core.TextField{Name: "current_student_name", Max: 200},
		&core.TextField{Name: "ping_id", Max: 64},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	c.AddIndex("idx_queue_channels_number", true, "activity, channel_number", "")
	return c
}
