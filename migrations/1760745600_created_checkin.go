package migrations

import (
	"checkin-system/internal/store/pbstore"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		activities := pbstore.ActivitiesCollection()
		if err := app.Save(activities); err != nil {
			return err
		}
		if err := app.Save(pbstore.RegistrationsCollection(activities.Id)); err != nil {
			return err
		}
		return app.Save(pbstore.ChannelsCollection(activities.Id))
	}, func(app core.App) error {
		for _, name := range []string{
			pbstore.CollectionChannels,
			pbstore.CollectionRegistrations,
			pbstore.CollectionActivities,
		} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
