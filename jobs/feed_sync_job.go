package jobs

import (
	"log"

	"github.com/dubrovnikcoast/coastal_stays/database"
	"github.com/dubrovnikcoast/coastal_stays/services"
)

// SyncExternalCalendars is the scheduled sweep over every property with
// configured ICS feeds. Operators can still trigger a single property sync
// through the admin API between runs.
func SyncExternalCalendars() {
	log.Println("Running job: SyncExternalCalendars...")
	services.SyncAllPropertyFeeds(database.DB)
}
