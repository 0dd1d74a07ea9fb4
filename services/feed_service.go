package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	config "github.com/dubrovnikcoast/coastal_stays/configs"
	"github.com/dubrovnikcoast/coastal_stays/models"
	"github.com/dubrovnikcoast/coastal_stays/utils"
	"gorm.io/gorm"
)

const feedFetchTimeout = 15 * time.Second

// Swapped out in tests so syncs run against canned feeds.
var fetchICSEvents = FetchICSEvents

type SyncResult struct {
	Imported int `json:"imported"`
	Feeds    int `json:"feeds"`
}

// EnsurePropertyCalendar returns the property's calendar row, creating it
// with a fresh export token on first use.
func EnsurePropertyCalendar(db *gorm.DB, propertyID uint) (*models.PropertyCalendar, error) {
	var calendar models.PropertyCalendar
	err := db.First(&calendar, "property_id = ?", propertyID).Error
	if err == nil {
		return &calendar, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var property models.Property
	if err := db.First(&property, "id = ?", propertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}

	token, err := utils.GenerateToken(20)
	if err != nil {
		return nil, err
	}
	calendar = models.PropertyCalendar{
		PropertyID:  propertyID,
		ExportToken: token,
	}
	if err := db.Create(&calendar).Error; err != nil {
		return nil, err
	}
	return &calendar, nil
}

// UpdateFeedURLs replaces the configured feed URLs; empty strings clear a
// slot.
func UpdateFeedURLs(db *gorm.DB, propertyID uint, airbnb, booking, custom string) error {
	calendar, err := EnsurePropertyCalendar(db, propertyID)
	if err != nil {
		return err
	}

	normalise := func(value string) *string {
		value = strings.TrimSpace(value)
		if value == "" {
			return nil
		}
		return &value
	}

	return db.Model(calendar).Updates(map[string]interface{}{
		"airbnb_feed_url":  normalise(airbnb),
		"booking_feed_url": normalise(booking),
		"custom_feed_url":  normalise(custom),
	}).Error
}

// SyncPropertyFeeds imports external availability for one property.
//
// Feeds are fetched outside the transaction; the reconciliation itself is a
// full replace under the per-property lock: every external_ics block is
// dropped and the freshly parsed set re-inserted, each tagged with the
// feed-provided uid. A feed that fails to download or parse is logged and
// skipped without aborting the others.
func SyncPropertyFeeds(db *gorm.DB, propertyID uint) (*SyncResult, error) {
	calendar, err := EnsurePropertyCalendar(db, propertyID)
	if err != nil {
		return nil, err
	}

	feeds := map[string]*string{
		"airbnb":  calendar.AirbnbFeedURL,
		"booking": calendar.BookingFeedURL,
		"custom":  calendar.CustomFeedURL,
	}

	type fetched struct {
		name   string
		events []ICSEvent
	}
	var results []fetched
	feedCount := 0

	for name, feedURL := range feeds {
		if feedURL == nil || *feedURL == "" {
			continue
		}
		feedCount++

		events, err := fetchICSEvents(*feedURL, feedFetchTimeout)
		if err != nil {
			log.Printf("⚠️ ICS import failed for property %d (%s): %v", propertyID, name, err)
			continue
		}
		results = append(results, fetched{name: name, events: events})
	}

	if feedCount == 0 {
		return &SyncResult{}, nil
	}

	// Nothing fetched means nothing to reconcile: a full replace here would
	// only drop the previous import and open those dates. The last good set
	// stays in place until a fetch succeeds again.
	if len(results) == 0 {
		log.Printf("⚠️ All %d feeds failed for property %d, keeping previous import", feedCount, propertyID)
		return &SyncResult{Feeds: feedCount}, nil
	}

	imported := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := LockProperty(tx, propertyID); err != nil {
			return err
		}

		err := tx.Where("property_id = ? AND source = ?", propertyID, models.SourceExternalICS).
			Delete(&models.CalendarBlock{}).Error
		if err != nil {
			return err
		}

		for _, feed := range results {
			for _, event := range feed.events {
				uid := event.UID
				block := models.CalendarBlock{
					PropertyID:  propertyID,
					Source:      models.SourceExternalICS,
					ExternalUID: &uid,
					Title:       event.Summary,
					StartDate:   event.Start,
					EndDate:     event.End,
				}
				if err := UpsertBlock(tx, &block); err != nil {
					return err
				}
				imported++
			}
		}

		err = tx.Model(&models.PropertyCalendar{}).Where("id = ?", calendar.ID).
			Update("last_sync_at", time.Now().UTC()).Error
		if err != nil {
			return err
		}

		return RecordBookingEvent(tx, nil, models.ActorSystem, nil, "feed_sync", map[string]interface{}{
			"property_id": propertyID,
			"imported":    imported,
			"feeds":       feedCount,
		})
	})
	if err != nil {
		return nil, err
	}

	return &SyncResult{Imported: imported, Feeds: feedCount}, nil
}

// SyncAllPropertyFeeds sweeps every property that has at least one feed URL
// configured. Used by the scheduled job; per-property failures are logged
// and do not stop the sweep.
func SyncAllPropertyFeeds(db *gorm.DB) {
	var calendars []models.PropertyCalendar
	err := db.Where("airbnb_feed_url IS NOT NULL OR booking_feed_url IS NOT NULL OR custom_feed_url IS NOT NULL").
		Find(&calendars).Error
	if err != nil {
		log.Printf("🔥 Failed to list property calendars for sync: %v", err)
		return
	}

	for _, calendar := range calendars {
		result, err := SyncPropertyFeeds(db, calendar.PropertyID)
		if err != nil {
			log.Printf("🔥 Feed sync failed for property %d: %v", calendar.PropertyID, err)
			continue
		}
		log.Printf("✅ Synced property %d: %d events from %d feeds", calendar.PropertyID, result.Imported, result.Feeds)
	}
}

// RenderPropertyICS exports the property's occupied ranges as an iCalendar
// document for channel managers to pull. Pending blocks are not exported;
// only committed occupancy leaves the system.
func RenderPropertyICS(db *gorm.DB, propertyID uint) (string, error) {
	var property models.Property
	if err := db.First(&property, "id = ?", propertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrPropertyNotFound
		}
		return "", err
	}

	var blocks []models.CalendarBlock
	err := db.Preload("Booking").
		Where("property_id = ? AND source IN ?", propertyID,
			[]string{models.SourceInternal, models.SourceManualBlock, models.SourceExternalICS}).
		Order("start_date ASC").
		Find(&blocks).Error
	if err != nil {
		return "", err
	}

	host := config.Config("SITE_HOST")
	if host == "" {
		host = "coastal-stays.local"
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Coastal Stays//Availability//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}

	now := time.Now().UTC().Format("20060102T150405Z")
	for _, block := range blocks {
		uid := ""
		switch {
		case block.ExternalUID != nil && *block.ExternalUID != "":
			uid = *block.ExternalUID
		case block.BookingID != nil:
			uid = fmt.Sprintf("booking-%d", *block.BookingID)
		default:
			uid = fmt.Sprintf("block-%d", block.ID)
		}

		summary := block.Title
		if summary == "" {
			if block.Booking != nil {
				summary = "Booking " + block.Booking.Reference
			} else {
				summary = "Unavailable"
			}
		}

		lines = append(lines,
			"BEGIN:VEVENT",
			fmt.Sprintf("UID:%s@%s", uid, host),
			"DTSTAMP:"+now,
			"DTSTART;VALUE=DATE:"+block.StartDate.Format("20060102"),
			"DTEND;VALUE=DATE:"+block.EndDate.Format("20060102"),
			"SUMMARY:"+escapeICSText(summary),
			"END:VEVENT",
		)
	}

	lines = append(lines, "END:VCALENDAR")
	return strings.Join(lines, "\r\n") + "\r\n", nil
}

func escapeICSText(value string) string {
	replacer := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return replacer.Replace(value)
}
