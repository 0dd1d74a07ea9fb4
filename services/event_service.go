package services

import (
	"encoding/json"

	"github.com/dubrovnikcoast/coastal_stays/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecordBookingEvent appends one row to the audit trail. There is no update
// or delete counterpart anywhere in the codebase.
func RecordBookingEvent(tx *gorm.DB, bookingID *uint, actorType string, actor *string, eventType string, details map[string]interface{}) error {
	event := models.BookingEvent{
		BookingID:       bookingID,
		ActorType:       actorType,
		ActorIdentifier: actor,
		EventType:       eventType,
	}

	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			return err
		}
		event.Details = datatypes.JSON(payload)
	}

	return tx.Create(&event).Error
}
