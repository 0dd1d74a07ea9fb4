package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/dubrovnikcoast/coastal_stays/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockProperty takes the per-property write lock by selecting the property
// row FOR UPDATE inside the caller's transaction. Every writer that checks
// availability before inserting blocks (booking creation, manual blocks,
// feed sync) must grab this lock first, so the check and the insert commit
// as one serialized unit per property.
func LockProperty(tx *gorm.DB, propertyID uint) (*models.Property, error) {
	var property models.Property
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&property, "id = ?", propertyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return &property, nil
}

// IsRangeFree reports whether [start, end) has no occupying block for the
// property. Overlap test is strict half-open: block.start < end AND
// block.end > start. When excludeBookingID is set, blocks belonging to that
// booking are skipped so its own range can be re-validated during edits.
func IsRangeFree(tx *gorm.DB, propertyID uint, start, end time.Time, excludeBookingID *uint) (bool, error) {
	query := tx.Model(&models.CalendarBlock{}).
		Where("property_id = ?", propertyID).
		Where("start_date < ? AND end_date > ?", end, start).
		Where("source IN ?", models.OccupyingSources)

	if excludeBookingID != nil {
		query = query.Where("(booking_id IS NULL OR booking_id != ?)", *excludeBookingID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// UpsertBlock inserts the block when it has no id, otherwise updates the
// existing row in place. Updates never touch PropertyID or BookingID; block
// identity is preserved so promotions keep the same row.
func UpsertBlock(tx *gorm.DB, block *models.CalendarBlock) error {
	if block.ID == 0 {
		return tx.Create(block).Error
	}
	return tx.Model(&models.CalendarBlock{}).Where("id = ?", block.ID).Updates(map[string]interface{}{
		"source":     block.Source,
		"title":      block.Title,
		"start_date": block.StartDate,
		"end_date":   block.EndDate,
	}).Error
}

// DeleteBookingBlocks removes the booking's own blocks, freeing its dates.
// External and manual blocks are never attached to a booking and stay put.
func DeleteBookingBlocks(tx *gorm.DB, bookingID uint) error {
	return tx.Where("booking_id = ? AND source IN ?", bookingID,
		[]string{models.SourcePending, models.SourceInternal}).
		Delete(&models.CalendarBlock{}).Error
}

// BlocksInWindow returns the blocks overlapping [start, end) for a property,
// ordered by start date, with the owning booking preloaded for reference
// display.
func BlocksInWindow(db *gorm.DB, propertyID uint, start, end time.Time) ([]models.CalendarBlock, error) {
	var blocks []models.CalendarBlock
	err := db.Preload("Booking").
		Where("property_id = ?", propertyID).
		Where("start_date < ? AND end_date > ?", end, start).
		Order("start_date ASC").
		Find(&blocks).Error
	return blocks, err
}

// CreateManualBlock inserts an admin-placed block after validating the range
// under the property lock.
func CreateManualBlock(db *gorm.DB, propertyID uint, start, end time.Time, title string) (*models.CalendarBlock, error) {
	if !end.After(start) {
		return nil, ErrInvalidStayLength
	}
	if title == "" {
		title = "Blocked"
	}

	var block models.CalendarBlock
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := LockProperty(tx, propertyID); err != nil {
			return err
		}

		free, err := IsRangeFree(tx, propertyID, start, end, nil)
		if err != nil {
			return err
		}
		if !free {
			return ErrDatesUnavailable
		}

		block = models.CalendarBlock{
			PropertyID: propertyID,
			Source:     models.SourceManualBlock,
			Title:      title,
			StartDate:  start,
			EndDate:    end,
		}
		if err := UpsertBlock(tx, &block); err != nil {
			return err
		}

		return RecordBookingEvent(tx, nil, models.ActorAdmin, nil, "manual_block_created", map[string]interface{}{
			"property_id": propertyID,
			"block_id":    block.ID,
			"start_date":  start.Format("2006-01-02"),
			"end_date":    end.Format("2006-01-02"),
		})
	})
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// DeleteManualBlock removes a manual block. Blocks owned by bookings or
// imported from feeds cannot be deleted this way.
func DeleteManualBlock(db *gorm.DB, blockID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var block models.CalendarBlock
		if err := tx.First(&block, "id = ?", blockID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBlockNotFound
			}
			return err
		}
		if block.Source != models.SourceManualBlock {
			return fmt.Errorf("block %d has source %s, only manual blocks can be removed", block.ID, block.Source)
		}
		if err := tx.Delete(&block).Error; err != nil {
			return err
		}
		return RecordBookingEvent(tx, nil, models.ActorAdmin, nil, "manual_block_deleted", map[string]interface{}{
			"property_id": block.PropertyID,
			"block_id":    block.ID,
		})
	})
}
