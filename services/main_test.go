package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/dubrovnikcoast/coastal_stays/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database and migrates the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// One connection: transactions serialize the way the per-property row
	// lock serializes them on Postgres.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.PropertyCalendar{},
		&models.CalendarBlock{},
		&models.Booking{},
		&models.BookingContact{},
		&models.BookingTraveller{},
		&models.BookingEvent{},
		&models.StripePayment{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestProperty(t *testing.T, db *gorm.DB, rate float64) *models.Property {
	t.Helper()

	property := models.Property{
		Name:     "Villa Lapad",
		Slug:     "villa-lapad-" + uuid.NewString()[:8],
		BaseRate: rate,
		Currency: "EUR",
	}
	if err := db.Create(&property).Error; err != nil {
		t.Fatalf("failed to create test property: %v", err)
	}
	return &property
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
