package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"gorm.io/gorm"
)

const referencePrefix = "DC"

// GenerateUniqueBookingReference produces a guest-facing reference like
// DC1A2B3C4D, retrying until it does not collide with an existing booking.
func GenerateUniqueBookingReference(tx *gorm.DB) (string, error) {
	for {
		raw := make([]byte, 4)
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		reference := referencePrefix + strings.ToUpper(hex.EncodeToString(raw))

		var count int64
		err := tx.Table("bookings").Where("reference = ?", reference).Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return reference, nil
		}
	}
}

// GenerateToken returns n random bytes hex encoded, used for email
// verification tokens and calendar export tokens.
func GenerateToken(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
