package app

import (
	"hostly/internal/bookings"
	"hostly/internal/inventory"
	"hostly/internal/payments"
	"hostly/internal/waitlist"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&inventory.EventInventory{},
		&waitlist.WaitlistEntry{},
		&bookings.Booking{},
		&payments.Payment{},
	)
}
