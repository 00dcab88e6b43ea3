package model

import "gorm.io/gorm"

// AutoMigrate creates or updates every table the panel reads or writes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Slot{},
		&Booking{},
		&Client{},
		&Message{},
		&RawMessage{},
		&Alert{},
		&Event{},
	)
}

// Tables lists the tables whose changes are published to live views.
var Tables = []string{
	Slot{}.TableName(),
	Booking{}.TableName(),
	Client{}.TableName(),
	Message{}.TableName(),
	RawMessage{}.TableName(),
	Alert{}.TableName(),
}
