package model

import (
	"time"

	"gorm.io/datatypes"
)

// Audit event type.
type EventType string

const (
	EventBookingCreated   EventType = "booking_created"
	EventBookingUpdated   EventType = "booking_updated"
	EventBookingCancelled EventType = "booking_cancelled"
	EventBookingStatus    EventType = "booking_status_changed"
	EventBookingsFinished EventType = "bookings_completed"
	EventSlotBlocked      EventType = "slot_blocked"
	EventSlotUnblocked    EventType = "slot_unblocked"
	EventAlertsRead       EventType = "alerts_read"
	EventAlertResolved    EventType = "alert_resolved"
)

// eventos: audit trail of dashboard mutations
type Event struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	EventType EventType `gorm:"column:event_type;type:varchar(64);not null;index" json:"event_type"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`

	BookingID *int64  `gorm:"column:reserva_id;index" json:"reserva_id"`
	SlotID    *string `gorm:"column:slot_id;type:varchar(36);index" json:"slot_id"`

	Details datatypes.JSON `gorm:"column:details" json:"details"`
}

func (Event) TableName() string { return "eventos" }
