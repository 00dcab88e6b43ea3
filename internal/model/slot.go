package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/calendar"
)

// Slot state as stored in slots.estado.
type SlotState string

const (
	SlotAvailable SlotState = "disponible"
	SlotBooked    SlotState = "reservado"
	SlotBlocked   SlotState = "bloqueado"
)

// slots: one grid cell. Rows are created lazily; a missing row means
// "no record", not "available".
type Slot struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	Venue     string         `gorm:"column:centro;type:varchar(64);not null;uniqueIndex:ux_slots_cell,priority:1;index:ix_slots_day,priority:1" json:"centro"`
	CourtType string         `gorm:"column:tipo_cancha;type:varchar(32);not null;uniqueIndex:ux_slots_cell,priority:2;index:ix_slots_day,priority:2" json:"tipo_cancha"`
	Court     string         `gorm:"column:cancha;type:varchar(32);not null;uniqueIndex:ux_slots_cell,priority:3" json:"cancha"`
	Date      calendar.Date  `gorm:"column:fecha;not null;uniqueIndex:ux_slots_cell,priority:4;index:ix_slots_day,priority:3" json:"fecha"`
	Time      calendar.Clock `gorm:"column:hora;not null;uniqueIndex:ux_slots_cell,priority:5" json:"hora"`
	Duration  int            `gorm:"column:duracion;not null" json:"duracion"`

	State     SlotState `gorm:"column:estado;type:varchar(16);not null;index" json:"estado"`
	BookingID *int64    `gorm:"column:reserva_id;index" json:"reserva_id"`
	Origin    *Channel  `gorm:"column:origen;type:varchar(16)" json:"origen"`

	// Denormalized copy of the booking's client.
	ClientName  *string `gorm:"column:cliente_nombre;type:varchar(255)" json:"cliente_nombre"`
	ClientPhone *string `gorm:"column:cliente_telefono;type:varchar(32)" json:"cliente_telefono"`
	ClientRUT   *string `gorm:"column:cliente_rut;type:varchar(16)" json:"cliente_rut"`
	ClientEmail *string `gorm:"column:cliente_email;type:varchar(255)" json:"cliente_email"`
	Notes       *string `gorm:"column:notas;type:text" json:"notas"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Slot) TableName() string { return "slots" }

func (s *Slot) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Key identifies the grid cell of the slot.
func (s *Slot) Key() CellKey {
	return CellKey{Time: s.Time, Court: s.Court}
}

// CellKey identifies a cell within one day of one court group.
type CellKey struct {
	Time  calendar.Clock
	Court string
}
