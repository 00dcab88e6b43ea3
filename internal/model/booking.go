package model

import (
	"time"

	"github.com/canchallena/panel/internal/calendar"
)

// Booking status as stored in reservas.estado.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pendiente"
	BookingConfirmed BookingStatus = "confirmada"
	BookingCancelled BookingStatus = "cancelada"
	BookingCompleted BookingStatus = "completada"
	BookingNoShow    BookingStatus = "no_show"
)

// ActiveStatuses are the statuses that occupy slots.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingNoShow:
		return true
	}
	return false
}

// Channel records who created a booking or claimed a slot.
type Channel string

const (
	ChannelBot        Channel = "bot"
	ChannelEasyCancha Channel = "easycancha"
	ChannelPhone      Channel = "telefono"
	ChannelWalkIn     Channel = "presencial"
	ChannelDashboard  Channel = "dashboard"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelBot, ChannelEasyCancha, ChannelPhone, ChannelWalkIn, ChannelDashboard:
		return true
	}
	return false
}

// reservas
type Booking struct {
	ID       int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID *string `gorm:"column:cliente_id;type:varchar(36);index" json:"cliente_id"`

	Venue     string         `gorm:"column:centro;type:varchar(64);not null;index:ix_reservas_day,priority:1" json:"centro"`
	CourtType string         `gorm:"column:tipo_cancha;type:varchar(32);not null" json:"tipo_cancha"`
	Court     string         `gorm:"column:cancha;type:varchar(32);not null" json:"cancha"`
	Date      calendar.Date  `gorm:"column:fecha;not null;index:ix_reservas_day,priority:2" json:"fecha"`
	Time      calendar.Clock `gorm:"column:hora;not null" json:"hora"`
	Duration  *int           `gorm:"column:duracion" json:"duracion"`

	ClientName  *string `gorm:"column:nombre_cliente;type:varchar(255)" json:"nombre_cliente"`
	ClientPhone *string `gorm:"column:telefono_cliente;type:varchar(32);index" json:"telefono_cliente"`
	ClientRUT   *string `gorm:"column:rut_cliente;type:varchar(16)" json:"rut_cliente"`
	ClientEmail *string `gorm:"column:email_cliente;type:varchar(255)" json:"email_cliente"`

	Status         BookingStatus `gorm:"column:estado;type:varchar(16);not null;index" json:"estado"`
	Channel        *Channel      `gorm:"column:canal_origen;type:varchar(16);index" json:"canal_origen"`
	EasyCanchaCode *string       `gorm:"column:codigo_easycancha;type:varchar(64)" json:"codigo_easycancha"`
	Source         string        `gorm:"column:origen;type:varchar(32);not null" json:"origen"`
	Notes          *string       `gorm:"column:notas;type:text" json:"notas"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (Booking) TableName() string { return "reservas" }

// Minutes returns the booked duration, treating a missing or zero duration
// as a single interval.
func (b *Booking) Minutes(interval int) int {
	if b.Duration == nil || *b.Duration <= 0 {
		return interval
	}
	return *b.Duration
}
