package model

import (
	"time"

	"github.com/canchallena/panel/internal/normalize"
)

type AlertType string

const (
	AlertBooking          AlertType = "reserva"
	AlertEasyCanchaSync   AlertType = "easycancha_sync"
	AlertEasyCanchaManual AlertType = "easycancha_manual"
	AlertEasyCanchaError  AlertType = "easycancha_error"
	AlertEscalation       AlertType = "escalamiento"
	AlertError            AlertType = "error"
)

// alertas: written by the automation bot, only flags change here.
type Alert struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      AlertType `gorm:"column:tipo;type:varchar(32);not null;index" json:"tipo"`
	BookingID *int64    `gorm:"column:reserva_id;index" json:"reserva_id"`
	Message   *string   `gorm:"column:mensaje;type:text" json:"mensaje"`
	Channel   *string   `gorm:"column:canal;type:varchar(16)" json:"canal"`
	SenderID  *string   `gorm:"column:sender_id;type:varchar(128);index" json:"sender_id"`
	Read      bool      `gorm:"column:leida;not null;index" json:"leida"`
	Resolved  bool      `gorm:"column:resuelta;not null" json:"resuelta"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (Alert) TableName() string { return "alertas" }

// CanonicalType maps stored spelling variants to the known type.
func (a *Alert) CanonicalType() AlertType {
	return AlertType(normalize.AlertTypes.Canonical(string(a.Type)))
}
