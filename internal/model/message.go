package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// mensajes: message log written by the bot.
type Message struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID  string    `gorm:"column:sender_id;type:varchar(128);not null;index" json:"sender_id"`
	Channel   *string   `gorm:"column:canal;type:varchar(16)" json:"canal"`
	Direction Direction `gorm:"column:direccion;type:varchar(16);not null" json:"direccion"`
	Content   *string   `gorm:"column:contenido;type:text" json:"contenido"`
	MessageID *string   `gorm:"column:message_id;type:varchar(128)" json:"message_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (Message) TableName() string { return "mensajes" }

// mensajes_raw: inbound webhook payloads as received.
type RawMessage struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SenderID   string    `gorm:"column:sender_id;type:varchar(128);not null;index" json:"sender_id"`
	Channel    *string   `gorm:"column:canal;type:varchar(16)" json:"canal"`
	Text       *string   `gorm:"column:mensaje;type:text" json:"mensaje"`
	MessageID  *string   `gorm:"column:message_id;type:varchar(128)" json:"message_id"`
	SenderName *string   `gorm:"column:sender_name;type:varchar(255)" json:"sender_name"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (RawMessage) TableName() string { return "mensajes_raw" }

func (m *RawMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
