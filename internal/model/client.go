package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClientChannel string

const (
	ClientWhatsApp  ClientChannel = "whatsapp"
	ClientMessenger ClientChannel = "messenger"
	ClientInstagram ClientChannel = "instagram"
)

// clientes: long-lived contact records keyed by messaging sender id.
type Client struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id"`
	SenderID string `gorm:"column:sender_id;type:varchar(128);not null;uniqueIndex" json:"sender_id"`

	Name    *string        `gorm:"column:nombre;type:varchar(255)" json:"nombre"`
	Phone   *string        `gorm:"column:telefono;type:varchar(32);index" json:"telefono"`
	RUT     *string        `gorm:"column:rut;type:varchar(16)" json:"rut"`
	Email   *string        `gorm:"column:email;type:varchar(255)" json:"email"`
	Channel *ClientChannel `gorm:"column:canal;type:varchar(16)" json:"canal"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Client) TableName() string { return "clientes" }

func (c *Client) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// NullString returns nil for blank input so optional columns stay NULL.
func NullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences an optional column.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
