package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/model"
)

// MessageFilter narrows both message logs. Zero fields do not filter.
type MessageFilter struct {
	SenderID  string
	From      time.Time
	To        time.Time
	Limit     int
	Ascending bool
}

type MessageRepository interface {
	// Rows of mensajes, newest first unless Ascending.
	ListOutbound(ctx context.Context, f MessageFilter) ([]model.Message, error)
	// Rows of mensajes_raw, newest first unless Ascending.
	ListInbound(ctx context.Context, f MessageFilter) ([]model.RawMessage, error)
	CountOutbound(ctx context.Context, from, to time.Time) (int64, error)
	CreateOutbound(ctx context.Context, m *model.Message) error
	CreateInbound(ctx context.Context, m *model.RawMessage) error
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) filtered(ctx context.Context, table any, f MessageFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(table)
	if f.SenderID != "" {
		q = q.Where("sender_id = ?", f.SenderID)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at <= ?", f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Ascending {
		return q.Order("created_at ASC")
	}
	return q.Order("created_at DESC")
}

func (r *GormMessageRepository) ListOutbound(ctx context.Context, f MessageFilter) ([]model.Message, error) {
	var out []model.Message
	if err := r.filtered(ctx, &model.Message{}, f).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormMessageRepository) ListInbound(ctx context.Context, f MessageFilter) ([]model.RawMessage, error) {
	var out []model.RawMessage
	if err := r.filtered(ctx, &model.RawMessage{}, f).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormMessageRepository) CountOutbound(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Count(&total).Error
	return total, err
}

func (r *GormMessageRepository) CreateOutbound(ctx context.Context, m *model.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *GormMessageRepository) CreateInbound(ctx context.Context, m *model.RawMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}
