package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/model"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	// Audit trail of one booking, newest first.
	ListByBooking(ctx context.Context, bookingID int64, limit int) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormEventRepository) ListByBooking(ctx context.Context, bookingID int64, limit int) ([]model.Event, error) {
	q := r.db.WithContext(ctx).Where("reserva_id = ?", bookingID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []model.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
