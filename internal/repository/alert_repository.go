package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/model"
)

// AlertFilter narrows alert lists. Types holds raw stored spellings.
type AlertFilter struct {
	Read  *bool
	Types []string
	From  time.Time
	To    time.Time
	Limit int
}

type AlertRepository interface {
	// Newest first.
	List(ctx context.Context, f AlertFilter) ([]model.Alert, error)
	GetByID(ctx context.Context, id int64) (*model.Alert, error)
	// Mark the given alerts read; returns how many rows changed.
	MarkRead(ctx context.Context, ids []int64) (int64, error)
	// Resolve marks an alert resolved and read.
	Resolve(ctx context.Context, id int64) error
	CountUnread(ctx context.Context) (int64, error)
	Create(ctx context.Context, alert *model.Alert) error
}

type GormAlertRepository struct {
	db *gorm.DB
}

func NewGormAlertRepository(db *gorm.DB) *GormAlertRepository {
	return &GormAlertRepository{db: db}
}

func (r *GormAlertRepository) List(ctx context.Context, f AlertFilter) ([]model.Alert, error) {
	q := r.db.WithContext(ctx).Model(&model.Alert{})
	if f.Read != nil {
		q = q.Where("leida = ?", *f.Read)
	}
	if len(f.Types) > 0 {
		q = q.Where("tipo IN ?", f.Types)
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

	var alerts []model.Alert
	if err := q.Order("created_at DESC, id DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *GormAlertRepository) GetByID(ctx context.Context, id int64) (*model.Alert, error) {
	var a model.Alert
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAlertRepository) MarkRead(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id IN ?", ids).
		Update("leida", true)
	return res.RowsAffected, res.Error
}

func (r *GormAlertRepository) Resolve(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{"resuelta": true, "leida": true})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormAlertRepository) CountUnread(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Alert{}).Where("leida = ?", false).Count(&total).Error
	return total, err
}

func (r *GormAlertRepository) Create(ctx context.Context, alert *model.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}
