package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
)

// BookingFilter narrows booking lists. Zero fields do not filter.
type BookingFilter struct {
	Venue    string
	From     calendar.Date
	To       calendar.Date
	Statuses []model.BookingStatus
	Channel  model.Channel
	// ClientID and Phone match either one when both are set.
	ClientID string
	Phone    string
	// Newest orders by creation time, newest first, instead of by date.
	Newest   bool
}

type BookingRepository interface {
	// Create inserts the booking and fills its id.
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Booking, error)
	// Update overwrites every editable field of the booking.
	Update(ctx context.Context, booking *model.Booking) error
	UpdateStatus(ctx context.Context, id int64, status model.BookingStatus) error
	// Set the status of several bookings at once.
	UpdateStatusMany(ctx context.Context, ids []int64, status model.BookingStatus) (int64, error)
	Delete(ctx context.Context, id int64) error
	// Filtered list ordered by date and time, with the total before paging.
	List(ctx context.Context, f BookingFilter, limit, offset int) ([]model.Booking, int64, error)
	Count(ctx context.Context, f BookingFilter) (int64, error)
}

// GORM-backed implementation.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Booking, error) {
	if len(ids) == 0 {
		return []model.Booking{}, nil
	}
	var bookings []model.Booking
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) Update(ctx context.Context, b *model.Booking) error {
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", b.ID).
		Updates(map[string]any{
			"cliente_id":        b.ClientID,
			"centro":            b.Venue,
			"tipo_cancha":       b.CourtType,
			"cancha":            b.Court,
			"fecha":             b.Date,
			"hora":              b.Time,
			"duracion":          b.Duration,
			"nombre_cliente":    b.ClientName,
			"telefono_cliente":  b.ClientPhone,
			"rut_cliente":       b.ClientRUT,
			"email_cliente":     b.ClientEmail,
			"estado":            b.Status,
			"canal_origen":      b.Channel,
			"codigo_easycancha": b.EasyCanchaCode,
			"origen":            b.Source,
			"notas":             b.Notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormBookingRepository) UpdateStatus(ctx context.Context, id int64, status model.BookingStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Update("estado", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormBookingRepository) UpdateStatusMany(ctx context.Context, ids []int64, status model.BookingStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id IN ?", ids).
		Update("estado", status)
	return res.RowsAffected, res.Error
}

func (r *GormBookingRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Booking{}, "id = ?", id).Error
}

func (r *GormBookingRepository) filtered(ctx context.Context, f BookingFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Booking{})
	if f.Venue != "" {
		q = q.Where("centro = ?", f.Venue)
	}
	if !f.From.IsZero() {
		q = q.Where("fecha >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("fecha <= ?", f.To)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("estado IN ?", f.Statuses)
	}
	if f.Channel != "" {
		q = q.Where("canal_origen = ?", f.Channel)
	}
	switch {
	case f.ClientID != "" && f.Phone != "":
		q = q.Where("cliente_id = ? OR telefono_cliente = ?", f.ClientID, f.Phone)
	case f.ClientID != "":
		q = q.Where("cliente_id = ?", f.ClientID)
	case f.Phone != "":
		q = q.Where("telefono_cliente = ?", f.Phone)
	}
	return q
}

func (r *GormBookingRepository) List(
	ctx context.Context,
	f BookingFilter,
	limit, offset int,
) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.filtered(ctx, f)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	order := "fecha ASC, hora ASC, id ASC"
	if f.Newest {
		order = "created_at DESC, id DESC"
	}
	if err := q.Order(order).Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *GormBookingRepository) Count(ctx context.Context, f BookingFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
