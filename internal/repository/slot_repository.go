package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
)

type SlotRepository interface {
	// Slot rows of a venue (every venue when empty) in [from, to].
	ListRange(ctx context.Context, venue string, from, to calendar.Date) ([]model.Slot, error)
	// Rows of one court on one date at the given times, any court type.
	ListAt(ctx context.Context, venue, court string, date calendar.Date, times []calendar.Clock) ([]model.Slot, error)
	// Rows linked to a booking.
	ListByBooking(ctx context.Context, bookingID int64) ([]model.Slot, error)
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	Create(ctx context.Context, slot *model.Slot) error
	// Claim moves an available row to booked with holder's booking and client
	// fields. It reports false when the row was not available any more.
	Claim(ctx context.Context, id string, holder *model.Slot) (bool, error)
	// Free every row linked to the booking; returns how many were released.
	ReleaseByBooking(ctx context.Context, bookingID int64) (int64, error)
	// Block marks a row blocked with an optional reason.
	Block(ctx context.Context, id string, reason *string) error
	// Unblock frees a blocked row; reports false when the row was not blocked.
	Unblock(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

func (r *GormSlotRepository) ListRange(ctx context.Context, venue string, from, to calendar.Date) ([]model.Slot, error) {
	var slots []model.Slot
	q := r.db.WithContext(ctx).
		Model(&model.Slot{}).
		Where("fecha >= ? AND fecha <= ?", from, to)

	if venue != "" {
		q = q.Where("centro = ?", venue)
	}

	if err := q.Order("fecha ASC, hora ASC, cancha ASC").Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormSlotRepository) ListAt(
	ctx context.Context,
	venue, court string,
	date calendar.Date,
	times []calendar.Clock,
) ([]model.Slot, error) {
	if len(times) == 0 {
		return []model.Slot{}, nil
	}
	var slots []model.Slot
	err := r.db.WithContext(ctx).
		Where("centro = ? AND cancha = ? AND fecha = ?", venue, court, date).
		Where("hora IN ?", times).
		Order("hora ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormSlotRepository) ListByBooking(ctx context.Context, bookingID int64) ([]model.Slot, error) {
	var slots []model.Slot
	if err := r.db.WithContext(ctx).Where("reserva_id = ?", bookingID).Order("fecha ASC, hora ASC").Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormSlotRepository) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	var slot model.Slot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *GormSlotRepository) Claim(ctx context.Context, id string, holder *model.Slot) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Slot{}).
		Where("id = ? AND estado = ?", id, model.SlotAvailable).
		Updates(map[string]any{
			"estado":           model.SlotBooked,
			"reserva_id":       holder.BookingID,
			"origen":           holder.Origin,
			"cliente_nombre":   holder.ClientName,
			"cliente_telefono": holder.ClientPhone,
			"cliente_rut":      holder.ClientRUT,
			"cliente_email":    holder.ClientEmail,
			"notas":            holder.Notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSlotRepository) ReleaseByBooking(ctx context.Context, bookingID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Slot{}).
		Where("reserva_id = ?", bookingID).
		Updates(map[string]any{
			"estado":           model.SlotAvailable,
			"reserva_id":       nil,
			"origen":           nil,
			"cliente_nombre":   nil,
			"cliente_telefono": nil,
			"cliente_rut":      nil,
			"cliente_email":    nil,
		})
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) Block(ctx context.Context, id string, reason *string) error {
	return r.db.WithContext(ctx).
		Model(&model.Slot{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"estado": model.SlotBlocked,
			"notas":  reason,
		}).
		Error
}

func (r *GormSlotRepository) Unblock(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Slot{}).
		Where("id = ? AND estado = ?", id, model.SlotBlocked).
		Updates(map[string]any{
			"estado": model.SlotAvailable,
			"notas":  nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSlotRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Slot{}, "id = ?", id).Error
}
