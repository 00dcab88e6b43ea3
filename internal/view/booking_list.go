package view

import (
	"context"

	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/realtime"
	"github.com/canchallena/panel/internal/repository"
)

// BookingStore is the part of the booking service a list view needs.
type BookingStore interface {
	List(ctx context.Context, f repository.BookingFilter, page, pageSize int) (calendar.Page[model.Booking], error)
	SetStatus(ctx context.Context, id int64, status model.BookingStatus) error
	Cancel(ctx context.Context, id int64) error
}

// BookingList is one session's filtered booking page.
type BookingList struct {
	*Live[calendar.Page[model.Booking]]
	store BookingStore
}

func OpenBookingList(
	ctx context.Context,
	hub *realtime.Hub,
	store BookingStore,
	f repository.BookingFilter,
	page, pageSize int,
	log *zap.Logger,
) (*BookingList, error) {
	fetch := func(ctx context.Context) (calendar.Page[model.Booking], error) {
		return store.List(ctx, f, page, pageSize)
	}
	live, err := Activate(ctx, hub, "bookings", fetch, log, model.Booking{}.TableName(), model.Slot{}.TableName())
	if err != nil {
		return nil, err
	}
	return &BookingList{Live: live, store: store}, nil
}

// Confirm marks a booking confirmed, showing it at once.
func (l *BookingList) Confirm(ctx context.Context, id int64) error {
	return Run(ctx, l.Live, setStatus(id, model.BookingConfirmed, func(ctx context.Context) error {
		return l.store.SetStatus(ctx, id, model.BookingConfirmed)
	}))
}

// Cancel marks a booking cancelled, showing it at once.
func (l *BookingList) Cancel(ctx context.Context, id int64) error {
	return Run(ctx, l.Live, setStatus(id, model.BookingCancelled, func(ctx context.Context) error {
		return l.store.Cancel(ctx, id)
	}))
}

func setStatus(id int64, status model.BookingStatus, do func(context.Context) error) Command[calendar.Page[model.Booking]] {
	return Command[calendar.Page[model.Booking]]{
		Apply: func(p calendar.Page[model.Booking]) (calendar.Page[model.Booking], func(calendar.Page[model.Booking]) calendar.Page[model.Booking]) {
			items := make([]model.Booking, len(p.Items))
			copy(items, p.Items)
			var previous model.BookingStatus
			found := false
			for i := range items {
				if items[i].ID == id {
					previous = items[i].Status
					items[i].Status = status
					found = true
				}
			}
			p.Items = items
			if !found {
				return p, nil
			}
			return p, withStatus(id, previous)
		},
		Do: do,
	}
}

func withStatus(id int64, status model.BookingStatus) func(calendar.Page[model.Booking]) calendar.Page[model.Booking] {
	return func(p calendar.Page[model.Booking]) calendar.Page[model.Booking] {
		items := make([]model.Booking, len(p.Items))
		copy(items, p.Items)
		for i := range items {
			if items[i].ID == id {
				items[i].Status = status
			}
		}
		p.Items = items
		return p
	}
}
