package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/availability"
	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/repository"
	"github.com/canchallena/panel/internal/venue"
)

// MaxRangeDays caps aggregate queries.
const MaxRangeDays = 92

// AvailabilityService feeds stored rows into the reconciliation engine.
type AvailabilityService struct {
	slotRepo    repository.SlotRepository
	bookingRepo repository.BookingRepository
	venues      *venue.Registry
	log         *zap.Logger
}

func NewAvailabilityService(
	slotRepo repository.SlotRepository,
	bookingRepo repository.BookingRepository,
	venues *venue.Registry,
	log *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		slotRepo:    slotRepo,
		bookingRepo: bookingRepo,
		venues:      venues,
		log:         log,
	}
}

func (s *AvailabilityService) Venues() *venue.Registry {
	return s.venues
}

// loadRows fetches the slot rows and bookings of [from, to] plus the day
// before from, whose bookings may spill past midnight. A nil statuses list
// fetches bookings in any status.
func loadRows(
	ctx context.Context,
	slotRepo repository.SlotRepository,
	bookingRepo repository.BookingRepository,
	venueName string,
	from, to calendar.Date,
	statuses []model.BookingStatus,
) ([]model.Slot, []model.Booking, error) {
	slots, err := slotRepo.ListRange(ctx, venueName, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list slots: %w", err)
	}
	bookings, _, err := bookingRepo.List(ctx, repository.BookingFilter{
		Venue:    venueName,
		From:     from.AddDays(-1),
		To:       to,
		Statuses: statuses,
	}, 0, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("list bookings: %w", err)
	}
	return slots, bookings, nil
}

// withoutBooking hides one booking from the engine: its record is dropped
// and the slot rows it holds read as available.
func withoutBooking(slots []model.Slot, bookings []model.Booking, id int64) ([]model.Slot, []model.Booking) {
	if id == 0 {
		return slots, bookings
	}
	outSlots := make([]model.Slot, 0, len(slots))
	for _, sl := range slots {
		if sl.BookingID != nil && *sl.BookingID == id {
			sl.State = model.SlotAvailable
			sl.BookingID = nil
		}
		outSlots = append(outSlots, sl)
	}
	outBookings := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ID != id {
			outBookings = append(outBookings, b)
		}
	}
	return outSlots, outBookings
}

// Grid returns the single-day view of a venue's court group. A court group
// that is not configured yields an empty grid.
func (s *AvailabilityService) Grid(ctx context.Context, venueName, courtType string, date calendar.Date) (*availability.Grid, error) {
	if date.IsZero() {
		return nil, invalid("fecha", "es obligatoria")
	}
	scope := availability.Scope{Venue: venueName, Group: s.venues.Group(venueName, courtType)}
	if v := s.venues.Venue(venueName); v != nil {
		scope.Venue = v.Name
	}
	if scope.Group == nil {
		return availability.BuildGrid(scope, date, nil, nil), nil
	}

	slots, bookings, err := loadRows(ctx, s.slotRepo, s.bookingRepo, scope.Venue, date, date, model.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	g := availability.BuildGrid(scope, date, slots, bookings)
	for _, o := range g.Overlaps {
		s.log.Warn("double booking on grid cell",
			zap.String("venue", scope.Venue),
			zap.String("court", o.Key.Court),
			zap.String("date", date.String()),
			zap.String("time", o.Key.Time.String()),
			zap.Int64("replaced", o.Replaced),
			zap.Int64("kept", o.Kept),
		)
	}
	return g, nil
}

// FreeStartsQuery selects the start times offered by the booking dialog.
type FreeStartsQuery struct {
	Venue     string
	CourtType string
	Court     string
	Date      calendar.Date
	// Duration in minutes; zero means the group's default.
	Duration int
	// ExcludeBooking is the booking being edited, whose cells count as free.
	ExcludeBooking int64
}

func (s *AvailabilityService) FreeStarts(ctx context.Context, q FreeStartsQuery) ([]calendar.Clock, error) {
	if q.Date.IsZero() {
		return nil, invalid("fecha", "es obligatoria")
	}
	group := s.venues.Group(q.Venue, q.CourtType)
	if group == nil {
		return nil, invalid("tipo_cancha", "%q no existe en %q", q.CourtType, q.Venue)
	}
	if !group.HasCourt(q.Court) {
		return nil, invalid("cancha", "%q no existe", q.Court)
	}
	duration := q.Duration
	if duration == 0 {
		duration = group.DefaultDuration()
	}
	if !group.AllowsDuration(duration) {
		return nil, invalid("duracion", "%d minutos no permitido", duration)
	}

	venueName := s.venues.Venue(q.Venue).Name
	slots, bookings, err := loadRows(ctx, s.slotRepo, s.bookingRepo, venueName, q.Date, q.Date, model.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	slots, bookings = withoutBooking(slots, bookings, q.ExcludeBooking)

	g := availability.BuildGrid(availability.Scope{Venue: venueName, Group: group}, q.Date, slots, bookings)
	return availability.FreeStarts(g, q.Court, duration), nil
}

// Occupancy computes the prime-time occupancy of every venue over a range.
// A nil occupies counts pending and confirmed bookings only.
func (s *AvailabilityService) Occupancy(
	ctx context.Context,
	from, to calendar.Date,
	occupies availability.Occupies,
) ([]availability.OccupancyStats, error) {
	rng, err := calendar.NormalizeDateRange(from, to, MaxRangeDays)
	if err != nil {
		return nil, invalid("fecha", "rango inválido")
	}
	slots, bookings, err := loadRows(ctx, s.slotRepo, s.bookingRepo, "", rng.From, rng.To, nil)
	if err != nil {
		return nil, err
	}
	opts := availability.RangeOptions{Cutoff: s.venues.PrimeCutoff(), Occupies: occupies}

	venues := s.venues.Venues()
	out := make([]availability.OccupancyStats, 0, len(venues))
	for i := range venues {
		out = append(out, availability.VenueOccupancy(&venues[i], rng.From, rng.To, slots, bookings, opts))
	}
	return out, nil
}

// GroupOccupancy is Occupancy for a single court group.
func (s *AvailabilityService) GroupOccupancy(
	ctx context.Context,
	venueName, courtType string,
	from, to calendar.Date,
) (availability.OccupancyStats, error) {
	rng, err := calendar.NormalizeDateRange(from, to, MaxRangeDays)
	if err != nil {
		return availability.OccupancyStats{}, invalid("fecha", "rango inválido")
	}
	scope := availability.Scope{Venue: venueName, Group: s.venues.Group(venueName, courtType)}
	if scope.Group == nil {
		return availability.Occupancy(scope, rng.From, rng.To, nil, nil, availability.RangeOptions{}), nil
	}
	scope.Venue = s.venues.Venue(venueName).Name

	slots, bookings, err := loadRows(ctx, s.slotRepo, s.bookingRepo, scope.Venue, rng.From, rng.To, model.ActiveStatuses)
	if err != nil {
		return availability.OccupancyStats{}, err
	}
	opts := availability.RangeOptions{Cutoff: s.venues.PrimeCutoff()}
	return availability.Occupancy(scope, rng.From, rng.To, slots, bookings, opts), nil
}

// DeadHours returns the n prime-time hours with the most free cells.
func (s *AvailabilityService) DeadHours(
	ctx context.Context,
	from, to calendar.Date,
	n int,
	occupies availability.Occupies,
) ([]availability.HourLoad, error) {
	rng, err := calendar.NormalizeDateRange(from, to, MaxRangeDays)
	if err != nil {
		return nil, invalid("fecha", "rango inválido")
	}
	slots, bookings, err := loadRows(ctx, s.slotRepo, s.bookingRepo, "", rng.From, rng.To, nil)
	if err != nil {
		return nil, err
	}
	opts := availability.RangeOptions{Cutoff: s.venues.PrimeCutoff(), Occupies: occupies}
	loads := availability.HourlyOccupancy(s.venues.Venues(), rng.From, rng.To, slots, bookings, opts)
	return availability.DeadHours(loads, n), nil
}
