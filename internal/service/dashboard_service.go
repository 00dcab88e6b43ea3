package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/canchallena/panel/internal/availability"
	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/repository"
)

const (
	upcomingDays  = 7
	upcomingLimit = 20
	deadHoursTop  = 5
	latestAlerts  = 5
)

// DayCount is one point of the bookings-per-day chart.
type DayCount struct {
	Date  calendar.Date `json:"fecha"`
	Venue string        `json:"centro"`
	Total int           `json:"total"`
}

// Summary holds the KPIs of the home page for a date range.
type Summary struct {
	From         calendar.Date                 `json:"desde"`
	To           calendar.Date                 `json:"hasta"`
	Bookings     int                           `json:"reservas"`
	Cancelled    int                           `json:"canceladas"`
	Occupancy    []availability.OccupancyStats `json:"ocupacion"`
	Messages     int64                         `json:"mensajes"`
	UnreadAlerts int64                         `json:"alertas_pendientes"`
	FromBot      int                           `json:"reservas_bot"`
	FromSync     int                           `json:"reservas_easycancha"`
	PerDay       []DayCount                    `json:"por_dia"`
	Upcoming     []model.Booking               `json:"proximas"`
	DeadHours    []availability.HourLoad       `json:"horas_muertas"`
	LatestAlerts []AlertView                   `json:"ultimas_alertas"`
}

type DashboardService struct {
	avail       *AvailabilityService
	alerts      *AlertService
	bookingRepo repository.BookingRepository
	messageRepo repository.MessageRepository
	loc         *time.Location
	now         func() time.Time
}

func NewDashboardService(
	avail *AvailabilityService,
	alerts *AlertService,
	bookingRepo repository.BookingRepository,
	messageRepo repository.MessageRepository,
	loc *time.Location,
) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		avail:       avail,
		alerts:      alerts,
		bookingRepo: bookingRepo,
		messageRepo: messageRepo,
		loc:         loc,
		now:         time.Now,
	}
}

// Summary computes the home page KPIs. Occupancy counts every booking that
// still holds its cells, completed ones included, since the range is mostly
// in the past.
func (s *DashboardService) Summary(ctx context.Context, from, to calendar.Date) (*Summary, error) {
	rng, err := calendar.NormalizeDateRange(from, to, MaxRangeDays)
	if err != nil {
		return nil, invalid("fecha", "rango inválido")
	}
	out := &Summary{From: rng.From, To: rng.To}

	inRange, _, err := s.bookingRepo.List(ctx, repository.BookingFilter{From: rng.From, To: rng.To}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out.Bookings = len(inRange)
	out.PerDay = countPerDay(inRange)
	for _, b := range inRange {
		if b.Status == model.BookingCancelled {
			out.Cancelled++
		}
		if b.Channel == nil {
			continue
		}
		switch *b.Channel {
		case model.ChannelBot:
			out.FromBot++
		case model.ChannelEasyCancha:
			out.FromSync++
		}
	}

	if out.Occupancy, err = s.avail.Occupancy(ctx, rng.From, rng.To, availability.Held); err != nil {
		return nil, err
	}
	if out.DeadHours, err = s.avail.DeadHours(ctx, rng.From, rng.To, deadHoursTop, availability.Held); err != nil {
		return nil, err
	}

	start := rng.From.In(s.loc)
	end := rng.To.AddDays(1).In(s.loc).Add(-time.Nanosecond)
	if out.Messages, err = s.messageRepo.CountOutbound(ctx, start.UTC(), end.UTC()); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	if out.UnreadAlerts, err = s.alerts.CountUnread(ctx); err != nil {
		return nil, err
	}
	if out.LatestAlerts, err = s.alerts.Latest(ctx, latestAlerts); err != nil {
		return nil, err
	}

	if out.Upcoming, err = s.Upcoming(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// Upcoming lists the next active bookings from today through the next
// seven days.
func (s *DashboardService) Upcoming(ctx context.Context) ([]model.Booking, error) {
	today := calendar.DateOf(s.now().In(s.loc))
	bookings, _, err := s.bookingRepo.List(ctx, repository.BookingFilter{
		From:     today,
		To:       today.AddDays(upcomingDays),
		Statuses: model.ActiveStatuses,
	}, upcomingLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("upcoming bookings: %w", err)
	}
	return bookings, nil
}

func countPerDay(bookings []model.Booking) []DayCount {
	type key struct {
		date  calendar.Date
		venue string
	}
	counts := map[key]int{}
	for _, b := range bookings {
		counts[key{b.Date, b.Venue}]++
	}
	out := make([]DayCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, DayCount{Date: k.date, Venue: k.venue, Total: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].Venue < out[j].Venue
	})
	return out
}
