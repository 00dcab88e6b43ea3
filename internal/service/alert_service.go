package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/normalize"
	"github.com/canchallena/panel/internal/repository"
)

const (
	alertListLimit = 100
	// The bot writes this instead of a sender id when it has none.
	unknownSender = "No disponible"
)

// AlertQuery filters the alert inbox. Zero fields do not filter.
type AlertQuery struct {
	Read *bool
	Type string
	Date calendar.Date
}

// AlertView is an alert with the client and booking it points at.
type AlertView struct {
	model.Alert
	Kind    model.AlertType `json:"tipo_normalizado"`
	Client  *model.Client   `json:"cliente,omitempty"`
	Booking *model.Booking  `json:"reserva,omitempty"`
}

type AlertService struct {
	alertRepo   repository.AlertRepository
	clientRepo  repository.ClientRepository
	bookingRepo repository.BookingRepository
	eventRepo   repository.EventRepository
	loc         *time.Location
	log         *zap.Logger
}

func NewAlertService(
	alertRepo repository.AlertRepository,
	clientRepo repository.ClientRepository,
	bookingRepo repository.BookingRepository,
	eventRepo repository.EventRepository,
	loc *time.Location,
	log *zap.Logger,
) *AlertService {
	if loc == nil {
		loc = time.UTC
	}
	return &AlertService{
		alertRepo:   alertRepo,
		clientRepo:  clientRepo,
		bookingRepo: bookingRepo,
		eventRepo:   eventRepo,
		loc:         loc,
		log:         log,
	}
}

// List returns the newest matching alerts, at most 100.
func (s *AlertService) List(ctx context.Context, q AlertQuery) ([]AlertView, error) {
	f := repository.AlertFilter{Read: q.Read, Limit: alertListLimit}
	if q.Type != "" {
		f.Types = normalize.AlertTypes.Spellings(q.Type)
	}
	if !q.Date.IsZero() {
		start := q.Date.In(s.loc)
		f.From = start.UTC()
		f.To = start.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
	}
	alerts, err := s.alertRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return s.enrich(ctx, alerts)
}

// Latest returns the n newest unread alerts.
func (s *AlertService) Latest(ctx context.Context, n int) ([]AlertView, error) {
	unread := false
	alerts, err := s.alertRepo.List(ctx, repository.AlertFilter{Read: &unread, Limit: n})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return s.enrich(ctx, alerts)
}

func (s *AlertService) CountUnread(ctx context.Context) (int64, error) {
	n, err := s.alertRepo.CountUnread(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unread alerts: %w", err)
	}
	return n, nil
}

// enrich attaches clients by sender id and bookings by id. Lookup failures
// leave the alerts bare.
func (s *AlertService) enrich(ctx context.Context, alerts []model.Alert) ([]AlertView, error) {
	var (
		senders    []string
		bookingIDs []int64
		seenSender = map[string]bool{}
		seenID     = map[int64]bool{}
	)
	for _, a := range alerts {
		if id := model.StringValue(a.SenderID); id != "" && id != unknownSender && !seenSender[id] {
			seenSender[id] = true
			senders = append(senders, id)
		}
		if a.BookingID != nil && !seenID[*a.BookingID] {
			seenID[*a.BookingID] = true
			bookingIDs = append(bookingIDs, *a.BookingID)
		}
	}

	clients := map[string]*model.Client{}
	if found, err := s.clientRepo.ListBySenderIDs(ctx, senders); err != nil {
		s.log.Warn("alert clients not loaded", zap.Error(err))
	} else {
		for i := range found {
			clients[found[i].SenderID] = &found[i]
		}
	}
	bookings := map[int64]*model.Booking{}
	if found, err := s.bookingRepo.ListByIDs(ctx, bookingIDs); err != nil {
		s.log.Warn("alert bookings not loaded", zap.Error(err))
	} else {
		for i := range found {
			bookings[found[i].ID] = &found[i]
		}
	}

	out := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		v := AlertView{Alert: a, Kind: a.CanonicalType()}
		v.Client = clients[model.StringValue(a.SenderID)]
		if a.BookingID != nil {
			v.Booking = bookings[*a.BookingID]
		}
		out = append(out, v)
	}
	return out, nil
}

// MarkRead flags the given alerts read. "Mark all" passes every visible id.
func (s *AlertService) MarkRead(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.alertRepo.MarkRead(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("mark alerts read: %w", err)
	}
	recordAudit(ctx, s.eventRepo, s.log, model.EventAlertsRead, nil, nil, map[string]any{"ids": ids, "cambiadas": n})
	return n, nil
}

// Resolve marks an alert resolved and read.
func (s *AlertService) Resolve(ctx context.Context, id int64) error {
	if err := s.alertRepo.Resolve(ctx, id); err != nil {
		return notFound("resolve alert", err)
	}
	recordAudit(ctx, s.eventRepo, s.log, model.EventAlertResolved, nil, nil, map[string]any{"id": id})
	return nil
}
