package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/availability"
	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/normalize"
	"github.com/canchallena/panel/internal/realtime"
	"github.com/canchallena/panel/internal/repository"
	"github.com/canchallena/panel/internal/venue"
)

const dashboardSource = "dashboard"

// BookingInput is what the booking dialog submits, for both create and edit.
type BookingInput struct {
	Venue     string         `json:"centro"`
	CourtType string         `json:"tipo_cancha"`
	Court     string         `json:"cancha"`
	Date      calendar.Date  `json:"fecha"`
	Time      calendar.Clock `json:"hora"`
	// Duration in minutes; zero means the group's default.
	Duration int `json:"duracion"`

	ClientID    string `json:"cliente_id"`
	ClientName  string `json:"nombre_cliente"`
	ClientPhone string `json:"telefono_cliente"`
	ClientRUT   string `json:"rut_cliente"`
	ClientEmail string `json:"email_cliente"`

	// Status is only honoured on edit; empty keeps the current one.
	Status         model.BookingStatus `json:"estado"`
	Channel        model.Channel       `json:"canal_origen"`
	EasyCanchaCode string              `json:"codigo_easycancha"`
	Notes          string              `json:"notas"`
}

// BlockInput takes one cell out of service.
type BlockInput struct {
	Venue     string         `json:"centro"`
	CourtType string         `json:"tipo_cancha"`
	Court     string         `json:"cancha"`
	Date      calendar.Date  `json:"fecha"`
	Time      calendar.Clock `json:"hora"`
	Reason    string         `json:"motivo"`
}

// stores are the repositories of one unit of work.
type stores struct {
	slots    repository.SlotRepository
	bookings repository.BookingRepository
}

func gormStores(db *gorm.DB) stores {
	return stores{
		slots:    repository.NewGormSlotRepository(db),
		bookings: repository.NewGormBookingRepository(db),
	}
}

// BookingService places, edits, cancels and blocks. Every mutation of slot
// rows runs inside one transaction and claims rows with conditional writes.
type BookingService struct {
	db     *gorm.DB
	venues *venue.Registry
	events repository.EventRepository
	log    *zap.Logger
}

func NewBookingService(db *gorm.DB, venues *venue.Registry, log *zap.Logger) *BookingService {
	return &BookingService{
		db:     db,
		venues: venues,
		events: repository.NewGormEventRepository(db),
		log:    log,
	}
}

func (s *BookingService) validate(in *BookingInput) (*venue.CourtGroup, error) {
	in.Venue = strings.TrimSpace(in.Venue)
	in.Court = normalize.Court(in.Court)
	if in.Venue == "" {
		return nil, invalid("centro", "es obligatorio")
	}
	if strings.TrimSpace(in.CourtType) == "" {
		return nil, invalid("tipo_cancha", "es obligatorio")
	}
	if in.Court == "" {
		return nil, invalid("cancha", "es obligatoria")
	}
	if in.Date.IsZero() {
		return nil, invalid("fecha", "es obligatoria")
	}

	v := s.venues.Venue(in.Venue)
	if v == nil {
		return nil, invalid("centro", "%q no existe", in.Venue)
	}
	in.Venue = v.Name
	group := s.venues.Group(in.Venue, in.CourtType)
	if group == nil {
		return nil, invalid("tipo_cancha", "%q no existe en %s", in.CourtType, in.Venue)
	}
	in.CourtType = group.Type
	if !group.HasCourt(in.Court) {
		return nil, invalid("cancha", "%q no existe", in.Court)
	}
	if !group.HasTime(in.Time) {
		return nil, invalid("hora", "%s fuera del horario", in.Time)
	}
	if in.Duration == 0 {
		in.Duration = group.DefaultDuration()
	}
	if !group.AllowsDuration(in.Duration) {
		return nil, invalid("duracion", "%d minutos no permitido", in.Duration)
	}

	if utf8.RuneCountInString(strings.TrimSpace(in.ClientName)) < 2 {
		return nil, invalid("nombre_cliente", "mínimo 2 caracteres")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.ClientPhone)) < 8 {
		return nil, invalid("telefono_cliente", "mínimo 8 caracteres")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, invalid("estado", "%q no es válido", in.Status)
	}
	if in.Channel != "" && !in.Channel.Valid() {
		return nil, invalid("canal_origen", "%q no es válido", in.Channel)
	}
	return group, nil
}

// apply copies the input onto b.
func (in *BookingInput) apply(b *model.Booking) {
	duration := in.Duration
	b.ClientID = model.NullString(in.ClientID)
	b.Venue = in.Venue
	b.CourtType = in.CourtType
	b.Court = in.Court
	b.Date = in.Date
	b.Time = in.Time
	b.Duration = &duration
	b.ClientName = model.NullString(in.ClientName)
	b.ClientPhone = model.NullString(in.ClientPhone)
	b.ClientRUT = model.NullString(in.ClientRUT)
	b.ClientEmail = model.NullString(in.ClientEmail)
	b.EasyCanchaCode = model.NullString(in.EasyCanchaCode)
	b.Notes = model.NullString(in.Notes)
	if in.Status != "" {
		b.Status = in.Status
	}
	if in.Channel != "" {
		ch := in.Channel
		b.Channel = &ch
	}
}

// Place creates a booking and claims every interval it occupies.
func (s *BookingService) Place(ctx context.Context, in BookingInput) (*model.Booking, error) {
	group, err := s.validate(&in)
	if err != nil {
		return nil, err
	}
	dashboard := model.ChannelDashboard
	b := &model.Booking{
		Status:  model.BookingPending,
		Channel: &dashboard,
		Source:  dashboardSource,
	}
	in.Status = ""
	in.apply(b)

	ctx, held := realtime.Hold(ctx)
	defer held.Flush()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := gormStores(tx)
		cells, err := s.required(ctx, st, group, b)
		if err != nil {
			return err
		}
		if err := st.bookings.Create(ctx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return s.claim(ctx, st, group, b, cells)
	})
	if err != nil {
		if b.ID != 0 {
			err = s.dropOrphan(ctx, b.ID, err)
		}
		return nil, err
	}

	s.audit(ctx, model.EventBookingCreated, &b.ID, nil, b)
	s.log.Info("booking placed",
		zap.Int64("id", b.ID),
		zap.String("venue", b.Venue),
		zap.String("court", b.Court),
		zap.String("date", b.Date.String()),
		zap.String("time", b.Time.String()),
	)
	return b, nil
}

// Edit releases the booking's own slots, re-checks the new cells and claims
// them again. Nothing changes when the new cells are taken.
func (s *BookingService) Edit(ctx context.Context, id int64, in BookingInput) (*model.Booking, error) {
	group, err := s.validate(&in)
	if err != nil {
		return nil, err
	}

	ctx, held := realtime.Hold(ctx)
	defer held.Flush()

	var b *model.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := gormStores(tx)
		current, err := st.bookings.GetByID(ctx, id)
		if err != nil {
			return notFound("booking", err)
		}
		if in.Status.Active() && !current.Status.Active() {
			return invalid("estado", "una reserva %s no se puede reactivar", current.Status)
		}
		if _, err := st.slots.ReleaseByBooking(ctx, id); err != nil {
			return fmt.Errorf("release slots: %w", err)
		}

		in.apply(current)
		b = current

		var cells []availability.Cell
		if b.Status.Active() {
			if cells, err = s.required(ctx, st, group, b); err != nil {
				return err
			}
		}
		if err := st.bookings.Update(ctx, b); err != nil {
			return notFound("update booking", err)
		}
		if !b.Status.Active() {
			return nil
		}
		return s.claim(ctx, st, group, b, cells)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, model.EventBookingUpdated, &b.ID, nil, b)
	return b, nil
}

// required returns the cells b needs and fails with a ConflictError when any
// of them is held by a slot row or by another active booking.
func (s *BookingService) required(ctx context.Context, st stores, group *venue.CourtGroup, b *model.Booking) ([]availability.Cell, error) {
	slots, bookings, err := loadRows(ctx, st.slots, st.bookings, b.Venue, b.Date, b.Date, model.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	slots, bookings = withoutBooking(slots, bookings, b.ID)

	g := availability.BuildGrid(availability.Scope{Venue: b.Venue, Group: group}, b.Date, slots, bookings)
	cells, err := g.Required(b.Court, b.Time, b.Minutes(group.Interval))
	switch {
	case errors.Is(err, availability.ErrOutsideWindow):
		return nil, invalid("hora", "no existen suficientes slots para %d minutos", b.Minutes(group.Interval))
	case errors.Is(err, availability.ErrUnknownCourt):
		return nil, invalid("cancha", "%q no existe", b.Court)
	case err != nil:
		return nil, invalid("duracion", "%v", err)
	}

	var taken []calendar.Clock
	for _, c := range cells {
		if !c.Available() {
			taken = append(taken, c.Time)
		}
	}
	if len(taken) > 0 {
		return nil, s.conflict(b.Venue, b.CourtType, b.Court, b.Date, taken)
	}
	return cells, nil
}

// claim writes b onto every cell: existing rows are claimed only while still
// available, missing rows are inserted and the unique cell index rejects a
// concurrent insert.
func (s *BookingService) claim(ctx context.Context, st stores, group *venue.CourtGroup, b *model.Booking, cells []availability.Cell) error {
	origin := model.ChannelDashboard
	if b.Channel != nil {
		origin = *b.Channel
	}
	holder := &model.Slot{
		BookingID:   &b.ID,
		Origin:      &origin,
		ClientName:  b.ClientName,
		ClientPhone: b.ClientPhone,
		ClientRUT:   b.ClientRUT,
		ClientEmail: b.ClientEmail,
		Notes:       b.Notes,
	}

	for _, c := range cells {
		if c.SlotID != "" {
			ok, err := st.slots.Claim(ctx, c.SlotID, holder)
			if err != nil {
				return fmt.Errorf("%w: claim slot: %w", ErrPartialWrite, err)
			}
			if !ok {
				return s.conflict(b.Venue, b.CourtType, b.Court, b.Date, []calendar.Clock{c.Time})
			}
			continue
		}

		row := *holder
		row.Venue = b.Venue
		row.CourtType = group.Type
		row.Court = c.Court
		row.Date = b.Date
		row.Time = c.Time
		row.Duration = group.Interval
		row.State = model.SlotBooked
		if err := st.slots.Create(ctx, &row); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return s.conflict(b.Venue, b.CourtType, b.Court, b.Date, []calendar.Clock{c.Time})
			}
			return fmt.Errorf("%w: create slot: %w", ErrPartialWrite, err)
		}
	}
	return nil
}

func (s *BookingService) conflict(venueName, courtType, court string, date calendar.Date, times []calendar.Clock) error {
	return &ConflictError{Venue: venueName, CourtType: courtType, Court: court, Date: date, Times: times}
}

// dropOrphan makes sure a booking whose transaction failed is gone. Cause is
// returned unchanged unless the booking row survived and cannot be deleted.
func (s *BookingService) dropOrphan(ctx context.Context, id int64, cause error) error {
	bookings := repository.NewGormBookingRepository(s.db)
	if _, err := bookings.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cause
		}
		return fmt.Errorf("%w: %w", ErrPartialWrite, cause)
	}
	s.log.Warn("booking survived a failed placement, deleting", zap.Int64("id", id), zap.Error(cause))
	if err := bookings.Delete(ctx, id); err != nil {
		s.log.Error("orphan booking delete failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPartialWrite, cause)
	}
	return cause
}

// Cancel marks the booking cancelled and frees its slots.
func (s *BookingService) Cancel(ctx context.Context, id int64) error {
	ctx, held := realtime.Hold(ctx)
	defer held.Flush()

	var released int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := gormStores(tx)
		if err := st.bookings.UpdateStatus(ctx, id, model.BookingCancelled); err != nil {
			return notFound("cancel booking", err)
		}
		n, err := st.slots.ReleaseByBooking(ctx, id)
		if err != nil {
			return fmt.Errorf("release slots: %w", err)
		}
		released = n
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, model.EventBookingCancelled, &id, nil, map[string]any{"slots_liberados": released})
	return nil
}

// SetStatus confirms, completes or marks a no-show. Cancelling goes through
// Cancel so the slots are released.
func (s *BookingService) SetStatus(ctx context.Context, id int64, status model.BookingStatus) error {
	if !status.Valid() {
		return invalid("estado", "%q no es válido", status)
	}
	if status == model.BookingCancelled {
		return s.Cancel(ctx, id)
	}

	bookings := repository.NewGormBookingRepository(s.db)
	current, err := bookings.GetByID(ctx, id)
	if err != nil {
		return notFound("booking", err)
	}
	if status.Active() && !current.Status.Active() {
		return invalid("estado", "una reserva %s no se puede reactivar", current.Status)
	}
	if err := bookings.UpdateStatus(ctx, id, status); err != nil {
		return notFound("update status", err)
	}
	s.audit(ctx, model.EventBookingStatus, &id, nil, map[string]any{"de": current.Status, "a": status})
	return nil
}

// Get returns one booking.
func (s *BookingService) Get(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := repository.NewGormBookingRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound("booking", err)
	}
	return b, nil
}

// List returns one page of bookings ordered by date and time.
func (s *BookingService) List(ctx context.Context, f repository.BookingFilter, page, pageSize int) (calendar.Page[model.Booking], error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return calendar.Page[model.Booking]{}, invalid("fecha", "rango inválido")
	}
	if f.Venue != "" {
		if v := s.venues.Venue(f.Venue); v != nil {
			f.Venue = v.Name
		}
	}
	limit, offset := calendar.PageOffset(page, pageSize)
	items, total, err := repository.NewGormBookingRepository(s.db).List(ctx, f, limit, offset)
	if err != nil {
		return calendar.Page[model.Booking]{}, fmt.Errorf("list bookings: %w", err)
	}
	return calendar.NewPage(items, page, pageSize, total), nil
}

// CompleteFinished marks active bookings whose last interval ended before
// today as completed. It returns how many bookings changed.
func (s *BookingService) CompleteFinished(ctx context.Context, today calendar.Date) (int64, error) {
	bookings := repository.NewGormBookingRepository(s.db)
	active, _, err := bookings.List(ctx, repository.BookingFilter{
		To:       today.AddDays(-1),
		Statuses: model.ActiveStatuses,
	}, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list active bookings: %w", err)
	}

	var ids []int64
	for i := range active {
		b := &active[i]
		interval := 60
		if g := s.venues.Group(b.Venue, b.CourtType); g != nil {
			interval = g.Interval
		}
		end := b.Time.Add(b.Minutes(interval))
		if b.Date == today.AddDays(-1) && end > calendar.MinutesPerDay {
			continue
		}
		ids = append(ids, b.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := bookings.UpdateStatusMany(ctx, ids, model.BookingCompleted)
	if err != nil {
		return 0, fmt.Errorf("complete bookings: %w", err)
	}
	s.audit(ctx, model.EventBookingsFinished, nil, nil, map[string]any{"ids": ids})
	return n, nil
}

// Block takes a cell out of service, reusing its slot row when there is one.
// A cell held by an active booking is blocked as well; cancelling the
// booking first is left to the caller.
func (s *BookingService) Block(ctx context.Context, in BlockInput) (*model.Slot, error) {
	group := s.venues.Group(in.Venue, in.CourtType)
	if group == nil {
		return nil, invalid("tipo_cancha", "%q no existe en %q", in.CourtType, in.Venue)
	}
	in.Venue = s.venues.Venue(in.Venue).Name
	in.Court = normalize.Court(in.Court)
	if !group.HasCourt(in.Court) {
		return nil, invalid("cancha", "%q no existe", in.Court)
	}
	if in.Date.IsZero() {
		return nil, invalid("fecha", "es obligatoria")
	}
	if !group.HasTime(in.Time) {
		return nil, invalid("hora", "%s fuera del horario", in.Time)
	}
	reason := model.NullString(in.Reason)

	ctx, held := realtime.Hold(ctx)
	defer held.Flush()

	var out *model.Slot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := gormStores(tx)
		existing, err := st.slots.ListAt(ctx, in.Venue, in.Court, in.Date, []calendar.Clock{in.Time})
		if err != nil {
			return fmt.Errorf("load slot: %w", err)
		}
		for _, sl := range existing {
			if sl.CourtType != group.Type {
				continue
			}
			if err := st.slots.Block(ctx, sl.ID, reason); err != nil {
				return fmt.Errorf("block slot: %w", err)
			}
			out, err = st.slots.GetByID(ctx, sl.ID)
			return err
		}

		out = &model.Slot{
			Venue:     in.Venue,
			CourtType: group.Type,
			Court:     in.Court,
			Date:      in.Date,
			Time:      in.Time,
			Duration:  group.Interval,
			State:     model.SlotBlocked,
			Notes:     reason,
		}
		if err := st.slots.Create(ctx, out); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return s.conflict(in.Venue, group.Type, in.Court, in.Date, []calendar.Clock{in.Time})
			}
			return fmt.Errorf("create blocked slot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, model.EventSlotBlocked, nil, &out.ID, map[string]any{"motivo": in.Reason})
	return out, nil
}

// Unblock frees a blocked slot. Slots that are not blocked are left alone
// and reported as ErrNotBlocked.
func (s *BookingService) Unblock(ctx context.Context, slotID string) error {
	slots := repository.NewGormSlotRepository(s.db)
	ok, err := slots.Unblock(ctx, slotID)
	if err != nil {
		return fmt.Errorf("unblock slot: %w", err)
	}
	if !ok {
		if _, err := slots.GetByID(ctx, slotID); err != nil {
			return notFound("slot", err)
		}
		return ErrNotBlocked
	}
	s.audit(ctx, model.EventSlotUnblocked, nil, &slotID, nil)
	return nil
}

// audit records a dashboard mutation. Failures are logged only.
func (s *BookingService) audit(ctx context.Context, typ model.EventType, bookingID *int64, slotID *string, details any) {
	recordAudit(ctx, s.events, s.log, typ, bookingID, slotID, details)
}

func recordAudit(
	ctx context.Context,
	events repository.EventRepository,
	log *zap.Logger,
	typ model.EventType,
	bookingID *int64,
	slotID *string,
	details any,
) {
	ev := &model.Event{EventType: typ, BookingID: bookingID, SlotID: slotID}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			log.Warn("audit details not encodable", zap.String("type", string(typ)), zap.Error(err))
		} else {
			ev.Details = datatypes.JSON(raw)
		}
	}
	if err := events.Create(ctx, ev); err != nil {
		log.Warn("audit event not written", zap.String("type", string(typ)), zap.Error(err))
	}
}
