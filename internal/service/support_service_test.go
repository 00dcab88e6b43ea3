package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/availability"
	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/repository"
	"github.com/canchallena/panel/internal/venue"
)

func TestAvailabilityService_GridAndFreeStarts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	registry := venue.DefaultRegistry()
	bookings := NewBookingService(db, registry, zap.NewNop())
	avail := NewAvailabilityService(
		repository.NewGormSlotRepository(db),
		repository.NewGormBookingRepository(db),
		registry,
		zap.NewNop(),
	)

	b, err := bookings.Place(ctx, padelInput("20:00", 60))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	g, err := avail.Grid(ctx, "Quilicura", "padel", testDay)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if c := g.Cell(calendar.MustClock("20:30"), "Cancha 2"); c.State != model.SlotBooked || c.Virtual {
		t.Fatalf("cell 20:30 = %+v", c)
	}
	if st := g.Stats(); st.Booked != 2 || st.Total != 31*3 {
		t.Fatalf("stats = %+v", st)
	}

	starts, err := avail.FreeStarts(ctx, FreeStartsQuery{
		Venue: "Quilicura", CourtType: "Padel", Court: "Cancha 2", Date: testDay, Duration: 60,
	})
	if err != nil {
		t.Fatalf("free starts: %v", err)
	}
	for _, s := range starts {
		if s == calendar.MustClock("19:30") || s == calendar.MustClock("20:00") || s == calendar.MustClock("20:30") {
			t.Fatalf("%s overlaps the booking", s)
		}
	}

	// Editing the booking: its own cells are offered again.
	starts, err = avail.FreeStarts(ctx, FreeStartsQuery{
		Venue: "Quilicura", CourtType: "Padel", Court: "Cancha 2", Date: testDay, Duration: 60, ExcludeBooking: b.ID,
	})
	if err != nil {
		t.Fatalf("free starts excluding: %v", err)
	}
	found := false
	for _, s := range starts {
		if s == calendar.MustClock("20:00") {
			found = true
		}
	}
	if !found {
		t.Fatalf("own start not offered: %v", starts)
	}

	empty, err := avail.Grid(ctx, "Lo Prado", "Padel", testDay)
	if err != nil || len(empty.Times) != 0 || empty.Stats().Total != 0 {
		t.Fatalf("unconfigured group must give an empty grid: %+v %v", empty, err)
	}

	var verr *ValidationError
	if _, err := avail.FreeStarts(ctx, FreeStartsQuery{Venue: "Quilicura", CourtType: "Padel", Court: "Cancha 7", Date: testDay}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAvailabilityService_Occupancy(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	registry := venue.DefaultRegistry()
	avail := NewAvailabilityService(
		repository.NewGormSlotRepository(db),
		repository.NewGormBookingRepository(db),
		registry,
		zap.NewNop(),
	)

	hour := 60
	bot := model.ChannelBot
	repo := repository.NewGormBookingRepository(db)
	seed := []struct {
		court  string
		status model.BookingStatus
	}{
		{"Cancha 1", model.BookingConfirmed},
		{"Cancha 2", model.BookingCompleted},
		{"Cancha 3", model.BookingCancelled},
	}
	for _, sd := range seed {
		err := repo.Create(ctx, &model.Booking{
			Venue: "Lo Prado", CourtType: "Futbolito", Court: sd.court,
			Date: testDay, Time: calendar.MustClock("18:00"), Duration: &hour,
			Status: sd.status, Channel: &bot, Source: "bot",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	active, err := avail.Occupancy(ctx, testDay, testDay, nil)
	if err != nil {
		t.Fatalf("occupancy: %v", err)
	}
	if active[0].Venue != "Lo Prado" || active[0].Occupied != 1 || active[0].Total != 36 {
		t.Fatalf("active occupancy = %+v", active[0])
	}

	held, err := avail.Occupancy(ctx, testDay, testDay, availability.Held)
	if err != nil {
		t.Fatalf("occupancy: %v", err)
	}
	if held[0].Occupied != 2 {
		t.Fatalf("held occupancy = %+v", held[0])
	}

	group, err := avail.GroupOccupancy(ctx, "Lo Prado", "Futbolito", testDay, testDay)
	if err != nil || group.Occupied != 1 || group.Total != 36 {
		t.Fatalf("group occupancy = %+v %v", group, err)
	}

	dead, err := avail.DeadHours(ctx, testDay, testDay, 5, nil)
	if err != nil || len(dead) != 5 {
		t.Fatalf("dead hours = %+v %v", dead, err)
	}
	for _, h := range dead {
		if h.Hour == calendar.MustClock("18:00") {
			t.Fatalf("the only used hour must not be dead: %+v", dead)
		}
	}
}

func TestAlertService_ListAndFlags(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alertRepo := repository.NewGormAlertRepository(db)
	clientRepo := repository.NewGormClientRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	svc := NewAlertService(alertRepo, clientRepo, bookingRepo, repository.NewGormEventRepository(db), time.UTC, zap.NewNop())

	if err := clientRepo.Create(ctx, &model.Client{SenderID: "56911112222", Name: model.NullString("Ana")}); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	b := &model.Booking{Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 1", Date: testDay, Time: calendar.MustClock("20:00"), Status: model.BookingPending, Source: "bot"}
	if err := bookingRepo.Create(ctx, b); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	seed := []*model.Alert{
		{Type: "escalamietno", SenderID: model.NullString("56911112222")},
		{Type: model.AlertEscalation, SenderID: model.NullString(unknownSender)},
		{Type: model.AlertBooking, BookingID: &b.ID},
	}
	for _, a := range seed {
		if err := alertRepo.Create(ctx, a); err != nil {
			t.Fatalf("seed alert: %v", err)
		}
	}

	escalations, err := svc.List(ctx, AlertQuery{Type: "escalamiento"})
	if err != nil || len(escalations) != 2 {
		t.Fatalf("escalations = %+v %v", escalations, err)
	}
	for _, a := range escalations {
		if a.Kind != model.AlertEscalation {
			t.Fatalf("kind = %s", a.Kind)
		}
		if model.StringValue(a.SenderID) == unknownSender && a.Client != nil {
			t.Fatalf("placeholder sender must not resolve a client")
		}
		if model.StringValue(a.SenderID) == "56911112222" && (a.Client == nil || model.StringValue(a.Client.Name) != "Ana") {
			t.Fatalf("client not attached: %+v", a)
		}
	}

	all, err := svc.List(ctx, AlertQuery{})
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %+v %v", all, err)
	}
	var withBooking *AlertView
	for i := range all {
		if all[i].BookingID != nil {
			withBooking = &all[i]
		}
	}
	if withBooking == nil || withBooking.Booking == nil || withBooking.Booking.ID != b.ID {
		t.Fatalf("booking not attached: %+v", withBooking)
	}

	if n, err := svc.MarkRead(ctx, []int64{seed[0].ID, seed[1].ID}); err != nil || n != 2 {
		t.Fatalf("mark read: n=%d err=%v", n, err)
	}
	unread, err := svc.CountUnread(ctx)
	if err != nil || unread != 1 {
		t.Fatalf("unread = %d %v", unread, err)
	}
	latest, err := svc.Latest(ctx, 5)
	if err != nil || len(latest) != 1 || latest[0].Type != model.AlertBooking {
		t.Fatalf("latest = %+v %v", latest, err)
	}

	if err := svc.Resolve(ctx, seed[2].ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := svc.Resolve(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	got, _ := alertRepo.GetByID(ctx, seed[2].ID)
	if !got.Resolved || !got.Read {
		t.Fatalf("resolved alert = %+v", got)
	}

	other := calendar.NewDate(2001, time.January, 1)
	none, err := svc.List(ctx, AlertQuery{Date: other})
	if err != nil || len(none) != 0 {
		t.Fatalf("date filter = %+v %v", none, err)
	}
}

func TestClientService_Conversations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clientRepo := repository.NewGormClientRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	svc := NewClientService(clientRepo, messageRepo, bookingRepo, zap.NewNop())

	wa := model.ClientWhatsApp
	ana := &model.Client{SenderID: "569111", Name: model.NullString("Ana Pérez"), Phone: model.NullString("+56911112222"), Channel: &wa}
	if err := clientRepo.Create(ctx, ana); err != nil {
		t.Fatalf("seed client: %v", err)
	}

	base := time.Date(2025, time.March, 8, 12, 0, 0, 0, time.UTC)
	text := func(s string) *string { return &s }
	inbound := []*model.RawMessage{
		{SenderID: "569111", Text: text("hola"), CreatedAt: base},
		{SenderID: "ig-7", Text: text("precio?"), CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, m := range inbound {
		if err := messageRepo.CreateInbound(ctx, m); err != nil {
			t.Fatalf("seed inbound: %v", err)
		}
	}
	outbound := []*model.Message{
		{SenderID: "569111", Direction: model.DirectionOutbound, Content: text("¿qué día?"), CreatedAt: base.Add(time.Minute)},
		{SenderID: "569111", Direction: model.DirectionOutbound, Content: text("listo"), CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, m := range outbound {
		if err := messageRepo.CreateOutbound(ctx, m); err != nil {
			t.Fatalf("seed outbound: %v", err)
		}
	}

	convs, err := svc.Conversations(ctx, "")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(convs) != 2 || convs[0].SenderID != "ig-7" {
		t.Fatalf("conversations = %+v", convs)
	}
	if c := convs[1]; c.MessageCount != 3 || c.LastMessage != "listo" || model.StringValue(c.Name) != "Ana Pérez" || model.StringValue(c.Channel) != "whatsapp" {
		t.Fatalf("ana's conversation = %+v", c)
	}

	found, err := svc.Conversations(ctx, "2222")
	if err != nil || len(found) != 1 || found[0].SenderID != "569111" {
		t.Fatalf("search by phone = %+v %v", found, err)
	}

	thread, err := svc.Thread(ctx, "569111")
	if err != nil || len(thread) != 3 {
		t.Fatalf("thread = %+v %v", thread, err)
	}
	if thread[0].Content != "hola" || thread[0].Direction != model.DirectionInbound || thread[0].Key != rawMessageKeyPrefix+inbound[0].ID {
		t.Fatalf("first thread message = %+v", thread[0])
	}
	if thread[2].Content != "listo" {
		t.Fatalf("thread not ascending: %+v", thread)
	}

	phone := "+56911112222"
	if err := bookingRepo.Create(ctx, &model.Booking{
		Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 1", Date: testDay,
		Time: calendar.MustClock("20:00"), Status: model.BookingPending, Source: "bot", ClientPhone: &phone,
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	detail, err := svc.Detail(ctx, ana.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.Messages) != 3 || detail.Messages[0].Content != "listo" || len(detail.Bookings) != 1 {
		t.Fatalf("detail = %+v", detail)
	}
	if _, err := svc.Detail(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDashboardService_Summary(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	registry := venue.DefaultRegistry()
	slotRepo := repository.NewGormSlotRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	alertRepo := repository.NewGormAlertRepository(db)

	avail := NewAvailabilityService(slotRepo, bookingRepo, registry, zap.NewNop())
	alerts := NewAlertService(alertRepo, repository.NewGormClientRepository(db), bookingRepo, repository.NewGormEventRepository(db), time.UTC, zap.NewNop())
	svc := NewDashboardService(avail, alerts, bookingRepo, messageRepo, time.UTC)
	svc.now = func() time.Time { return time.Date(2025, time.March, 8, 9, 0, 0, 0, time.UTC) }

	bot, sync := model.ChannelBot, model.ChannelEasyCancha
	seed := []*model.Booking{
		{Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 1", Date: testDay, Time: calendar.MustClock("19:00"), Status: model.BookingConfirmed, Channel: &bot, Source: "bot"},
		{Venue: "Quilicura", CourtType: "Futbolito", Court: "Cancha 1", Date: testDay, Time: calendar.MustClock("20:00"), Status: model.BookingCancelled, Channel: &sync, Source: "easycancha"},
		{Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 2", Date: testDay.AddDays(1), Time: calendar.MustClock("21:00"), Status: model.BookingPending, Channel: &bot, Source: "bot"},
	}
	for _, b := range seed {
		if err := bookingRepo.Create(ctx, b); err != nil {
			t.Fatalf("seed booking: %v", err)
		}
	}
	if err := messageRepo.CreateOutbound(ctx, &model.Message{SenderID: "x", Direction: model.DirectionOutbound, CreatedAt: time.Date(2025, time.March, 8, 15, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	if err := alertRepo.Create(ctx, &model.Alert{Type: model.AlertError}); err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	sum, err := svc.Summary(ctx, testDay, testDay)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Bookings != 2 || sum.Cancelled != 1 || sum.FromBot != 1 || sum.FromSync != 1 {
		t.Fatalf("counts = %+v", sum)
	}
	if sum.Messages != 1 || sum.UnreadAlerts != 1 || len(sum.LatestAlerts) != 1 {
		t.Fatalf("messages/alerts = %d %d %d", sum.Messages, sum.UnreadAlerts, len(sum.LatestAlerts))
	}
	if len(sum.PerDay) != 2 || sum.PerDay[0].Venue != "Lo Prado" || sum.PerDay[0].Total != 1 {
		t.Fatalf("per day = %+v", sum.PerDay)
	}
	if len(sum.Occupancy) != 2 || sum.Occupancy[0].Occupied != 1 || sum.Occupancy[1].Occupied != 0 {
		t.Fatalf("occupancy = %+v", sum.Occupancy)
	}
	if len(sum.Upcoming) != 2 || sum.Upcoming[0].ID != seed[0].ID {
		t.Fatalf("upcoming = %+v", sum.Upcoming)
	}
	if len(sum.DeadHours) != 5 {
		t.Fatalf("dead hours = %+v", sum.DeadHours)
	}

	var verr *ValidationError
	if _, err := svc.Summary(ctx, calendar.Date{}, testDay); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
