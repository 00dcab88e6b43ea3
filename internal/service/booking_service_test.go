package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/repository"
	"github.com/canchallena/panel/internal/venue"
)

var testDay = calendar.NewDate(2025, time.March, 8)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newBookingService(t *testing.T) (*BookingService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewBookingService(db, venue.DefaultRegistry(), zap.NewNop()), db
}

func padelInput(at string, duration int) BookingInput {
	return BookingInput{
		Venue:       "Quilicura",
		CourtType:   "Pádel",
		Court:       "2",
		Date:        testDay,
		Time:        calendar.MustClock(at),
		Duration:    duration,
		ClientName:  "Ana Pérez",
		ClientPhone: "+56911112222",
	}
}

func slotsOf(t *testing.T, db *gorm.DB, bookingID int64) []model.Slot {
	t.Helper()
	rows, err := repository.NewGormSlotRepository(db).ListByBooking(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	return rows
}

func countRows(t *testing.T, db *gorm.DB, table any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(table).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestBookingService_PlaceClaimsEveryInterval(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)

	b, err := svc.Place(ctx, padelInput("20:00", 90))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if b.Status != model.BookingPending || b.Channel == nil || *b.Channel != model.ChannelDashboard {
		t.Fatalf("unexpected booking defaults: %+v", b)
	}
	if b.CourtType != "Padel" || b.Court != "Cancha 2" {
		t.Fatalf("input not normalized: %s %s", b.CourtType, b.Court)
	}

	rows := slotsOf(t, db, b.ID)
	if len(rows) != 3 {
		t.Fatalf("expected 3 claimed intervals, got %d", len(rows))
	}
	want := []string{"20:00", "20:30", "21:00"}
	for i, r := range rows {
		if r.Time.String() != want[i] || r.State != model.SlotBooked || model.StringValue(r.ClientName) != "Ana Pérez" {
			t.Fatalf("row %d = %+v", i, r)
		}
	}

	var events int64
	db.Model(&model.Event{}).Where("reserva_id = ? AND event_type = ?", b.ID, model.EventBookingCreated).Count(&events)
	if events != 1 {
		t.Fatalf("expected one audit event, got %d", events)
	}
}

func TestBookingService_PlaceConflicts(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)

	if _, err := svc.Place(ctx, padelInput("20:00", 60)); err != nil {
		t.Fatalf("first place: %v", err)
	}

	_, err := svc.Place(ctx, padelInput("19:30", 60))
	var conflict *ConflictError
	if !errors.As(err, &conflict) || !errors.Is(err, ErrSlotUnavailable) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(conflict.Times) != 1 || conflict.Times[0].String() != "20:00" {
		t.Fatalf("conflict times = %v", conflict.Times)
	}
	if n := countRows(t, db, &model.Booking{}); n != 1 {
		t.Fatalf("rejected booking must not be stored, have %d", n)
	}

	// A bot booking without slot rows still holds its cells.
	bot := model.ChannelBot
	duration := 60
	err = repository.NewGormBookingRepository(db).Create(ctx, &model.Booking{
		Venue: "Quilicura", CourtType: "Padel", Court: "Cancha 2",
		Date: testDay, Time: calendar.MustClock("10:00"), Duration: &duration,
		Status: model.BookingConfirmed, Channel: &bot, Source: "bot",
	})
	if err != nil {
		t.Fatalf("seed bot booking: %v", err)
	}
	if _, err := svc.Place(ctx, padelInput("10:30", 60)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected conflict with bot booking, got %v", err)
	}

	// Blocked rows are never claimed.
	_, err = svc.Block(ctx, BlockInput{
		Venue: "Quilicura", CourtType: "Padel", Court: "Cancha 2",
		Date: testDay, Time: calendar.MustClock("12:00"), Reason: "mantención",
	})
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := svc.Place(ctx, padelInput("11:30", 60)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected conflict with blocked cell, got %v", err)
	}
}

func TestBookingService_PlaceReusesAvailableRows(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)
	slots := repository.NewGormSlotRepository(db)

	free := &model.Slot{
		Venue: "Quilicura", CourtType: "Padel", Court: "Cancha 2",
		Date: testDay, Time: calendar.MustClock("20:00"), Duration: 30,
		State: model.SlotAvailable,
	}
	if err := slots.Create(ctx, free); err != nil {
		t.Fatalf("seed slot: %v", err)
	}

	b, err := svc.Place(ctx, padelInput("20:00", 60))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	got, err := slots.GetByID(ctx, free.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != model.SlotBooked || got.BookingID == nil || *got.BookingID != b.ID {
		t.Fatalf("existing row not claimed: %+v", got)
	}
	if n := countRows(t, db, &model.Slot{}); n != 2 {
		t.Fatalf("expected 2 slot rows, got %d", n)
	}
}

func TestBookingService_PlaceValidation(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)

	cases := []struct {
		name  string
		input BookingInput
		field string
	}{
		{"short name", func() BookingInput { in := padelInput("20:00", 60); in.ClientName = "A"; return in }(), "nombre_cliente"},
		{"short phone", func() BookingInput { in := padelInput("20:00", 60); in.ClientPhone = "1234"; return in }(), "telefono_cliente"},
		{"unknown court", func() BookingInput { in := padelInput("20:00", 60); in.Court = "Cancha 9"; return in }(), "cancha"},
		{"unknown venue", func() BookingInput { in := padelInput("20:00", 60); in.Venue = "Maipú"; return in }(), "centro"},
		{"missing type", func() BookingInput { in := padelInput("20:00", 60); in.CourtType = ""; return in }(), "tipo_cancha"},
		{"no padel at lo prado", func() BookingInput { in := padelInput("20:00", 60); in.Venue = "Lo Prado"; return in }(), "tipo_cancha"},
		{"bad duration", padelInput("20:00", 45), "duracion"},
		{"outside hours", padelInput("07:00", 60), "hora"},
		{"runs past closing", padelInput("23:30", 60), "hora"},
		{"missing date", func() BookingInput { in := padelInput("20:00", 60); in.Date = calendar.Date{}; return in }(), "fecha"},
	}
	for _, tc := range cases {
		_, err := svc.Place(ctx, tc.input)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.name, verr.Field, tc.field)
		}
	}
	if n := countRows(t, db, &model.Booking{}); n != 0 {
		t.Fatalf("validation failures must not write, have %d bookings", n)
	}
}

func TestBookingService_EditMovesSlots(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)

	b, err := svc.Place(ctx, padelInput("20:00", 60))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	// Same cells, new name: own slots do not conflict.
	in := padelInput("20:00", 60)
	in.ClientName = "Ana María"
	if _, err := svc.Edit(ctx, b.ID, in); err != nil {
		t.Fatalf("edit in place: %v", err)
	}
	rows := slotsOf(t, db, b.ID)
	if len(rows) != 2 || model.StringValue(rows[0].ClientName) != "Ana María" {
		t.Fatalf("rows after rename = %+v", rows)
	}

	moved, err := svc.Edit(ctx, b.ID, padelInput("20:30", 90))
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Time.String() != "20:30" || moved.Duration == nil || *moved.Duration != 90 {
		t.Fatalf("booking after move = %+v", moved)
	}
	rows = slotsOf(t, db, b.ID)
	if len(rows) != 3 || rows[0].Time.String() != "20:30" {
		t.Fatalf("rows after move = %+v", rows)
	}

	old, err := repository.NewGormSlotRepository(db).ListAt(ctx, "Quilicura", "Cancha 2", testDay,
		[]calendar.Clock{calendar.MustClock("20:00")})
	if err != nil || len(old) != 1 || old[0].State != model.SlotAvailable {
		t.Fatalf("old cell not released: %+v %v", old, err)
	}
}

func TestBookingService_EditConflictKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)

	mine, err := svc.Place(ctx, padelInput("18:00", 60))
	if err != nil {
		t.Fatalf("place mine: %v", err)
	}
	other := padelInput("20:00", 60)
	other.ClientName = "Luis"
	if _, err := svc.Place(ctx, other); err != nil {
		t.Fatalf("place other: %v", err)
	}

	if _, err := svc.Edit(ctx, mine.ID, padelInput("19:30", 60)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := svc.Get(ctx, mine.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Time.String() != "18:00" {
		t.Fatalf("booking changed despite conflict: %+v", got)
	}
	if rows := slotsOf(t, db, mine.ID); len(rows) != 2 || rows[0].Time.String() != "18:00" {
		t.Fatalf("slots not restored: %+v", rows)
	}

	if _, err := svc.Edit(ctx, 9999, padelInput("10:00", 60)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookingService_CancelAndStatus(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)

	b, err := svc.Place(ctx, padelInput("20:00", 60))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := svc.SetStatus(ctx, b.ID, model.BookingConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := svc.SetStatus(ctx, b.ID, "borrada"); err == nil {
		t.Fatalf("expected validation error for unknown status")
	}

	if err := svc.SetStatus(ctx, b.ID, model.BookingCancelled); err != nil {
		t.Fatalf("cancel via status: %v", err)
	}
	got, _ := svc.Get(ctx, b.ID)
	if got.Status != model.BookingCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if rows := slotsOf(t, db, b.ID); len(rows) != 0 {
		t.Fatalf("slots still held: %+v", rows)
	}

	// The freed cells can be booked again.
	if _, err := svc.Place(ctx, padelInput("20:00", 60)); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}

	var verr *ValidationError
	if err := svc.SetStatus(ctx, b.ID, model.BookingConfirmed); !errors.As(err, &verr) {
		t.Fatalf("reactivating a cancelled booking must fail, got %v", err)
	}
	if err := svc.Cancel(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookingService_BlockAndUnblock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBookingService(t)

	in := BlockInput{
		Venue: "lo prado", CourtType: "futbolito", Court: "cancha3",
		Date: testDay, Time: calendar.MustClock("21:00"), Reason: "riego",
	}
	slot, err := svc.Block(ctx, in)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if slot.State != model.SlotBlocked || slot.Venue != "Lo Prado" || slot.Court != "Cancha 3" || model.StringValue(slot.Notes) != "riego" {
		t.Fatalf("blocked slot = %+v", slot)
	}
	in.Reason = "mantención"
	twice, err := svc.Block(ctx, in)
	if err != nil || twice.ID != slot.ID || model.StringValue(twice.Notes) != "mantención" {
		t.Fatalf("second block must update the row: %+v %v", twice, err)
	}

	if err := svc.Unblock(ctx, slot.ID); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if err := svc.Unblock(ctx, slot.ID); !errors.Is(err, ErrNotBlocked) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected not blocked, got %v", err)
	}
	if err := svc.Unblock(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// The unblocked row is reused by the next block.
	again, err := svc.Block(ctx, in)
	if err != nil || again.ID != slot.ID {
		t.Fatalf("reblock = %+v %v", again, err)
	}

	in.Time = calendar.MustClock("23:00")
	var verr *ValidationError
	if _, err := svc.Block(ctx, in); !errors.As(err, &verr) {
		t.Fatalf("blocking after closing must fail validation, got %v", err)
	}
}

func TestBookingService_BlockBookedCell(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)

	// A bot booking without slot rows shows the cell as booked.
	hour := 60
	bot := model.ChannelBot
	booking := &model.Booking{
		Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 1",
		Date: testDay, Time: calendar.MustClock("20:00"), Duration: &hour,
		Status: model.BookingConfirmed, Channel: &bot, Source: "bot",
	}
	if err := repository.NewGormBookingRepository(db).Create(ctx, booking); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	in := BlockInput{
		Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 1",
		Date: testDay, Time: calendar.MustClock("20:00"), Reason: "torneo",
	}
	slot, err := svc.Block(ctx, in)
	if err != nil {
		t.Fatalf("block over virtual booking: %v", err)
	}
	if slot.State != model.SlotBlocked || slot.Time != calendar.MustClock("20:00") {
		t.Fatalf("blocked slot = %+v", slot)
	}

	// A claimed slot row is switched to blocked in place.
	placed, err := svc.Place(ctx, padelInput("19:00", 60))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	claimed := slotsOf(t, db, placed.ID)
	if len(claimed) == 0 {
		t.Fatalf("no slot rows for booking %d", placed.ID)
	}
	got, err := svc.Block(ctx, BlockInput{
		Venue: "Quilicura", CourtType: "Pádel", Court: "2",
		Date: testDay, Time: claimed[0].Time,
	})
	if err != nil {
		t.Fatalf("block booked row: %v", err)
	}
	if got.ID != claimed[0].ID || got.State != model.SlotBlocked {
		t.Fatalf("blocked row = %+v, want id %s", got, claimed[0].ID)
	}
}

func TestBookingService_CompleteFinished(t *testing.T) {
	ctx := context.Background()
	svc, db := newBookingService(t)
	repo := repository.NewGormBookingRepository(db)

	yesterday := testDay.AddDays(-1)
	hour, ninety := 60, 90
	seed := []*model.Booking{
		{Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 1", Date: yesterday, Time: calendar.MustClock("20:00"), Duration: &hour, Status: model.BookingConfirmed, Source: "bot"},
		{Venue: "Quilicura", CourtType: "Padel", Court: "Cancha 1", Date: yesterday, Time: calendar.MustClock("23:30"), Duration: &ninety, Status: model.BookingPending, Source: "bot"},
		{Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 1", Date: testDay, Time: calendar.MustClock("10:00"), Status: model.BookingConfirmed, Source: "bot"},
		{Venue: "Lo Prado", CourtType: "Futbolito", Court: "Cancha 2", Date: yesterday.AddDays(-1), Time: calendar.MustClock("10:00"), Status: model.BookingCancelled, Source: "bot"},
	}
	for _, b := range seed {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := svc.CompleteFinished(ctx, testDay)
	if err != nil || n != 1 {
		t.Fatalf("complete: n=%d err=%v", n, err)
	}
	want := []model.BookingStatus{model.BookingCompleted, model.BookingPending, model.BookingConfirmed, model.BookingCancelled}
	for i, b := range seed {
		got, _ := repo.GetByID(ctx, b.ID)
		if got.Status != want[i] {
			t.Fatalf("booking %d status = %s, want %s", i, got.Status, want[i])
		}
	}
}

func TestBookingService_List(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBookingService(t)

	for _, at := range []string{"18:00", "19:00", "20:00"} {
		if _, err := svc.Place(ctx, padelInput(at, 60)); err != nil {
			t.Fatalf("place %s: %v", at, err)
		}
	}
	page, err := svc.List(ctx, repository.BookingFilter{Venue: "quilicura", From: testDay, To: testDay}, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || !page.HasNext || page.Items[0].Time.String() != "18:00" {
		t.Fatalf("page = %+v", page)
	}

	var verr *ValidationError
	if _, err := svc.List(ctx, repository.BookingFilter{From: testDay, To: testDay.AddDays(-1)}, 1, 10); !errors.As(err, &verr) {
		t.Fatalf("reversed range must fail validation, got %v", err)
	}
}
