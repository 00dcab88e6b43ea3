package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/venue"
)

const day = "2025-03-08"

// testScope is venue "A": 2 courts, 60 minute interval, open 09:00-11:00.
func testScope() Scope {
	return Scope{
		Venue: "A",
		Group: &venue.CourtGroup{
			Type:     "Futbolito",
			Courts:   []string{"Cancha 1", "Cancha 2"},
			Opens:    calendar.MustClock("09:00"),
			Closes:   calendar.MustClock("11:00"),
			Interval: 60,
		},
	}
}

func date(t *testing.T, s string) calendar.Date {
	t.Helper()
	d, err := calendar.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func booking(t *testing.T, id int64, court, on, at string, duration int) model.Booking {
	t.Helper()
	b := model.Booking{
		ID:        id,
		Venue:     "A",
		CourtType: "Futbolito",
		Court:     court,
		Date:      date(t, on),
		Time:      calendar.MustClock(at),
		Status:    model.BookingConfirmed,
		Source:    "bot",
	}
	if duration > 0 {
		b.Duration = &duration
	}
	return b
}

func slot(t *testing.T, court, on, at string, state model.SlotState) model.Slot {
	t.Helper()
	return model.Slot{
		ID:        court + "@" + at,
		Venue:     "A",
		CourtType: "Futbolito",
		Court:     court,
		Date:      date(t, on),
		Time:      calendar.MustClock(at),
		Duration:  60,
		State:     state,
	}
}

func at(s string) calendar.Clock { return calendar.MustClock(s) }

func linkedTo(c Cell, id int64) bool {
	return c.BookingID != nil && *c.BookingID == id
}

//
// Expand
//

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		interval int
		want     []string
	}{
		{"single interval", 60, 60, []string{"09:00"}},
		{"two intervals", 120, 60, []string{"09:00", "10:00"}},
		{"zero duration", 0, 60, []string{"09:00"}},
		{"shorter than interval", 30, 60, []string{"09:00"}},
		{"rounded down", 90, 60, []string{"09:00"}},
		{"padel ninety", 90, 30, []string{"09:00", "09:30", "10:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(at("09:00"), tt.duration, tt.interval)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != at(tt.want[i]) {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

//
// Grid scenarios
//

func TestBuildGrid_SingleVirtualBooking(t *testing.T) {
	g := BuildGrid(testScope(), date(t, day), nil, []model.Booking{
		booking(t, 1, "Cancha 1", day, "09:00", 60),
	})

	c := g.Cell(at("09:00"), "Cancha 1")
	if c.State != model.SlotBooked || !c.Virtual || !linkedTo(c, 1) {
		t.Fatalf("court 1 @09:00 = %+v", c)
	}
	for _, k := range []struct{ time, court string }{
		{"10:00", "Cancha 1"},
		{"09:00", "Cancha 2"},
		{"10:00", "Cancha 2"},
	} {
		if c := g.Cell(at(k.time), k.court); !c.Available() {
			t.Fatalf("%s @%s should be available, got %+v", k.court, k.time, c)
		}
	}
	if n := len(g.Entries()); n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}
}

func TestBuildGrid_TwoIntervalBooking(t *testing.T) {
	g := BuildGrid(testScope(), date(t, day), nil, []model.Booking{
		booking(t, 2, "Cancha 2", day, "09:00", 120),
	})
	for _, tm := range []string{"09:00", "10:00"} {
		c := g.Cell(at(tm), "Cancha 2")
		if c.State != model.SlotBooked || !linkedTo(c, 2) {
			t.Fatalf("court 2 @%s = %+v", tm, c)
		}
	}
	stats := g.Stats()
	if stats.Booked != 2 || stats.Total != 4 || stats.Percentage != 50 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestBuildGrid_BlockedRowWins(t *testing.T) {
	slots := []model.Slot{slot(t, "Cancha 1", day, "09:00", model.SlotBlocked)}
	bookings := []model.Booking{booking(t, 3, "Cancha 1", day, "09:00", 60)}

	g := BuildGrid(testScope(), date(t, day), slots, bookings)
	c := g.Cell(at("09:00"), "Cancha 1")
	if c.State != model.SlotBlocked || c.Virtual {
		t.Fatalf("expected explicit blocked row, got %+v", c)
	}
}

func TestBuildGrid_BookedRowWins(t *testing.T) {
	row := slot(t, "Cancha 1", day, "09:00", model.SlotBooked)
	owner := int64(10)
	row.BookingID = &owner

	g := BuildGrid(testScope(), date(t, day), []model.Slot{row}, []model.Booking{
		booking(t, 11, "cancha1", day, "09:00", 60),
	})
	c := g.Cell(at("09:00"), "Cancha 1")
	if c.Virtual || !linkedTo(c, 10) {
		t.Fatalf("explicit booked row was overridden: %+v", c)
	}
}

func TestBuildGrid_AvailableRowIsOverridden(t *testing.T) {
	slots := []model.Slot{slot(t, "Cancha 2", day, "10:00", model.SlotAvailable)}
	g := BuildGrid(testScope(), date(t, day), slots, []model.Booking{
		booking(t, 4, "2", day, "10:00", 60),
	})
	c := g.Cell(at("10:00"), "Cancha 2")
	if c.State != model.SlotBooked || !c.Virtual || !linkedTo(c, 4) {
		t.Fatalf("stale available row must yield a virtual booked cell, got %+v", c)
	}
	if n := len(g.Entries()); n != 1 {
		t.Fatalf("expected one entry for the key, got %d", n)
	}
}

func TestBuildGrid_IgnoresInactiveAndForeignRows(t *testing.T) {
	cancelled := booking(t, 5, "Cancha 1", day, "09:00", 60)
	cancelled.Status = model.BookingCancelled
	noShow := booking(t, 6, "Cancha 2", day, "09:00", 60)
	noShow.Status = model.BookingNoShow
	otherVenue := booking(t, 7, "Cancha 1", day, "10:00", 60)
	otherVenue.Venue = "B"
	otherType := booking(t, 8, "Cancha 2", day, "10:00", 60)
	otherType.CourtType = "Padel"
	otherDay := booking(t, 9, "Cancha 2", "2025-03-09", "10:00", 60)

	g := BuildGrid(testScope(), date(t, day), nil, []model.Booking{cancelled, noShow, otherVenue, otherType, otherDay})
	if n := len(g.Entries()); n != 0 {
		t.Fatalf("expected empty grid, got %+v", g.Entries())
	}
}

func TestBuildGrid_AccentVariantType(t *testing.T) {
	b := booking(t, 12, "Cancha 1", day, "10:00", 60)
	b.CourtType = "Fútbolito"
	g := BuildGrid(testScope(), date(t, day), nil, []model.Booking{b})
	if c := g.Cell(at("10:00"), "Cancha 1"); !linkedTo(c, 12) {
		t.Fatalf("accent variant not matched: %+v", c)
	}
}

func TestBuildGrid_ExplicitRowsWinRegardlessOfOrder(t *testing.T) {
	blocked := slot(t, "Cancha 1", day, "10:00", model.SlotBlocked)
	b := booking(t, 13, "Cancha 1", day, "09:00", 120)

	orders := [][]model.Slot{
		{blocked, slot(t, "Cancha 2", day, "09:00", model.SlotAvailable)},
		{slot(t, "Cancha 2", day, "09:00", model.SlotAvailable), blocked},
	}
	for _, slots := range orders {
		g := BuildGrid(testScope(), date(t, day), slots, []model.Booking{b})
		if c := g.Cell(at("10:00"), "Cancha 1"); c.State != model.SlotBlocked {
			t.Fatalf("blocked row overridden: %+v", c)
		}
		if c := g.Cell(at("09:00"), "Cancha 1"); !linkedTo(c, 13) {
			t.Fatalf("first interval not materialized: %+v", c)
		}
	}
}

func TestBuildGrid_OneEntryPerImplicatedKey(t *testing.T) {
	slots := []model.Slot{
		slot(t, "Cancha 1", day, "09:00", model.SlotBlocked),
		slot(t, "Cancha 2", day, "09:00", model.SlotAvailable),
	}
	bookings := []model.Booking{
		booking(t, 20, "Cancha 1", day, "10:00", 60),
		booking(t, 21, "Cancha 2", day, "09:00", 120),
	}
	g := BuildGrid(testScope(), date(t, day), slots, bookings)

	seen := map[model.CellKey]int{}
	for _, c := range g.Entries() {
		seen[c.Key()]++
	}
	want := []model.CellKey{
		{Time: at("09:00"), Court: "Cancha 1"},
		{Time: at("10:00"), Court: "Cancha 1"},
		{Time: at("09:00"), Court: "Cancha 2"},
		{Time: at("10:00"), Court: "Cancha 2"},
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), seen)
	}
	for _, k := range want {
		if seen[k] != 1 {
			t.Fatalf("key %+v represented %d times", k, seen[k])
		}
	}
	if len(g.Overlaps) != 0 {
		t.Fatalf("unexpected overlaps %+v", g.Overlaps)
	}
}

func TestBuildGrid_DoubleBookingLastWriteWins(t *testing.T) {
	g := BuildGrid(testScope(), date(t, day), nil, []model.Booking{
		booking(t, 30, "Cancha 1", day, "09:00", 60),
		booking(t, 31, "Cancha 1", day, "09:00", 60),
	})
	if c := g.Cell(at("09:00"), "Cancha 1"); !linkedTo(c, 31) {
		t.Fatalf("expected last booking to win, got %+v", c)
	}
	if len(g.Overlaps) != 1 || g.Overlaps[0].Replaced != 30 || g.Overlaps[0].Kept != 31 {
		t.Fatalf("overlaps = %+v", g.Overlaps)
	}
}

func TestBuildGrid_OutsideWindowNotMaterialized(t *testing.T) {
	g := BuildGrid(testScope(), date(t, day), nil, []model.Booking{
		booking(t, 40, "Cancha 1", day, "10:00", 120),
	})
	entries := g.Entries()
	if len(entries) != 1 || entries[0].Time != at("10:00") {
		t.Fatalf("expected only 10:00 materialized, got %+v", entries)
	}
}

func TestBuildGrid_SpilloverIntoNextDay(t *testing.T) {
	scope := Scope{
		Venue: "A",
		Group: &venue.CourtGroup{
			Type:     "Futbolito",
			Courts:   []string{"Cancha 1"},
			Opens:    at("00:00"),
			Closes:   at("24:00"),
			Interval: 60,
		},
	}
	late := booking(t, 50, "Cancha 1", "2025-03-07", "23:00", 120)

	prev := BuildGrid(scope, date(t, "2025-03-07"), nil, []model.Booking{late})
	if c := prev.Cell(at("23:00"), "Cancha 1"); !linkedTo(c, 50) {
		t.Fatalf("23:00 on booking date = %+v", c)
	}
	if n := len(prev.Entries()); n != 1 {
		t.Fatalf("spillover leaked into booking date: %+v", prev.Entries())
	}

	next := BuildGrid(scope, date(t, "2025-03-08"), nil, []model.Booking{late})
	if c := next.Cell(at("00:00"), "Cancha 1"); !linkedTo(c, 50) {
		t.Fatalf("00:00 on next date = %+v", c)
	}
}

func TestBuildGrid_NoGroup(t *testing.T) {
	g := BuildGrid(Scope{Venue: "A"}, date(t, day), nil, []model.Booking{booking(t, 1, "Cancha 1", day, "09:00", 60)})
	if len(g.Rows()) != 0 || len(g.Entries()) != 0 {
		t.Fatalf("expected empty grid")
	}
	if s := g.Stats(); s.Total != 0 || s.Percentage != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if _, err := g.Required("Cancha 1", at("09:00"), 60); !errors.Is(err, ErrNoGroup) {
		t.Fatalf("expected ErrNoGroup, got %v", err)
	}
}

func TestGrid_Rows(t *testing.T) {
	g := BuildGrid(testScope(), date(t, day), nil, []model.Booking{
		booking(t, 1, "Cancha 2", day, "10:00", 60),
	})
	rows := g.Rows()
	if len(rows) != 2 || len(rows[1].Cells) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if !linkedTo(rows[1].Cells[1], 1) || !rows[0].Cells[0].Available() {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestGrid_RequiredAndFreeStarts(t *testing.T) {
	g := BuildGrid(testScope(), date(t, day), nil, []model.Booking{
		booking(t, 1, "Cancha 1", day, "09:00", 60),
	})

	if got := FreeStarts(g, "Cancha 1", 60); len(got) != 1 || got[0] != at("10:00") {
		t.Fatalf("free starts court 1 = %v", got)
	}
	if got := FreeStarts(g, "Cancha 2", 120); len(got) != 1 || got[0] != at("09:00") {
		t.Fatalf("free starts court 2 = %v", got)
	}
	if got := FreeStarts(g, "Cancha 1", 120); len(got) != 0 {
		t.Fatalf("no two-hour run fits court 1, got %v", got)
	}

	if _, err := g.Required("Cancha 2", at("10:00"), 120); !errors.Is(err, ErrOutsideWindow) {
		t.Fatalf("expected ErrOutsideWindow, got %v", err)
	}
	if _, err := g.Required("Cancha 9", at("09:00"), 60); !errors.Is(err, ErrUnknownCourt) {
		t.Fatalf("expected ErrUnknownCourt, got %v", err)
	}
	cells, err := g.Required("1", at("09:00"), 60)
	if err != nil || len(cells) != 1 || cells[0].Available() {
		t.Fatalf("required = %+v, %v", cells, err)
	}
}

func TestGrid_IsCurrent(t *testing.T) {
	g := BuildGrid(testScope(), date(t, day), nil, nil)
	now := time.Date(2025, time.March, 8, 9, 45, 0, 0, time.UTC)
	if !g.IsCurrent(at("09:00"), now) {
		t.Fatalf("09:45 is inside the 09:00 interval")
	}
	if g.IsCurrent(at("10:00"), now) {
		t.Fatalf("09:45 is not inside the 10:00 interval")
	}
	if g.IsCurrent(at("09:00"), now.AddDate(0, 0, 1)) {
		t.Fatalf("other dates are never current")
	}
}
