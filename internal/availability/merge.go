// Package availability reconciles slot rows with bookings into one occupancy
// picture. Everything here is a pure function of its inputs: callers fetch
// rows, the engine never touches the store.
package availability

import (
	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/normalize"
	"github.com/canchallena/panel/internal/venue"
)

// Cell is one (time, court) entry of the occupancy map. Virtual cells are
// derived from a booking and never persisted.
type Cell struct {
	Time        calendar.Clock  `json:"hora"`
	Court       string          `json:"cancha"`
	State       model.SlotState `json:"estado"`
	SlotID      string          `json:"slot_id,omitempty"`
	BookingID   *int64          `json:"reserva_id,omitempty"`
	Virtual     bool            `json:"virtual"`
	Origin      string          `json:"origen,omitempty"`
	ClientName  string          `json:"cliente_nombre,omitempty"`
	ClientPhone string          `json:"cliente_telefono,omitempty"`
	ClientRUT   string          `json:"cliente_rut,omitempty"`
	ClientEmail string          `json:"cliente_email,omitempty"`
	Notes       string          `json:"notas,omitempty"`
}

func (c Cell) Key() model.CellKey {
	return model.CellKey{Time: c.Time, Court: c.Court}
}

func (c Cell) Available() bool {
	return c.State == "" || c.State == model.SlotAvailable
}

// Overlap records two active bookings resolving to the same cell. The later
// booking in merge order wins.
type Overlap struct {
	Key      model.CellKey
	Replaced int64
	Kept     int64
}

// Scope is the venue and court group a computation runs for. A nil Group
// means the combination is not configured: zero capacity, empty grid.
type Scope struct {
	Venue string
	Group *venue.CourtGroup
}

func (s Scope) slotMatches(sl *model.Slot) bool {
	return s.Group != nil &&
		normalize.Fold(sl.Venue) == normalize.Fold(s.Venue) &&
		normalize.SameType(sl.CourtType, s.Group.Type)
}

func (s Scope) bookingMatches(b *model.Booking) bool {
	return s.Group != nil &&
		normalize.Fold(b.Venue) == normalize.Fold(s.Venue) &&
		normalize.SameType(b.CourtType, s.Group.Type)
}

func (s Scope) inWindow(t calendar.Clock) bool {
	return t >= s.Group.Opens && t < s.Group.Closes
}

// Occupies decides which bookings hold cells. Active is the default.
type Occupies func(model.BookingStatus) bool

// Active holds cells for pending and confirmed bookings only.
func Active(s model.BookingStatus) bool { return s.Active() }

// Held also counts completed bookings. Historical KPIs use it.
func Held(s model.BookingStatus) bool {
	return s != model.BookingCancelled && s != model.BookingNoShow
}

// Expand returns the interval starts a booking occupies: floor(duration /
// interval) entries, at least one, interval minutes apart. Results may run
// past midnight; use Clock.Wrap to place them on the next date.
func Expand(start calendar.Clock, duration, interval int) []calendar.Clock {
	if interval <= 0 {
		return []calendar.Clock{start}
	}
	n := duration / interval
	if n < 1 {
		n = 1
	}
	out := make([]calendar.Clock, n)
	for i := range out {
		out[i] = start.Add(i * interval)
	}
	return out
}

// dayIndex buckets rows by date so per-day merges stay linear over a range.
type dayIndex struct {
	slots    map[calendar.Date][]*model.Slot
	bookings map[calendar.Date][]*model.Booking
}

func indexRows(scope Scope, slots []model.Slot, bookings []model.Booking, occupies Occupies) dayIndex {
	idx := dayIndex{
		slots:    make(map[calendar.Date][]*model.Slot),
		bookings: make(map[calendar.Date][]*model.Booking),
	}
	if scope.Group == nil {
		return idx
	}
	for i := range slots {
		sl := &slots[i]
		if scope.slotMatches(sl) {
			idx.slots[sl.Date] = append(idx.slots[sl.Date], sl)
		}
	}
	for i := range bookings {
		b := &bookings[i]
		if occupies(b.Status) && scope.bookingMatches(b) {
			idx.bookings[b.Date] = append(idx.bookings[b.Date], b)
		}
	}
	return idx
}

// mergeDay builds the occupancy map of one date: slot rows are seeded as is,
// then every occupying booking (from this date or spilling over from the
// previous one) fills cells that have no row or an available row.
func mergeDay(scope Scope, date calendar.Date, idx dayIndex) (map[model.CellKey]Cell, []Overlap) {
	cells := make(map[model.CellKey]Cell)
	if scope.Group == nil {
		return cells, nil
	}

	for _, sl := range idx.slots[date] {
		c := slotCell(sl)
		cells[c.Key()] = c
	}

	var overlaps []Overlap
	interval := scope.Group.Interval
	candidates := append(append([]*model.Booking(nil), idx.bookings[date.AddDays(-1)]...), idx.bookings[date]...)
	for _, b := range candidates {
		court := normalize.Court(b.Court)
		for _, start := range Expand(b.Time, b.Minutes(interval), interval) {
			at, days := start.Wrap()
			if b.Date.AddDays(days) != date || !scope.inWindow(at) {
				continue
			}
			key := model.CellKey{Time: at, Court: court}
			existing, ok := cells[key]
			if ok && !existing.Virtual && !existing.Available() {
				continue
			}
			if ok && existing.Virtual && existing.BookingID != nil && *existing.BookingID != b.ID {
				overlaps = append(overlaps, Overlap{Key: key, Replaced: *existing.BookingID, Kept: b.ID})
			}
			cells[key] = bookingCell(b, key)
		}
	}
	return cells, overlaps
}

func slotCell(sl *model.Slot) Cell {
	c := Cell{
		Time:        sl.Time,
		Court:       normalize.Court(sl.Court),
		State:       sl.State,
		SlotID:      sl.ID,
		BookingID:   sl.BookingID,
		ClientName:  model.StringValue(sl.ClientName),
		ClientPhone: model.StringValue(sl.ClientPhone),
		ClientRUT:   model.StringValue(sl.ClientRUT),
		ClientEmail: model.StringValue(sl.ClientEmail),
		Notes:       model.StringValue(sl.Notes),
	}
	if sl.Origin != nil {
		c.Origin = string(*sl.Origin)
	}
	if c.State == "" {
		c.State = model.SlotAvailable
	}
	return c
}

func bookingCell(b *model.Booking, key model.CellKey) Cell {
	id := b.ID
	c := Cell{
		Time:        key.Time,
		Court:       key.Court,
		State:       model.SlotBooked,
		BookingID:   &id,
		Virtual:     true,
		Origin:      b.Source,
		ClientName:  model.StringValue(b.ClientName),
		ClientPhone: model.StringValue(b.ClientPhone),
		ClientRUT:   model.StringValue(b.ClientRUT),
		ClientEmail: model.StringValue(b.ClientEmail),
		Notes:       model.StringValue(b.Notes),
	}
	if b.Channel != nil {
		c.Origin = string(*b.Channel)
	}
	return c
}
