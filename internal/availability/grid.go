package availability

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/normalize"
)

var (
	ErrNoGroup       = errors.New("court group not configured")
	ErrUnknownCourt  = errors.New("court not in group")
	ErrOutsideWindow = errors.New("booking does not fit the operating window")
	ErrInvalidLength = errors.New("duration must be positive")
)

// Grid is the reconciled single-day view of one court group.
type Grid struct {
	Venue     string
	CourtType string
	Date      calendar.Date
	Interval  int
	Times     []calendar.Clock
	Courts    []string
	Overlaps  []Overlap

	cells map[model.CellKey]Cell
}

// BuildGrid merges slot rows and bookings for one date. Inputs may be broader
// than needed; rows of other venues, types, dates or inactive bookings are
// ignored. Bookings from the previous date are taken into account when their
// intervals spill past midnight.
func BuildGrid(scope Scope, date calendar.Date, slots []model.Slot, bookings []model.Booking) *Grid {
	return buildGrid(scope, date, indexRows(scope, slots, bookings, Active))
}

func buildGrid(scope Scope, date calendar.Date, idx dayIndex) *Grid {
	g := &Grid{Venue: scope.Venue, Date: date}
	if scope.Group == nil {
		g.cells = map[model.CellKey]Cell{}
		return g
	}
	g.CourtType = scope.Group.Type
	g.Interval = scope.Group.Interval
	g.Times = scope.Group.Times()
	g.Courts = append([]string(nil), scope.Group.Courts...)
	g.cells, g.Overlaps = mergeDay(scope, date, idx)
	return g
}

// Cell returns the cell at (t, court); cells without an entry are available.
func (g *Grid) Cell(t calendar.Clock, court string) Cell {
	court = normalize.Court(court)
	if c, ok := g.cells[model.CellKey{Time: t, Court: court}]; ok {
		return c
	}
	return Cell{Time: t, Court: court, State: model.SlotAvailable}
}

// Entries returns every explicit or virtual cell, ordered by time and court.
// Cells outside the configured courts or times are included.
func (g *Grid) Entries() []Cell {
	order := make(map[string]int, len(g.Courts))
	for i, c := range g.Courts {
		order[c] = i
	}
	out := make([]Cell, 0, len(g.cells))
	for _, c := range g.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		oi, iok := order[out[i].Court]
		oj, jok := order[out[j].Court]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return out[i].Court < out[j].Court
		}
	})
	return out
}

type Row struct {
	Time  calendar.Clock `json:"hora"`
	Cells []Cell         `json:"celdas"`
}

// Rows returns the full grid: one row per interval start, one cell per court.
func (g *Grid) Rows() []Row {
	rows := make([]Row, 0, len(g.Times))
	for _, t := range g.Times {
		row := Row{Time: t, Cells: make([]Cell, 0, len(g.Courts))}
		for _, court := range g.Courts {
			row.Cells = append(row.Cells, g.Cell(t, court))
		}
		rows = append(rows, row)
	}
	return rows
}

type Stats struct {
	Booked     int `json:"reservados"`
	Blocked    int `json:"bloqueados"`
	Available  int `json:"disponibles"`
	Total      int `json:"total"`
	Percentage int `json:"porcentaje"`
}

// Stats counts the cells of Rows.
func (g *Grid) Stats() Stats {
	var s Stats
	for _, t := range g.Times {
		for _, court := range g.Courts {
			s.Total++
			switch g.Cell(t, court).State {
			case model.SlotBooked:
				s.Booked++
			case model.SlotBlocked:
				s.Blocked++
			default:
				s.Available++
			}
		}
	}
	s.Percentage = percent(s.Booked+s.Blocked, s.Total)
	return s
}

// IsCurrent reports whether now (already in the venue's zone) falls inside the
// interval starting at t on the grid's date.
func (g *Grid) IsCurrent(t calendar.Clock, now time.Time) bool {
	if calendar.DateOf(now) != g.Date || g.Interval <= 0 {
		return false
	}
	c := calendar.ClockOf(now)
	return c >= t && c < t.Add(g.Interval)
}

// Required returns the cells a booking of duration minutes starting at start
// on court would occupy. Every interval must be a grid time of this date.
func (g *Grid) Required(court string, start calendar.Clock, duration int) ([]Cell, error) {
	if g.Interval <= 0 {
		return nil, ErrNoGroup
	}
	if duration <= 0 {
		return nil, ErrInvalidLength
	}
	court = normalize.Court(court)
	if !g.hasCourt(court) {
		return nil, ErrUnknownCourt
	}
	starts := Expand(start, duration, g.Interval)
	out := make([]Cell, 0, len(starts))
	for _, t := range starts {
		if !g.hasTime(t) {
			return nil, ErrOutsideWindow
		}
		out = append(out, g.Cell(t, court))
	}
	return out, nil
}

// FreeStarts lists the start times on court where a booking of duration
// minutes fits entirely on available cells.
func FreeStarts(g *Grid, court string, duration int) []calendar.Clock {
	out := []calendar.Clock{}
	for _, t := range g.Times {
		cells, err := g.Required(court, t, duration)
		if err != nil {
			continue
		}
		free := true
		for _, c := range cells {
			if !c.Available() {
				free = false
				break
			}
		}
		if free {
			out = append(out, t)
		}
	}
	return out
}

func (g *Grid) hasCourt(court string) bool {
	for _, c := range g.Courts {
		if c == court {
			return true
		}
	}
	return false
}

func (g *Grid) hasTime(t calendar.Clock) bool {
	i := sort.Search(len(g.Times), func(i int) bool { return g.Times[i] >= t })
	return i < len(g.Times) && g.Times[i] == t
}

func (g *Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Venue     string           `json:"centro"`
		CourtType string           `json:"tipo_cancha"`
		Date      calendar.Date    `json:"fecha"`
		Interval  int              `json:"intervalo"`
		Times     []calendar.Clock `json:"horas"`
		Courts    []string         `json:"canchas"`
		Rows      []Row            `json:"filas"`
		Stats     Stats            `json:"stats"`
	}{
		Venue:     g.Venue,
		CourtType: g.CourtType,
		Date:      g.Date,
		Interval:  g.Interval,
		Times:     g.Times,
		Courts:    g.Courts,
		Rows:      g.Rows(),
		Stats:     g.Stats(),
	})
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
