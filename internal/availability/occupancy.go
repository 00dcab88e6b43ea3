package availability

import (
	"sort"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/venue"
)

// RangeOptions tune the aggregate views.
type RangeOptions struct {
	// Cutoff is the first time of day counted as prime time.
	Cutoff calendar.Clock
	// Occupies selects the bookings that hold cells; nil means Active.
	Occupies Occupies
}

func (o RangeOptions) occupies() Occupies {
	if o.Occupies == nil {
		return Active
	}
	return o.Occupies
}

// OccupancyStats is the prime-time occupancy KPI over a date range.
type OccupancyStats struct {
	Venue      string `json:"centro"`
	CourtType  string `json:"tipo_cancha,omitempty"`
	Occupied   int    `json:"reservados"`
	Free       int    `json:"disponibles"`
	Total      int    `json:"total"`
	Percentage int    `json:"porcentaje"`
}

func (s *OccupancyStats) add(o OccupancyStats) {
	s.Occupied += o.Occupied
	s.Total += o.Total
}

func (s *OccupancyStats) finish() {
	if s.Occupied > s.Total {
		s.Occupied = s.Total
	}
	s.Free = s.Total - s.Occupied
	s.Percentage = percent(s.Occupied, s.Total)
}

// primeTimes returns the configured interval starts at or after cutoff.
func primeTimes(g *venue.CourtGroup, cutoff calendar.Clock) []calendar.Clock {
	var out []calendar.Clock
	for _, t := range g.Times() {
		if t >= cutoff {
			out = append(out, t)
		}
	}
	return out
}

// capacityCell reports whether key is one of the cells counted in capacity:
// a configured court at a configured prime-time start.
func capacityCell(g *venue.CourtGroup, key model.CellKey, cutoff calendar.Clock) bool {
	return key.Time >= cutoff && g.HasTime(key.Time) && g.HasCourt(key.Court)
}

// Occupancy computes prime-time occupancy for one court group over the
// inclusive range [from, to]. Capacity is courts x prime intervals x days.
// Occupied cells come from the same per-day merge as the grid, so a cell with
// a slot row is never counted again for a booking, and bookings that start
// before the cutoff still count for the intervals that reach into it.
// Spillover outside the operating window is never counted.
func Occupancy(scope Scope, from, to calendar.Date, slots []model.Slot, bookings []model.Booking, opts RangeOptions) OccupancyStats {
	out := OccupancyStats{Venue: scope.Venue}
	if scope.Group == nil {
		return out
	}
	out.CourtType = scope.Group.Type

	rng, err := calendar.NormalizeDateRange(from, to, 0)
	if err != nil {
		return out
	}
	idx := indexRows(scope, slots, bookings, opts.occupies())
	out.Total = len(scope.Group.Courts) * len(primeTimes(scope.Group, opts.Cutoff)) * rng.Days()

	rng.Each(func(d calendar.Date) {
		cells, _ := mergeDay(scope, d, idx)
		for key, c := range cells {
			if !c.Available() && capacityCell(scope.Group, key, opts.Cutoff) {
				out.Occupied++
			}
		}
	})
	out.finish()
	return out
}

// VenueOccupancy sums Occupancy over every court group of v.
func VenueOccupancy(v *venue.Venue, from, to calendar.Date, slots []model.Slot, bookings []model.Booking, opts RangeOptions) OccupancyStats {
	if v == nil {
		return OccupancyStats{}
	}
	out := OccupancyStats{Venue: v.Name}
	for i := range v.Groups {
		out.add(Occupancy(Scope{Venue: v.Name, Group: &v.Groups[i]}, from, to, slots, bookings, opts))
	}
	out.finish()
	return out
}

// HourLoad is prime-time capacity and use of one clock hour across venues.
type HourLoad struct {
	Hour     calendar.Clock `json:"hora"`
	Occupied int            `json:"ocupados"`
	Free     int            `json:"libres"`
	Total    int            `json:"total"`
}

func (h HourLoad) freeRatio() float64 {
	if h.Total == 0 {
		return 0
	}
	return float64(h.Free) / float64(h.Total)
}

// HourlyOccupancy buckets every prime-time cell of every venue by its clock
// hour (a 30-minute group contributes two cells per court to each hour).
// The result is ordered by hour.
func HourlyOccupancy(venues []venue.Venue, from, to calendar.Date, slots []model.Slot, bookings []model.Booking, opts RangeOptions) []HourLoad {
	rng, err := calendar.NormalizeDateRange(from, to, 0)
	if err != nil {
		return []HourLoad{}
	}
	byHour := make(map[calendar.Clock]*HourLoad)
	bucket := func(t calendar.Clock) *HourLoad {
		h := calendar.NewClock(t.Hour(), 0)
		if byHour[h] == nil {
			byHour[h] = &HourLoad{Hour: h}
		}
		return byHour[h]
	}

	for vi := range venues {
		v := &venues[vi]
		for gi := range v.Groups {
			scope := Scope{Venue: v.Name, Group: &v.Groups[gi]}
			prime := primeTimes(scope.Group, opts.Cutoff)
			idx := indexRows(scope, slots, bookings, opts.occupies())
			rng.Each(func(d calendar.Date) {
				cells, _ := mergeDay(scope, d, idx)
				for _, t := range prime {
					load := bucket(t)
					for _, court := range scope.Group.Courts {
						load.Total++
						if c, ok := cells[model.CellKey{Time: t, Court: court}]; ok && !c.Available() {
							load.Occupied++
						}
					}
				}
			})
		}
	}

	out := make([]HourLoad, 0, len(byHour))
	for _, h := range byHour {
		if h.Occupied > h.Total {
			h.Occupied = h.Total
		}
		h.Free = h.Total - h.Occupied
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// DeadHours returns the n hours with the highest share of free cells.
// Ties keep hour order.
func DeadHours(loads []HourLoad, n int) []HourLoad {
	out := append([]HourLoad(nil), loads...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].freeRatio() > out[j].freeRatio() })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
