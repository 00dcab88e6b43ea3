// Package venue holds the static venue and court configuration: which courts
// each venue has per court type, their operating window and interval length.
package venue

import (
	"errors"
	"fmt"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/normalize"
)

var ErrInvalidConfig = errors.New("invalid venue configuration")

// DefaultPrimeCutoff is the time of day from which intervals count as prime time.
var DefaultPrimeCutoff = calendar.NewClock(17, 0)

// CourtGroup is one court type within one venue.
type CourtGroup struct {
	Type      string
	Courts    []string
	Opens     calendar.Clock
	Closes    calendar.Clock
	Interval  int
	Durations []int
}

type Venue struct {
	Name   string
	Groups []CourtGroup
}

// Validate checks the group invariants.
func (g *CourtGroup) Validate() error {
	if g.Type == "" {
		return fmt.Errorf("%w: empty court type", ErrInvalidConfig)
	}
	if g.Interval <= 0 {
		return fmt.Errorf("%w: %s: interval must be positive", ErrInvalidConfig, g.Type)
	}
	if g.Opens >= g.Closes {
		return fmt.Errorf("%w: %s: opens %s is not before closes %s", ErrInvalidConfig, g.Type, g.Opens, g.Closes)
	}
	if len(g.Courts) == 0 {
		return fmt.Errorf("%w: %s: no courts", ErrInvalidConfig, g.Type)
	}
	seen := make(map[string]struct{}, len(g.Courts))
	for _, c := range g.Courts {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: %s: duplicate court %q", ErrInvalidConfig, g.Type, c)
		}
		seen[c] = struct{}{}
	}
	for _, d := range g.Durations {
		if d <= 0 || d%g.Interval != 0 {
			return fmt.Errorf("%w: %s: duration %d is not a multiple of %d", ErrInvalidConfig, g.Type, d, g.Interval)
		}
	}
	return nil
}

// Times returns the interval starts of one operating day, Opens inclusive,
// Closes exclusive.
func (g *CourtGroup) Times() []calendar.Clock {
	times, err := calendar.Times(g.Opens, g.Closes, g.Interval)
	if err != nil {
		return nil
	}
	return times
}

// HasTime reports whether t is one of the group's interval starts.
func (g *CourtGroup) HasTime(t calendar.Clock) bool {
	return t >= g.Opens && t < g.Closes && int(t-g.Opens)%g.Interval == 0
}

// HasCourt reports whether the (normalized) court name belongs to the group.
func (g *CourtGroup) HasCourt(court string) bool {
	court = normalize.Court(court)
	for _, c := range g.Courts {
		if c == court {
			return true
		}
	}
	return false
}

// AllowsDuration reports whether a booking may last d minutes. Groups without
// a duration list only take single-interval bookings.
func (g *CourtGroup) AllowsDuration(d int) bool {
	if len(g.Durations) == 0 {
		return d == g.Interval
	}
	for _, allowed := range g.Durations {
		if allowed == d {
			return true
		}
	}
	return false
}

func (g *CourtGroup) DefaultDuration() int {
	if len(g.Durations) > 0 {
		return g.Durations[0]
	}
	return g.Interval
}

// Registry is the read-only, process-wide venue configuration.
type Registry struct {
	venues      []Venue
	primeCutoff calendar.Clock
}

func NewRegistry(venues []Venue, primeCutoff calendar.Clock) (*Registry, error) {
	names := make(map[string]struct{}, len(venues))
	for i := range venues {
		v := &venues[i]
		key := normalize.Fold(v.Name)
		if key == "" {
			return nil, fmt.Errorf("%w: empty venue name", ErrInvalidConfig)
		}
		if _, dup := names[key]; dup {
			return nil, fmt.Errorf("%w: duplicate venue %q", ErrInvalidConfig, v.Name)
		}
		names[key] = struct{}{}

		types := make(map[string]struct{}, len(v.Groups))
		for j := range v.Groups {
			g := &v.Groups[j]
			if err := g.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", v.Name, err)
			}
			tkey := normalize.Fold(normalize.CourtTypes.Canonical(g.Type))
			if _, dup := types[tkey]; dup {
				return nil, fmt.Errorf("%w: %s: duplicate court type %q", ErrInvalidConfig, v.Name, g.Type)
			}
			types[tkey] = struct{}{}
		}
	}
	if primeCutoff <= 0 {
		primeCutoff = DefaultPrimeCutoff
	}
	return &Registry{venues: venues, primeCutoff: primeCutoff}, nil
}

func (r *Registry) Venues() []Venue {
	return r.venues
}

func (r *Registry) PrimeCutoff() calendar.Clock {
	return r.primeCutoff
}

// Venue finds a venue by name, ignoring accents and case.
func (r *Registry) Venue(name string) *Venue {
	key := normalize.Fold(name)
	for i := range r.venues {
		if normalize.Fold(r.venues[i].Name) == key {
			return &r.venues[i]
		}
	}
	return nil
}

// Group finds the court group for a venue and court type. Court types match
// accent-insensitively and through the known variant table. A missing
// combination yields nil, which callers treat as zero capacity.
func (r *Registry) Group(venueName, courtType string) *CourtGroup {
	v := r.Venue(venueName)
	if v == nil {
		return nil
	}
	for i := range v.Groups {
		if normalize.SameType(v.Groups[i].Type, courtType) {
			return &v.Groups[i]
		}
	}
	return nil
}

func courts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Cancha %d", i+1)
	}
	return out
}

// Defaults returns the production venues.
func Defaults() []Venue {
	return []Venue{
		{
			Name: "Lo Prado",
			Groups: []CourtGroup{
				{
					Type:     "Futbolito",
					Courts:   courts(6),
					Opens:    calendar.NewClock(9, 0),
					Closes:   calendar.NewClock(23, 0),
					Interval: 60,
				},
			},
		},
		{
			Name: "Quilicura",
			Groups: []CourtGroup{
				{
					Type:     "Futbolito",
					Courts:   courts(4),
					Opens:    calendar.NewClock(8, 0),
					Closes:   calendar.NewClock(23, 0),
					Interval: 60,
				},
				{
					Type:      "Padel",
					Courts:    courts(3),
					Opens:     calendar.NewClock(8, 30),
					Closes:    calendar.NewClock(24, 0),
					Interval:  30,
					Durations: []int{60, 90, 120},
				},
			},
		},
	}
}

// DefaultRegistry builds a registry from Defaults.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults(), DefaultPrimeCutoff)
	if err != nil {
		panic(err)
	}
	return r
}
