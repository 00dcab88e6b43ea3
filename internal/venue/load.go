package venue

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/normalize"
)

type fileConfig struct {
	PrimeCutoff       string            `mapstructure:"prime_cutoff"`
	CourtTypeVariants map[string]string `mapstructure:"court_type_variants"`
	AlertTypeVariants map[string]string `mapstructure:"alert_type_variants"`
	Venues            []fileVenue       `mapstructure:"venues"`
}

type fileVenue struct {
	Name   string      `mapstructure:"name"`
	Groups []fileGroup `mapstructure:"groups"`
}

type fileGroup struct {
	Type      string   `mapstructure:"type"`
	Courts    []string `mapstructure:"courts"`
	Opens     string   `mapstructure:"opens"`
	Closes    string   `mapstructure:"closes"`
	Interval  int      `mapstructure:"interval"`
	Durations []int    `mapstructure:"durations"`
}

// Load reads the venue configuration from a YAML (or any viper-supported)
// file. An empty path returns the built-in defaults. Variant tables found in
// the file are added to the process-wide normalizers.
func Load(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("prime_cutoff", DefaultPrimeCutoff.String())
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read venues file %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode venues file %s: %w", path, err)
	}

	for variant, canonical := range fc.CourtTypeVariants {
		normalize.CourtTypes.Add(variant, canonical)
	}
	for variant, canonical := range fc.AlertTypeVariants {
		normalize.AlertTypes.Add(variant, canonical)
	}

	cutoff, err := calendar.ParseClock(fc.PrimeCutoff)
	if err != nil {
		return nil, fmt.Errorf("prime_cutoff: %w", err)
	}

	venues := fc.Venues
	if len(venues) == 0 {
		return NewRegistry(Defaults(), cutoff)
	}

	out := make([]Venue, 0, len(venues))
	for _, fv := range venues {
		ven := Venue{Name: fv.Name}
		for _, fg := range fv.Groups {
			g, err := fg.toGroup()
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", fv.Name, fg.Type, err)
			}
			ven.Groups = append(ven.Groups, g)
		}
		out = append(out, ven)
	}
	return NewRegistry(out, cutoff)
}

func (fg fileGroup) toGroup() (CourtGroup, error) {
	opens, err := calendar.ParseClock(fg.Opens)
	if err != nil {
		return CourtGroup{}, fmt.Errorf("opens: %w", err)
	}
	closes, err := calendar.ParseClock(fg.Closes)
	if err != nil {
		return CourtGroup{}, fmt.Errorf("closes: %w", err)
	}
	courts := make([]string, 0, len(fg.Courts))
	for _, c := range fg.Courts {
		courts = append(courts, normalize.Court(c))
	}
	return CourtGroup{
		Type:      normalize.CourtTypes.Canonical(fg.Type),
		Courts:    courts,
		Opens:     opens,
		Closes:    closes,
		Interval:  fg.Interval,
		Durations: fg.Durations,
	}, nil
}
