// Package normalize canonicalizes the spelling variants found in data written
// by the automation bot and by older dashboard versions.
package normalize

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	canonicalCourt = regexp.MustCompile(`^Cancha \d+$`)
	numericCourt   = regexp.MustCompile(`^(\d+)$`)
	prefixedCourt  = regexp.MustCompile(`(?i)^cancha\s*(\d+)$`)
)

// Court maps "1", "cancha1", "cancha 1" and "Cancha 1" to "Cancha 1".
// Names that do not follow the numbered pattern are only trimmed.
func Court(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || canonicalCourt.MatchString(s) {
		return s
	}
	if m := numericCourt.FindStringSubmatch(s); m != nil {
		return "Cancha " + m[1]
	}
	if m := prefixedCourt.FindStringSubmatch(s); m != nil {
		return "Cancha " + m[1]
	}
	return s
}

// Fold returns an accent- and case-insensitive key: "Pádel " -> "padel".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(out)
}

// Table maps spelling variants to a canonical value. Lookups go through Fold,
// so accent and case differences never need their own entries.
type Table struct {
	mu        sync.RWMutex
	variants  map[string]string
	spellings map[string][]string
}

func NewTable(pairs map[string]string) *Table {
	t := &Table{
		variants:  make(map[string]string, len(pairs)),
		spellings: make(map[string][]string),
	}
	for variant, canonical := range pairs {
		t.Add(variant, canonical)
	}
	return t
}

// Add registers variant (and the canonical value itself) as spellings of canonical.
func (t *Table) Add(variant, canonical string) {
	canonical = strings.TrimSpace(canonical)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.variants[Fold(variant)] = canonical
	t.variants[Fold(canonical)] = canonical

	key := Fold(canonical)
	for _, raw := range []string{canonical, strings.TrimSpace(variant)} {
		if !contains(t.spellings[key], raw) {
			t.spellings[key] = append(t.spellings[key], raw)
		}
	}
}

// Spellings returns the canonical form of s followed by every registered raw
// variant of it, for exact-match store filters.
func (t *Table) Spellings(s string) []string {
	canonical := t.Canonical(s)
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := append([]string(nil), t.spellings[Fold(canonical)]...)
	if len(out) == 0 {
		out = []string{canonical}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Canonical returns the canonical spelling of s, or s trimmed when unknown.
func (t *Table) Canonical(s string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if c, ok := t.variants[Fold(s)]; ok {
		return c
	}
	return strings.TrimSpace(s)
}

// Same reports whether a and b are spellings of the same value.
func (t *Table) Same(a, b string) bool {
	return Fold(t.Canonical(a)) == Fold(t.Canonical(b))
}

// CourtTypes holds the court-type variants seen in stored data.
var CourtTypes = NewTable(map[string]string{
	"Pádel":     "Padel",
	"Fútbolito": "Futbolito",
})

// AlertTypes holds alert-type variants; the bot has written a transposed typo.
var AlertTypes = NewTable(map[string]string{
	"escalamietno": "escalamiento",
})

// SameType compares two court types ignoring accents, case and known variants.
func SameType(a, b string) bool {
	return CourtTypes.Same(a, b)
}
