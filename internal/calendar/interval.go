package calendar

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrIntervalLength   = errors.New("interval length must be positive")
)

// DateRange is an inclusive range of civil dates [From, To].
type DateRange struct {
	From Date
	To   Date
}

// NormalizeDateRange:
//   - swaps the bounds if they are reversed;
//   - trims the range to maxDays days counted from From (maxDays <= 0 means no limit).
func NormalizeDateRange(from, to Date, maxDays int) (DateRange, error) {
	if from.IsZero() || to.IsZero() {
		return DateRange{}, ErrInvalidDateRange
	}
	if to.Before(from) {
		from, to = to, from
	}
	if maxDays > 0 && DaysInclusive(from, to) > maxDays {
		to = from.AddDays(maxDays - 1)
	}
	return DateRange{From: from, To: to}, nil
}

func SingleDay(d Date) DateRange {
	return DateRange{From: d, To: d}
}

func (r DateRange) Days() int {
	return DaysInclusive(r.From, r.To)
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Each calls fn for every date of the range in order.
func (r DateRange) Each(fn func(Date)) {
	for d := r.From; !d.After(r.To); d = d.AddDays(1) {
		fn(d)
	}
}

// Times splits the window [opens, closes) into interval starts of the given
// length. A trailing piece shorter than the interval still yields a start,
// the same way the booking grid has always been generated.
func Times(opens, closes Clock, interval int) ([]Clock, error) {
	if interval <= 0 {
		return nil, ErrIntervalLength
	}
	if closes <= opens {
		return []Clock{}, nil
	}
	out := make([]Clock, 0, (int(closes-opens)+interval-1)/interval)
	for c := opens; c < closes; c = c.Add(interval) {
		out = append(out, c)
	}
	return out, nil
}

var esWeekdays = [...]string{
	"Domingo",
	"Lunes",
	"Martes",
	"Miércoles",
	"Jueves",
	"Viernes",
	"Sábado",
}

// FormatBooking renders a booking the way staff read it in notifications,
// e.g. "Cancha 2 a las 20:30 (90 min), Sábado 01/02/2025".
func FormatBooking(court string, date Date, at Clock, duration, interval int) string {
	base := fmt.Sprintf("%s a las %s", court, at)
	if duration > interval && duration > 0 {
		base = fmt.Sprintf("%s (%d min)", base, duration)
	}
	if date.IsZero() {
		return base
	}
	return fmt.Sprintf("%s, %s %02d/%02d/%04d", base, esWeekdays[date.Weekday()], date.Day, int(date.Month), date.Year)
}
