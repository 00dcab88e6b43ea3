package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/calendar"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrSlotUnavailable = fmt.Errorf("%w: slot not available", ErrConflict)
	ErrNotBlocked      = fmt.Errorf("%w: slot is not blocked", ErrConflict)

	// ErrPartialWrite marks a store failure between writing a booking and
	// claiming its slots. The booking row is rolled back before it surfaces.
	ErrPartialWrite = errors.New("booking slots could not be written")
)

// ValidationError is malformed input, rejected before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError names the cells that were taken when a booking or block was
// written. It matches ErrSlotUnavailable.
type ConflictError struct {
	Venue     string
	CourtType string
	Court     string
	Date      calendar.Date
	Times     []calendar.Clock
}

func (e *ConflictError) Error() string {
	times := make([]string, len(e.Times))
	for i, t := range e.Times {
		times[i] = t.String()
	}
	return fmt.Sprintf("%s %s %s %s [%s]: %v",
		e.Venue, e.CourtType, e.Court, e.Date, strings.Join(times, ", "), ErrSlotUnavailable)
}

func (e *ConflictError) Unwrap() error { return ErrSlotUnavailable }

// notFound maps the store's missing-row error onto ErrNotFound.
func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
