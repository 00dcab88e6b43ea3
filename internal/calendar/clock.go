package calendar

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const MinutesPerDay = 24 * 60

var ErrInvalidClock = errors.New("invalid time of day")

// Clock is a time of day in minutes since midnight. Values at or past
// MinutesPerDay only appear in arithmetic (an interval that spills into the
// next day) and are never stored.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock accepts "HH:MM" and "HH:MM:SS[.ffffff]". "24:00" is allowed as
// the end of an operating window.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return NewClock(h, m), nil
}

func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// Wrap folds a clock that spilled past midnight back into a single day and
// returns how many days it crossed.
func (c Clock) Wrap() (Clock, int) {
	days := 0
	for c >= MinutesPerDay {
		c -= MinutesPerDay
		days++
	}
	for c < 0 {
		c += MinutesPerDay
		days--
	}
	return c, days
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// GormDBDataType keeps sqlite on a text column: go-sqlite3 converts values
// of datetime-like declared types into time.Time and drops "HH:MM:SS".
func (Clock) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "time"
}

func (c Clock) Value() (driver.Value, error) {
	if c < 0 || c >= MinutesPerDay {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidClock, int(c))
	}
	return fmt.Sprintf("%02d:%02d:00", c.Hour(), c.Minute()), nil
}

func (c *Clock) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = 0
		return nil
	case time.Time:
		*c = ClockOf(v)
		return nil
	case string:
		return c.parseInto(v)
	case []byte:
		return c.parseInto(string(v))
	default:
		return fmt.Errorf("calendar.Clock: cannot scan %T", src)
	}
}

func (c *Clock) parseInto(s string) error {
	// Drivers may hand back "17:00:00.000000" or a full timestamp.
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return c.parseInto(s)
}
