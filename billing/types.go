/*
Package billing provides the attendance billing computation engine.

PURPOSE:
  This package contains the pure types and algorithms that turn a pair of
  same-day timestamps plus a configuration snapshot into a duration and two
  surcharges (overtime beyond the daily cap, late pickup beyond closing).
  It has no clock, no store, and no I/O: the same inputs always produce the
  same outputs, which is what makes billing recomputation safe.

KEY CONCEPTS IN THIS FILE (types.go):
  - TimeOfDay: A wall-clock time within a day, second precision
  - Date: A calendar date (the attendance day)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for hours and money, never float64
  2. Purity: Compute is a function of its arguments only
  3. Explicitness: malformed input is rejected, never silently clamped

SEE ALSO:
  - engine.go: Config, Breakdown and the Compute function
  - attendance package: records and orchestration built on this engine
*/
package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME OF DAY - Wall-clock time within a single day
// =============================================================================

// TimeOfDay is a time within a day with second precision. The zero value is
// midnight. Check-in, check-out and closing times are all TimeOfDay values
// anchored to the same calendar date, so durations between them are plain
// second differences.
type TimeOfDay struct {
	secs int
}

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay{secs: hour*3600 + minute*60 + second}
}

// ParseTimeOfDay accepts "HH:MM:SS" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	switch n, _ := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); n {
	case 2:
		sec = 0
	case 3:
	default:
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (want HH:MM:SS)", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(h, m, sec), nil
}

// TimeOfDayOf extracts the wall-clock time from t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) Hour() int   { return t.secs / 3600 }
func (t TimeOfDay) Minute() int { return (t.secs / 60) % 60 }
func (t TimeOfDay) Second() int { return t.secs % 60 }

// SecondsSinceMidnight returns the time as seconds from 00:00:00.
func (t TimeOfDay) SecondsSinceMidnight() int { return t.secs }

func (t TimeOfDay) Before(u TimeOfDay) bool { return t.secs < u.secs }
func (t TimeOfDay) After(u TimeOfDay) bool  { return t.secs > u.secs }
func (t TimeOfDay) Equal(u TimeOfDay) bool  { return t.secs == u.secs }

// Sub returns t-u in seconds.
func (t TimeOfDay) Sub(u TimeOfDay) int { return t.secs - u.secs }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Clock12 formats the time for user-facing messages, e.g. "4:30 PM".
func (t TimeOfDay) Clock12() string {
	return time.Date(0, time.January, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC).Format("3:04 PM")
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// DATE - Calendar date (the attendance day)
// =============================================================================

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate accepts "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

// DateOf extracts the calendar date from t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) Before(other Date) bool { return d.compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.compare(other) > 0 }
func (d Date) Equal(other Date) bool  { return d.compare(other) == 0 }
func (d Date) IsZero() bool           { return d == Date{} }

func (d Date) compare(other Date) int {
	if d.Year != other.Year {
		return d.Year - other.Year
	}
	if d.Month != other.Month {
		return int(d.Month) - int(other.Month)
	}
	return d.Day - other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
