package period

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("period: end must be after start")
	ErrZeroAnchor   = errors.New("period: anchor date required")
)

const keyLayout = "2006-01"

// Month is the half-open calendar month [Start, End) in UTC.
type Month struct {
	Start time.Time
	End   time.Time
}

// MonthOf returns the UTC calendar month containing t.
func MonthOf(t time.Time) Month {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Month{Start: start, End: start.AddDate(0, 1, 0)}
}

// ParseMonth reads a "YYYY-MM" key.
func ParseMonth(key string) (Month, error) {
	t, err := time.Parse(keyLayout, key)
	if err != nil {
		return Month{}, err
	}
	return MonthOf(t), nil
}

// Key renders the month as "YYYY-MM".
func (m Month) Key() string {
	return m.Start.Format(keyLayout)
}

func (m Month) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(m.Start) && t.Before(m.End)
}

func (m Month) Next() Month {
	return MonthOf(m.End)
}

func (m Month) Equal(other Month) bool {
	return m.Start.Equal(other.Start)
}

// Range is a half-open interval [From, To). A zero bound is open-ended.
type Range struct {
	From time.Time
	To   time.Time
}

func NewRange(from, to time.Time) (Range, error) {
	r := Range{From: from.UTC(), To: to.UTC()}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (r Range) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return nil
	}
	if !r.To.After(r.From) {
		return ErrInvalidRange
	}
	return nil
}

func (r Range) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

func (r Range) Contains(t time.Time) bool {
	t = t.UTC()
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}
