package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const DateLayout = "2006-01-02"

// DateRange is inclusive on both ends. Dates are UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to its calendar date (in t's location) and returns it at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseISODate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, InvalidDateRange("Invalid date format; expected YYYY-MM-DD", err)
	}
	return t, nil
}

func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseISODate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseISODate(end)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: s, End: e}, nil
}

// Validate checks start <= end and, unless allowFuture, end <= today.
func (r DateRange) Validate(today time.Time, allowFuture bool) error {
	if r.Start.After(r.End) {
		return InvalidDateRange("start_date must be <= end_date", nil)
	}
	if !allowFuture && Day(r.End).After(Day(today)) {
		return InvalidDateRange("end_date cannot be in the future", nil)
	}
	return nil
}

// Days is the inclusive day count.
func (r DateRange) Days() int {
	return int(Day(r.End).Sub(Day(r.Start)).Hours()/24) + 1
}

// LastDays returns [today-n, today].
func LastDays(today time.Time, n int) DateRange {
	end := Day(today)
	return DateRange{Start: end.AddDate(0, 0, -n), End: end}
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

type dateRangeJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{
		StartDate: r.Start.Format(DateLayout),
		EndDate:   r.End.Format(DateLayout),
	})
}

func (r *DateRange) UnmarshalJSON(b []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return InvalidDateRange("Invalid date range", err)
	}
	parsed, err := ParseDateRange(raw.StartDate, raw.EndDate)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
