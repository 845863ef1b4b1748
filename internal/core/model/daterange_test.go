package model

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

var today = time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC)

func TestValidate_RejectsReversed(t *testing.T) {
	r, err := ParseDateRange("2020-01-02", "2020-01-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	err = r.Validate(today, false)
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("got %v want invalid date range", err)
	}
}

func TestValidate_RejectsFutureEnd(t *testing.T) {
	r := DateRange{Start: Day(today), End: Day(today).AddDate(0, 0, 1)}
	if err := r.Validate(today, false); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("got %v want invalid date range", err)
	}
	if err := r.Validate(today, true); err != nil {
		t.Fatalf("allowFuture: unexpected err %v", err)
	}
}

func TestValidate_AcceptsValid(t *testing.T) {
	r, err := ParseDateRange("2020-01-01", "2020-01-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := r.Validate(today, false); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.Days() != 2 {
		t.Fatalf("days=%d want 2", r.Days())
	}
}

func TestValidate_EndTodayIsAllowed(t *testing.T) {
	r := LastDays(today, 30)
	if err := r.Validate(today, false); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := r.Start.Format(DateLayout); got != "2024-05-16" {
		t.Fatalf("start=%s want 2024-05-16", got)
	}
}

func TestParseISODate_Malformed(t *testing.T) {
	for _, in := range []string{"", "2020/01/01", "2020-13-01", "yesterday"} {
		_, err := ParseISODate(in)
		if KindOf(err) != KindInvalidDateRange {
			t.Fatalf("%q: kind=%v want invalid_date_range", in, KindOf(err))
		}
	}
}

func TestDateRange_JSON(t *testing.T) {
	r, err := ParseDateRange("2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"start_date":"2024-01-01","end_date":"2024-01-31"}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	var back DateRange
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Start.Equal(r.Start) || !back.End.Equal(r.End) {
		t.Fatalf("round trip: %v", back)
	}
	if err := json.Unmarshal([]byte(`{"start_date":"01/02/2024","end_date":"2024-01-31"}`), &back); err == nil {
		t.Fatal("expected error for malformed start_date")
	}
}
