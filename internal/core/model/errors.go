package model

import (
	"errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidLocation
	KindInvalidDateRange
	KindDataUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidLocation:
		return "invalid_location"
	case KindInvalidDateRange:
		return "invalid_date_range"
	case KindDataUnavailable:
		return "data_unavailable"
	default:
		return "unknown"
	}
}

// Error carries a domain kind that the HTTP layer maps to a status code.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrDataUnavailable) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidLocation  = &Error{Kind: KindInvalidLocation}
	ErrInvalidDateRange = &Error{Kind: KindInvalidDateRange}
	ErrDataUnavailable  = &Error{Kind: KindDataUnavailable}
)

func InvalidLocation(msg string, cause error) error {
	return &Error{Kind: KindInvalidLocation, Msg: msg, Err: cause}
}

func InvalidDateRange(msg string, cause error) error {
	return &Error{Kind: KindInvalidDateRange, Msg: msg, Err: cause}
}

func DataUnavailable(msg string, cause error) error {
	return &Error{Kind: KindDataUnavailable, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Detail is the human readable message for API responses; causes stay in logs.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	switch KindOf(err) {
	case KindInvalidLocation:
		return "Invalid location"
	case KindInvalidDateRange:
		return "Invalid date range"
	case KindDataUnavailable:
		return "Data unavailable"
	default:
		return "Request error"
	}
}
