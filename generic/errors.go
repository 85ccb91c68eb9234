/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Hard failures - Returned to the caller immediately (invalid period
     bounds, occurrence count < 1, missing invoice period)
  2. Data errors - Absorbed by the component that meets them; the item is
     dropped or rendered with a fallback, the batch continues
  3. Store errors - Missing rows and database failures

Configuration problems (missing start/end day, missing daily capacity) are
never errors: each component resolves documented defaults.

USAGE:
  if errors.Is(err, generic.ErrInvalidPeriod) {
      var pe *generic.InvalidPeriodError
      errors.As(err, &pe)
  }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrMissingPeriod is returned when an invoice is created without period bounds.
	ErrMissingPeriod = errors.New("period bounds are required")

	// ErrInvalidOccurrenceCount is returned for a recurrence with fewer than one occurrence.
	ErrInvalidOccurrenceCount = errors.New("occurrence count must be at least 1")

	// ErrInvalidFrequency is returned when a multi-occurrence series names no known frequency.
	ErrInvalidFrequency = errors.New("invalid recurrence frequency")

	// ErrInvalidDate is returned when a required date is not a valid YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("invalid calendar date")

	// ErrInvalidOffsetRange is returned when a month offset window has from > to.
	ErrInvalidOffsetRange = errors.New("invalid month offset range")

	// ErrInvalidInput covers other malformed caller input (negative hours, bad status).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned by stores when a referenced row doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPeriodError provides the offending bounds.
type InvalidPeriodError struct {
	Start TimePoint
	End   TimePoint
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period: end %s before start %s", e.End, e.Start)
}

func (e *InvalidPeriodError) Unwrap() error {
	return ErrInvalidPeriod
}

// InvalidDateError names the field and raw value that failed to parse.
type InvalidDateError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidDateError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid date %q (use YYYY-MM-DD)", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", e.Value)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrInvalidDate
}

// WithField returns a copy of a parse error tagged with the input field name.
func WithField(err error, field string) error {
	var de *InvalidDateError
	if errors.As(err, &de) {
		return &InvalidDateError{Field: field, Value: de.Value, Err: de.Err}
	}
	return err
}

// NotFoundError provides details about a missing row.
type NotFoundError struct {
	Kind string // "task", "invoice", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound is a shorthand for &NotFoundError{...}.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrMissingPeriod) ||
		errors.Is(err, ErrInvalidOccurrenceCount) ||
		errors.Is(err, ErrInvalidFrequency) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidOffsetRange) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
