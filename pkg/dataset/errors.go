package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is returned when a required CSV column is absent from the header.
	ErrMissingColumn = errors.New("missing required column")

	// ErrInsufficientData is returned when a split would leave a partition empty.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidNumber is returned for infinite or negative metric values.
	ErrInvalidNumber = errors.New("metric must be a finite non-negative number")
)

// ParseError reports a malformed cell. Line is 1-based and counts the header.
type ParseError struct {
	Line   int
	Column string
	cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d column %q: %v", e.Line, e.Column, e.cause)
}

func (e *ParseError) Unwrap() error { return e.cause }
