package processor

import (
	"errors"
	"fmt"
)

var (
	// ErrNegativeQuantity is returned when a quote is requested for a target below zero.
	ErrNegativeQuantity = errors.New("target quantity must not be negative")
	// ErrNoUsableSnapshots is returned when every source failed in a cycle.
	ErrNoUsableSnapshots = errors.New("no usable order book snapshots")
	// ErrIncompleteSnapshots is returned in strict mode when any source failed.
	ErrIncompleteSnapshots = errors.New("order book snapshots incomplete")
)

// MalformedSnapshotError reports a snapshot whose structure is unusable.
type MalformedSnapshotError struct {
	Source string
	Side   string
	Reason string
}

func (e *MalformedSnapshotError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("malformed snapshot from %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("malformed snapshot from %s (%s): %s", e.Source, e.Side, e.Reason)
}

// NumericParseError reports a price or quantity field that is present but not numeric.
type NumericParseError struct {
	Source string
	Field  string
	Value  string
	Err    error
}

func (e *NumericParseError) Error() string {
	return fmt.Sprintf("parse %s %q from %s: %v", e.Field, e.Value, e.Source, e.Err)
}

func (e *NumericParseError) Unwrap() error { return e.Err }

// InvariantViolationError reports a curve that does not satisfy the resolver's
// preconditions. The curve is never repaired.
type InvariantViolationError struct {
	Index  int
	Reason string
}

func (e *InvariantViolationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("curve invariant violated: %s", e.Reason)
	}
	return fmt.Sprintf("curve invariant violated at level %d: %s", e.Index, e.Reason)
}
