package domain

import (
	"fmt"
	"strings"
	"time"
)

// InputValidationError reports malformed input: mismatched time axes,
// unparseable values, negative depths.
type InputValidationError struct {
	Unit   string // accounting unit, when known
	Field  string // field id, column, or file the problem was found in
	Reason string
}

func (e *InputValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid input")
	if e.Unit != "" {
		fmt.Fprintf(&b, " for unit %s", e.Unit)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// NoDataError reports that none of a unit's fields appear in a source table,
// or that the unit has no fields at all after key filtering.
type NoDataError struct {
	Unit     string
	Variable Variable
	FieldIDs []string
	Unknown  bool // unit absent from the filtered key table
}

func (e *NoDataError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("unknown unit %s: no fields assigned in the field key table", e.Unit)
	}
	return fmt.Sprintf("no %s data for unit %s (fields %s)",
		e.Variable.Description(), e.Unit, strings.Join(e.FieldIDs, ","))
}

// ConfigurationMismatchError reports precipitation and ET datasets tagged for
// different program years or repurposed status.
type ConfigurationMismatchError struct {
	Tag    string // "program year" or "status"
	Precip string
	ET     string
}

func (e *ConfigurationMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch between precipitation (%s) and ET (%s) datasets",
		e.Tag, e.Precip, e.ET)
}

// CapacityViolationError reports soil storage outside [0, capacity] after the
// first step. It indicates a defect, not bad input.
type CapacityViolationError struct {
	Unit     string
	Index    int
	Time     time.Time
	Storage  float64
	Capacity float64
}

func (e *CapacityViolationError) Error() string {
	return fmt.Sprintf("soil storage %g outside [0, %g] for unit %s at step %d (%s)",
		e.Storage, e.Capacity, e.Unit, e.Index, e.Time.Format(time.DateOnly))
}
