package domain

import (
	"fmt"
	"strings"
	"time"
)

// Quarter is a water-year quarter.
type Quarter string

const (
	Q1 Quarter = "Q1" // Oct-Dec of the previous calendar year
	Q2 Quarter = "Q2" // Jan-Mar
	Q3 Quarter = "Q3" // Apr-Jun
	Q4 Quarter = "Q4" // Jul-Sep
)

// Quarters lists the quarters in water-year order.
var Quarters = [4]Quarter{Q1, Q2, Q3, Q4}

// ParseQuarter accepts "Q1".."Q4", case-insensitive.
func ParseQuarter(s string) (Quarter, error) {
	q := Quarter(strings.ToUpper(strings.TrimSpace(s)))
	switch q {
	case Q1, Q2, Q3, Q4:
		return q, nil
	default:
		return "", &InputValidationError{Field: "quarter", Reason: fmt.Sprintf("quarter must be one of Q1, Q2, Q3, Q4, not %q", s)}
	}
}

// Index returns the zero-based position of q in water-year order, or -1.
func (q Quarter) Index() int {
	for i, c := range Quarters {
		if c == q {
			return i
		}
	}
	return -1
}

// Months returns the month span label, e.g. "Oct-Dec".
func (q Quarter) Months() string {
	switch q {
	case Q1:
		return "Oct-Dec"
	case Q2:
		return "Jan-Mar"
	case Q3:
		return "Apr-Jun"
	case Q4:
		return "Jul-Sep"
	default:
		return ""
	}
}

// QuarterOf returns the water-year quarter containing t.
func QuarterOf(t time.Time) Quarter {
	switch m := t.Month(); {
	case m >= time.October:
		return Q1
	case m <= time.March:
		return Q2
	case m <= time.June:
		return Q3
	default:
		return Q4
	}
}

// WaterYearOf returns the water year containing t. October through December
// belong to the following calendar year's water year.
func WaterYearOf(t time.Time) int {
	if t.Month() >= time.October {
		return t.Year() + 1
	}
	return t.Year()
}

// QuarterEndDate returns the last day of quarter q in waterYear.
func QuarterEndDate(waterYear int, q Quarter) (time.Time, error) {
	switch q {
	case Q1:
		return time.Date(waterYear-1, time.December, 31, 0, 0, 0, 0, time.UTC), nil
	case Q2:
		return time.Date(waterYear, time.March, 31, 0, 0, 0, 0, time.UTC), nil
	case Q3:
		return time.Date(waterYear, time.June, 30, 0, 0, 0, 0, time.UTC), nil
	case Q4:
		return time.Date(waterYear, time.September, 30, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, &InputValidationError{Field: "quarter", Reason: fmt.Sprintf("unknown quarter %q", q)}
	}
}
