// Package csvstore reads and writes the CSV tables the accounting works
// from: per-field precipitation and ET exports, the field key table, and the
// per-unit consumptive-use results.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mmaneta/eki-lpr-update/internal/domain"
)

var timeLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// table is a CSV body with its header indexed by column name.
type table struct {
	name    string
	columns map[string]int
	records [][]string
}

func readTable(r io.Reader, name string, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.InputValidationError{Field: name, Reason: "empty file, expected a header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}

	t := &table{name: name, columns: make(map[string]int, len(header))}
	for i, h := range header {
		t.columns[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range required {
		if _, ok := t.columns[c]; !ok {
			return nil, &domain.InputValidationError{Field: name, Reason: fmt.Sprintf("missing required column %q", c)}
		}
	}

	t.records, err = cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return t, nil
}

// line is the 1-based file line of record i, counting the header.
func (t *table) line(i int) int { return i + 2 }

func (t *table) str(i int, col string) string {
	j := t.columns[col]
	rec := t.records[i]
	if j >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[j])
}

func (t *table) float(i int, col string) (float64, error) {
	s := t.str(i, col)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, t.invalid(i, col, fmt.Sprintf("%q is not a number", s))
	}
	return v, nil
}

func (t *table) time(i int, col string) (time.Time, error) {
	s := t.str(i, col)
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			return v.UTC(), nil
		}
	}
	return time.Time{}, t.invalid(i, col, fmt.Sprintf("%q is not a date", s))
}

func (t *table) invalid(i int, col, reason string) error {
	return &domain.InputValidationError{
		Field:  fmt.Sprintf("%s line %d column %s", t.name, t.line(i), col),
		Reason: reason,
	}
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.UTC().Format(time.DateOnly)
	}
	return t.UTC().Format(time.RFC3339)
}

// fmtFloat writes the shortest representation that parses back to x.
func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
