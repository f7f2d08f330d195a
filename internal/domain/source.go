package domain

import (
	"context"
	"fmt"
	"time"
)

// DatasetQuery selects a remote dataset export.
type DatasetQuery struct {
	Variable Variable
	Start    time.Time
	End      time.Time
}

// DatasetSource retrieves per-field rows from a remote provider.
type DatasetSource interface {
	// FetchFieldRows exports and downloads the rows covering q.
	FetchFieldRows(ctx context.Context, q DatasetQuery) ([]FieldRow, error)
}

// Covers reports whether rows span [start, end].
func Covers(rows []FieldRow, start, end time.Time) bool {
	if len(rows) == 0 {
		return false
	}
	lo, hi := rows[0].Time, rows[0].Time
	for _, r := range rows[1:] {
		if r.Time.Before(lo) {
			lo = r.Time
		}
		if r.Time.After(hi) {
			hi = r.Time
		}
	}
	return !lo.After(start) && !hi.Before(end)
}

// RefreshFieldRows returns local unchanged when it already covers q.
// Otherwise it fetches q from src and merges the result behind local, so
// local rows win on duplicate (time, field) pairs. The boolean reports
// whether src was called.
func RefreshFieldRows(ctx context.Context, local []FieldRow, q DatasetQuery, src DatasetSource) ([]FieldRow, bool, error) {
	if q.End.Before(q.Start) {
		return nil, false, &InputValidationError{
			Field:  "date_range",
			Reason: fmt.Sprintf("end %s is before start %s", q.End.Format(time.DateOnly), q.Start.Format(time.DateOnly)),
		}
	}
	if Covers(local, q.Start, q.End) {
		return local, false, nil
	}
	fetched, err := src.FetchFieldRows(ctx, q)
	if err != nil {
		return nil, true, fmt.Errorf("fetch %s rows: %w", q.Variable.Description(), err)
	}
	return MergeFieldRows(local, fetched), true, nil
}
