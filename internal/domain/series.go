package domain

import (
	"fmt"
	"slices"
	"time"
)

// BuildOptions selects the fields and periods a SeriesBuilder works with.
type BuildOptions struct {
	ProgramYear string    // key table LRP_Yr value, e.g. "Yr1"; empty keeps all
	Repurposed  bool      // keep only keys with this repurposed flag
	EndDate     time.Time // drop rows after this date; zero keeps all
}

// SeriesBuilder turns per-field precipitation and ET rows into depth-weighted
// per-unit series. The unit membership is materialized once at construction.
type SeriesBuilder struct {
	units  []string
	fields map[string][]string // unit -> field ids
	precip map[string][]FieldRow
	et     map[string][]FieldRow
}

// NewSeriesBuilder filters keys by opts and indexes rows by field id.
// Duplicate (field, time) rows are resolved keep-first.
func NewSeriesBuilder(precip, et []FieldRow, keys []FieldKey, opts BuildOptions) *SeriesBuilder {
	b := &SeriesBuilder{
		fields: make(map[string][]string),
		precip: indexByField(MergeFieldRows(precip), opts.EndDate),
		et:     indexByField(MergeFieldRows(et), opts.EndDate),
	}
	for _, k := range keys {
		if opts.ProgramYear != "" && k.ProgramYear != opts.ProgramYear {
			continue
		}
		if k.Repurposed != opts.Repurposed {
			continue
		}
		if _, ok := b.fields[k.UnitID]; !ok {
			b.units = append(b.units, k.UnitID)
		}
		if !slices.Contains(b.fields[k.UnitID], k.FieldID) {
			b.fields[k.UnitID] = append(b.fields[k.UnitID], k.FieldID)
		}
	}
	return b
}

// Units returns the accounting units in key table order.
func (b *SeriesBuilder) Units() []string {
	return slices.Clone(b.units)
}

// FieldIDs returns the fields pooled into unit.
func (b *SeriesBuilder) FieldIDs(unit string) []string {
	return slices.Clone(b.fields[unit])
}

// Build returns the depth-weighted series of one unit, ordered by time.
func (b *SeriesBuilder) Build(unit string) ([]Sample, error) {
	fieldIDs := b.fields[unit]
	if len(fieldIDs) == 0 {
		return nil, &NoDataError{Unit: unit, Unknown: true}
	}

	et, err := weightedDepths(unit, VariableET, fieldIDs, b.et)
	if err != nil {
		return nil, err
	}
	precip, err := weightedDepths(unit, VariablePrecip, fieldIDs, b.precip)
	if err != nil {
		return nil, err
	}

	if len(precip) != len(et) {
		return nil, &InputValidationError{
			Unit:   unit,
			Field:  "time",
			Reason: fmt.Sprintf("precipitation has %d periods, ET has %d", len(precip), len(et)),
		}
	}

	samples := make([]Sample, len(precip))
	for i := range precip {
		if !precip[i].time.Equal(et[i].time) {
			return nil, &InputValidationError{
				Unit:   unit,
				Field:  "time",
				Reason: fmt.Sprintf("precipitation period %s does not match ET period %s", precip[i].time.Format(time.DateOnly), et[i].time.Format(time.DateOnly)),
			}
		}
		samples[i] = Sample{Time: precip[i].time, Precip: precip[i].depth, ET: et[i].depth}
	}
	return samples, nil
}

// BuildAll builds every unit, failing on the first unit that cannot be built.
func (b *SeriesBuilder) BuildAll() (map[string][]Sample, error) {
	out := make(map[string][]Sample, len(b.units))
	for _, unit := range b.units {
		s, err := b.Build(unit)
		if err != nil {
			return nil, err
		}
		out[unit] = s
	}
	return out, nil
}

type depthAt struct {
	time  time.Time
	depth float64
}

type pooled struct {
	volume float64
	area   float64
}

func weightedDepths(unit string, v Variable, fieldIDs []string, rows map[string][]FieldRow) ([]depthAt, error) {
	sums := make(map[time.Time]*pooled)
	for _, id := range fieldIDs {
		for _, r := range rows[id] {
			t := r.Time.UTC()
			p, ok := sums[t]
			if !ok {
				p = &pooled{}
				sums[t] = p
			}
			p.volume += r.VolumeAF
			p.area += r.AreaAcres
		}
	}
	if len(sums) == 0 {
		return nil, &NoDataError{Unit: unit, Variable: v, FieldIDs: slices.Clone(fieldIDs)}
	}

	out := make([]depthAt, 0, len(sums))
	for t, p := range sums {
		if !(p.area > 0) {
			return nil, &InputValidationError{
				Unit:   unit,
				Field:  "acres",
				Reason: fmt.Sprintf("pooled %s area is %g at %s", v.Description(), p.area, t.Format(time.DateOnly)),
			}
		}
		out = append(out, depthAt{time: t, depth: InchesFromAcreFeet(p.volume, p.area)})
	}
	slices.SortFunc(out, func(a, b depthAt) int { return a.time.Compare(b.time) })
	return out, nil
}

func indexByField(rows []FieldRow, end time.Time) map[string][]FieldRow {
	out := make(map[string][]FieldRow)
	for _, r := range rows {
		if !end.IsZero() && r.Time.After(end) {
			continue
		}
		out[r.FieldID] = append(out[r.FieldID], r)
	}
	return out
}

// MergeFieldRows concatenates row sets and drops later duplicates of the same
// (time, field) pair, keeping the first occurrence. Order is preserved.
func MergeFieldRows(sets ...[]FieldRow) []FieldRow {
	type key struct {
		t     time.Time
		field string
	}
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	seen := make(map[key]struct{}, n)
	out := make([]FieldRow, 0, n)
	for _, s := range sets {
		for _, r := range s {
			k := key{t: r.Time.UTC(), field: r.FieldID}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
