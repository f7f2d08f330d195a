package csvstore

import (
	"encoding/csv"
	"io"

	"github.com/mmaneta/eki-lpr-update/internal/domain"
)

// Consumptive-use table columns, in file order.
var cuColumns = []string{
	"unit_id",
	"time",
	"effective_precip",
	"runoff",
	"cu_from_soil_storage",
	"soil_storage_after",
	"cu_from_applied_water",
	"cu_from_precip",
	"precip_depth",
	"et_depth",
}

// WriteConsumptiveUse writes one row per period of each series.
func WriteConsumptiveUse(w io.Writer, series ...domain.PartitionSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cuColumns); err != nil {
		return err
	}
	for _, s := range series {
		for i := 0; i < s.Len(); i++ {
			row := []string{
				s.Unit,
				fmtTime(s.Time[i]),
				fmtFloat(s.EffectivePrecip[i]),
				fmtFloat(s.Runoff[i]),
				fmtFloat(s.CUFromSoilStorage[i]),
				fmtFloat(s.SoilStorage[i]),
				fmtFloat(s.CUFromAppliedWater[i]),
				fmtFloat(s.CUFromPrecip[i]),
				fmtFloat(s.Precip[i]),
				fmtFloat(s.ET[i]),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadConsumptiveUse parses a consumptive-use table back into one series
// per unit, in order of first appearance.
func ReadConsumptiveUse(r io.Reader, name string) ([]domain.PartitionSeries, error) {
	t, err := readTable(r, name, cuColumns...)
	if err != nil {
		return nil, err
	}

	var order []string
	byUnit := make(map[string][]domain.Partition)
	for i := range t.records {
		unit := t.str(i, "unit_id")
		if unit == "" {
			return nil, t.invalid(i, "unit_id", "empty unit id")
		}
		p, err := t.partition(i)
		if err != nil {
			return nil, err
		}
		if _, ok := byUnit[unit]; !ok {
			order = append(order, unit)
		}
		byUnit[unit] = append(byUnit[unit], p)
	}

	out := make([]domain.PartitionSeries, 0, len(order))
	for _, unit := range order {
		out = append(out, domain.SeriesFromRows(unit, byUnit[unit]))
	}
	return out, nil
}

func (t *table) partition(i int) (domain.Partition, error) {
	var p domain.Partition
	var err error
	if p.Time, err = t.time(i, "time"); err != nil {
		return p, err
	}
	fields := []struct {
		col string
		dst *float64
	}{
		{"effective_precip", &p.EffectivePrecip},
		{"runoff", &p.Runoff},
		{"cu_from_soil_storage", &p.CUFromSoilStorage},
		{"soil_storage_after", &p.SoilStorage},
		{"cu_from_applied_water", &p.CUFromAppliedWater},
		{"cu_from_precip", &p.CUFromPrecip},
		{"precip_depth", &p.Precip},
		{"et_depth", &p.ET},
	}
	for _, f := range fields {
		if *f.dst, err = t.float(i, f.col); err != nil {
			return p, err
		}
	}
	return p, nil
}
