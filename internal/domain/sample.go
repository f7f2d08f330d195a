package domain

import "time"

// Variable identifies a source dataset by its OpenET variable name.
type Variable string

const (
	VariablePrecip Variable = "pr"
	VariableET     Variable = "ET"
)

// Description is the human-readable name used in error messages.
func (v Variable) Description() string {
	switch v {
	case VariablePrecip:
		return "precipitation"
	case VariableET:
		return "evapotranspiration"
	default:
		return string(v)
	}
}

// FieldRow is one field at one period from a precipitation or ET table.
type FieldRow struct {
	Time      time.Time
	FieldID   string
	VolumeAF  float64 // acre-feet
	AreaAcres float64
}

// FieldKey assigns a field to an accounting unit.
type FieldKey struct {
	FieldID     string
	UnitID      string
	ProgramYear string // e.g. "Yr1"
	Repurposed  bool
}

// Sample is one period of a unit's depth-weighted series, in inches.
type Sample struct {
	Time   time.Time
	Precip float64
	ET     float64
}

// Partition is the soil moisture balance output for one period, in inches.
type Partition struct {
	Time               time.Time `json:"time"`
	Precip             float64   `json:"precip_depth"`
	ET                 float64   `json:"et_depth"`
	EffectivePrecip    float64   `json:"effective_precip"`
	Runoff             float64   `json:"runoff"`
	CUFromSoilStorage  float64   `json:"cu_from_soil_storage"`
	SoilStorage        float64   `json:"soil_storage_after"`
	CUFromAppliedWater float64   `json:"cu_from_applied_water"`
	CUFromPrecip       float64   `json:"cu_from_precip"`
}

// PartitionSeries holds a unit's balance as parallel columns, one entry per
// period. Columns always have equal length.
type PartitionSeries struct {
	Unit               string
	Time               []time.Time
	Precip             []float64
	ET                 []float64
	EffectivePrecip    []float64
	Runoff             []float64
	CUFromSoilStorage  []float64
	SoilStorage        []float64
	CUFromAppliedWater []float64
	CUFromPrecip       []float64
}

func newPartitionSeries(unit string, n int) PartitionSeries {
	return PartitionSeries{
		Unit:               unit,
		Time:               make([]time.Time, 0, n),
		Precip:             make([]float64, 0, n),
		ET:                 make([]float64, 0, n),
		EffectivePrecip:    make([]float64, 0, n),
		Runoff:             make([]float64, 0, n),
		CUFromSoilStorage:  make([]float64, 0, n),
		SoilStorage:        make([]float64, 0, n),
		CUFromAppliedWater: make([]float64, 0, n),
		CUFromPrecip:       make([]float64, 0, n),
	}
}

func (s *PartitionSeries) append(p Partition) {
	s.Time = append(s.Time, p.Time)
	s.Precip = append(s.Precip, p.Precip)
	s.ET = append(s.ET, p.ET)
	s.EffectivePrecip = append(s.EffectivePrecip, p.EffectivePrecip)
	s.Runoff = append(s.Runoff, p.Runoff)
	s.CUFromSoilStorage = append(s.CUFromSoilStorage, p.CUFromSoilStorage)
	s.SoilStorage = append(s.SoilStorage, p.SoilStorage)
	s.CUFromAppliedWater = append(s.CUFromAppliedWater, p.CUFromAppliedWater)
	s.CUFromPrecip = append(s.CUFromPrecip, p.CUFromPrecip)
}

// Len returns the number of periods.
func (s PartitionSeries) Len() int { return len(s.Time) }

// Row returns period i as a Partition.
func (s PartitionSeries) Row(i int) Partition {
	return Partition{
		Time:               s.Time[i],
		Precip:             s.Precip[i],
		ET:                 s.ET[i],
		EffectivePrecip:    s.EffectivePrecip[i],
		Runoff:             s.Runoff[i],
		CUFromSoilStorage:  s.CUFromSoilStorage[i],
		SoilStorage:        s.SoilStorage[i],
		CUFromAppliedWater: s.CUFromAppliedWater[i],
		CUFromPrecip:       s.CUFromPrecip[i],
	}
}

// Rows returns every period as a Partition.
func (s PartitionSeries) Rows() []Partition {
	rows := make([]Partition, s.Len())
	for i := range rows {
		rows[i] = s.Row(i)
	}
	return rows
}

// Through returns the prefix of the series up to and including end. The
// balance is causal, so the prefix equals the balance of the truncated input.
func (s PartitionSeries) Through(end time.Time) PartitionSeries {
	n := 0
	for n < len(s.Time) && !s.Time[n].After(end) {
		n++
	}
	return PartitionSeries{
		Unit:               s.Unit,
		Time:               s.Time[:n:n],
		Precip:             s.Precip[:n:n],
		ET:                 s.ET[:n:n],
		EffectivePrecip:    s.EffectivePrecip[:n:n],
		Runoff:             s.Runoff[:n:n],
		CUFromSoilStorage:  s.CUFromSoilStorage[:n:n],
		SoilStorage:        s.SoilStorage[:n:n],
		CUFromAppliedWater: s.CUFromAppliedWater[:n:n],
		CUFromPrecip:       s.CUFromPrecip[:n:n],
	}
}

// SeriesFromRows rebuilds a series from persisted rows, e.g. a stored
// consumptive-use table.
func SeriesFromRows(unit string, rows []Partition) PartitionSeries {
	s := newPartitionSeries(unit, len(rows))
	for _, r := range rows {
		s.append(r)
	}
	return s
}
