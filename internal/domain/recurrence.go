package domain

import (
	"errors"
	"fmt"
	"math"
)

// DefaultSoilStorageCapacity is the soil moisture reservoir size in inches.
const DefaultSoilStorageCapacity = 16.0

// SoilParams configures the soil moisture balance.
type SoilParams struct {
	Capacity       float64 // inches
	RunoffFraction float64 // share of non-effective precipitation lost to runoff, 0..1
	InitialStorage float64 // inches, used as-is at the first step
}

// DefaultSoilParams returns a 16 inch reservoir, no runoff, and an empty
// initial storage.
func DefaultSoilParams() SoilParams {
	return SoilParams{
		Capacity:       DefaultSoilStorageCapacity,
		RunoffFraction: 0,
		InitialStorage: 0,
	}
}

// Validate rejects a non-positive capacity, a runoff fraction outside [0, 1],
// and a negative initial storage.
func (p SoilParams) Validate() error {
	if !(p.Capacity > 0) || math.IsInf(p.Capacity, 0) {
		return errors.New("soil storage capacity must be > 0")
	}
	if !(p.RunoffFraction >= 0 && p.RunoffFraction <= 1) {
		return errors.New("runoff fraction must be in [0, 1]")
	}
	if !(p.InitialStorage >= 0) || math.IsInf(p.InitialStorage, 0) {
		return errors.New("initial soil storage must be >= 0")
	}
	return nil
}

// StepKind selects how storage available before use is computed.
type StepKind int

const (
	// InitialStep uses the carried storage unchanged; the precipitation
	// remainder of the first period does not recharge the reservoir.
	InitialStep StepKind = iota
	// SubsequentStep recharges the carried storage with the remainder after
	// runoff, capped at capacity.
	SubsequentStep
)

func (k StepKind) String() string {
	switch k {
	case InitialStep:
		return "initial"
	case SubsequentStep:
		return "subsequent"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// StepKindAt returns the kind of step executed at index i.
func StepKindAt(i int) StepKind {
	if i == 0 {
		return InitialStep
	}
	return SubsequentStep
}

// Step advances the balance by one period. The returned Partition carries
// the storage after use in SoilStorage; Time is left for the caller to set.
func Step(kind StepKind, p SoilParams, precip, et, prevStorage float64) Partition {
	effective := EffectivePrecip(precip, et)
	remainder := precip - effective
	runoff := remainder * p.RunoffFraction
	recharge := remainder - runoff

	var beforeUse float64
	switch kind {
	case InitialStep:
		beforeUse = prevStorage
	default:
		beforeUse = math.Min(p.Capacity, prevStorage+recharge)
	}

	cuSoil := math.Min(beforeUse, et-effective)
	afterUse := beforeUse - cuSoil

	return Partition{
		Precip:             precip,
		ET:                 et,
		EffectivePrecip:    effective,
		Runoff:             runoff,
		CUFromSoilStorage:  cuSoil,
		SoilStorage:        afterUse,
		CUFromAppliedWater: et - effective - cuSoil,
		CUFromPrecip:       effective + cuSoil,
	}
}

// RunRecurrence folds Step over samples in time order, starting from
// p.InitialStorage. Samples must be finite, non-negative, and strictly
// increasing in time.
func RunRecurrence(unit string, p SoilParams, samples []Sample) (PartitionSeries, error) {
	if err := p.Validate(); err != nil {
		return PartitionSeries{}, &InputValidationError{Unit: unit, Field: "soil parameters", Reason: err.Error()}
	}
	if err := validateSamples(unit, samples); err != nil {
		return PartitionSeries{}, err
	}

	out := newPartitionSeries(unit, len(samples))
	storage := p.InitialStorage
	for i, s := range samples {
		part := Step(StepKindAt(i), p, s.Precip, s.ET, storage)
		part.Time = s.Time
		if i > 0 && (part.SoilStorage < 0 || part.SoilStorage > p.Capacity) {
			return PartitionSeries{}, &CapacityViolationError{
				Unit:     unit,
				Index:    i,
				Time:     s.Time,
				Storage:  part.SoilStorage,
				Capacity: p.Capacity,
			}
		}
		out.append(part)
		storage = part.SoilStorage
	}
	return out, nil
}

func validateSamples(unit string, samples []Sample) error {
	for i, s := range samples {
		if s.Time.IsZero() {
			return &InputValidationError{Unit: unit, Field: "time", Reason: fmt.Sprintf("missing time at index %d", i)}
		}
		if i > 0 && !s.Time.After(samples[i-1].Time) {
			return &InputValidationError{
				Unit:   unit,
				Field:  "time",
				Reason: fmt.Sprintf("time %s at index %d is not after %s", s.Time.Format("2006-01-02"), i, samples[i-1].Time.Format("2006-01-02")),
			}
		}
		if err := checkDepth(s.Precip); err != nil {
			return &InputValidationError{Unit: unit, Field: "precip_depth", Reason: fmt.Sprintf("index %d: %v", i, err)}
		}
		if err := checkDepth(s.ET); err != nil {
			return &InputValidationError{Unit: unit, Field: "et_depth", Reason: fmt.Sprintf("index %d: %v", i, err)}
		}
	}
	return nil
}

func checkDepth(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("depth %v is not finite", v)
	}
	if v < 0 {
		return fmt.Errorf("depth %v is negative", v)
	}
	return nil
}
