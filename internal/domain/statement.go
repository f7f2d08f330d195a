package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Agreement holds the terms of one LRP agreement. Number is the accounting
// unit id used in the field key table.
type Agreement struct {
	Number                     string  `json:"number" yaml:"number"`
	ParticipantName            string  `json:"participant_name" yaml:"participant_name"`
	AreaAcres                  float64 `json:"area_acres" yaml:"area_acres"`
	MinimumWaterUseReductionAF float64 `json:"minimum_water_use_reduction_af" yaml:"minimum_water_use_reduction_af"`
	BaselineWaterUseAF         float64 `json:"baseline_water_use_af" yaml:"baseline_water_use_af"`
	MaxConsumptiveUseAF        float64 `json:"max_consumptive_use_af" yaml:"max_consumptive_use_af"`
}

// Statement is the quarterly consumptive water use statement of one
// agreement: the plain table and verdict a report renderer consumes.
type Statement struct {
	ID          string           `json:"id"`
	Agreement   Agreement        `json:"agreement"`
	WaterYear   int              `json:"water_year"`
	Quarter     Quarter          `json:"quarter"`
	PeriodEnd   time.Time        `json:"period_end"`
	Summary     WaterYearSummary `json:"summary"`
	Compliant   bool             `json:"compliant"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// OutputEvent is the serialized form of a statement for a message sink.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// NewStatement evaluates summary against the agreement's maximum consumptive
// use.
func NewStatement(a Agreement, waterYear int, q Quarter, summary WaterYearSummary) (Statement, error) {
	if summary.WaterYear != waterYear {
		return Statement{}, &InputValidationError{
			Unit:   a.Number,
			Field:  "water_year",
			Reason: fmt.Sprintf("summary covers water year %d, statement requested for %d", summary.WaterYear, waterYear),
		}
	}
	end, err := QuarterEndDate(waterYear, q)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		ID:          uuid.NewString(),
		Agreement:   a,
		WaterYear:   waterYear,
		Quarter:     q,
		PeriodEnd:   end,
		Summary:     summary,
		Compliant:   IsCompliant(summary.Total.CumulativeAF, a.MaxConsumptiveUseAF),
		GeneratedAt: clock.Now().UTC(),
	}, nil
}

// SerializeStatement marshals a statement keyed by agreement number.
func SerializeStatement(s Statement) (OutputEvent, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize statement: %w", err)
	}
	return OutputEvent{
		Key:   []byte(s.Agreement.Number),
		Value: data,
		Headers: map[string]string{
			"water_year":   strconv.Itoa(s.WaterYear),
			"quarter":      string(s.Quarter),
			"compliant":    strconv.FormatBool(s.Compliant),
			"generated_at": s.GeneratedAt.Format(time.RFC3339),
		},
	}, nil
}
