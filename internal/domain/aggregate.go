package domain

import (
	"fmt"
	"math"
)

// QuarterlyAggregate sums a unit's balance over one water-year quarter.
// Depths are inches; AF columns are acre-feet.
type QuarterlyAggregate struct {
	WaterYear            int     `json:"water_year"`
	Quarter              Quarter `json:"quarter,omitempty"`
	ET                   float64 `json:"et_in"`
	Precip               float64 `json:"precip_in"`
	EffectivePrecip      float64 `json:"effective_precip_in"`
	CUFromPrecip         float64 `json:"cu_from_precip_in"`
	CUFromAppliedWater   float64 `json:"cu_from_applied_water_in"`
	CUFromAppliedWaterAF float64 `json:"cu_from_applied_water_af"`
	CumulativeAF         float64 `json:"cumulative_af"`
}

// WaterYearSummary is the quarterly table of one water year plus its total.
// Quarters is always Q1..Q4; Total.Quarter is empty.
type WaterYearSummary struct {
	WaterYear int                   `json:"water_year"`
	AreaAcres float64               `json:"area_acres"`
	Quarters  [4]QuarterlyAggregate `json:"quarters"`
	Total     QuarterlyAggregate    `json:"total"`
}

// AggregateWaterYear rolls series up into the quarters of waterYear. Quarters
// without samples are zero-filled. Applied-water use is converted to
// acre-feet over areaAcres and accumulated in quarter order.
func AggregateWaterYear(series PartitionSeries, areaAcres float64, waterYear int) (WaterYearSummary, error) {
	if !(areaAcres > 0) || math.IsInf(areaAcres, 0) {
		return WaterYearSummary{}, &InputValidationError{
			Unit:   series.Unit,
			Field:  "area",
			Reason: fmt.Sprintf("area must be > 0 acres, got %g", areaAcres),
		}
	}

	sum := WaterYearSummary{WaterYear: waterYear, AreaAcres: areaAcres}
	for i, q := range Quarters {
		sum.Quarters[i] = QuarterlyAggregate{WaterYear: waterYear, Quarter: q}
	}

	for i, t := range series.Time {
		if WaterYearOf(t) != waterYear {
			continue
		}
		agg := &sum.Quarters[QuarterOf(t).Index()]
		agg.ET += series.ET[i]
		agg.Precip += series.Precip[i]
		agg.EffectivePrecip += series.EffectivePrecip[i]
		agg.CUFromPrecip += series.CUFromPrecip[i]
		agg.CUFromAppliedWater += series.CUFromAppliedWater[i]
	}

	cumulative := 0.0
	total := QuarterlyAggregate{WaterYear: waterYear}
	for i := range sum.Quarters {
		agg := &sum.Quarters[i]
		agg.CUFromAppliedWaterAF = AcreFeetFromInches(agg.CUFromAppliedWater, areaAcres)
		cumulative += agg.CUFromAppliedWaterAF
		agg.CumulativeAF = cumulative

		total.ET += agg.ET
		total.Precip += agg.Precip
		total.EffectivePrecip += agg.EffectivePrecip
		total.CUFromPrecip += agg.CUFromPrecip
		total.CUFromAppliedWater += agg.CUFromAppliedWater
		total.CUFromAppliedWaterAF += agg.CUFromAppliedWaterAF
	}
	total.CumulativeAF = cumulative
	sum.Total = total
	return sum, nil
}
