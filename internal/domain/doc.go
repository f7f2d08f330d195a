// Package domain models the consumptive-use accounting of the Land
// Repurposing Program (LRP): parcels whose fields were taken out of irrigated
// production and must keep their groundwater use below an agreed maximum.
//
// # Data Source
//
// Precipitation and actual evapotranspiration (ET) come from OpenET
// multipolygon exports, one CSV per variable and program asset. Each row is
// one field at one period:
//
//	time,EKIfld,acre-feet,acres
//	2023-01-01,1001,12.4,80.5
//
// The volumetric column is acre-feet over the field's area. Fields are pooled
// into accounting units (agreement numbers, "concat_appl_ID") through the
// field key table, which also tags each field with its program year ("Yr1")
// and whether it is repurposed ("Y"/"N").
//
// Dataset files follow the naming convention
//
//	<Year>_<enrollment>_<status>_<variable>.csv
//	Year1_enrolled_repurposed_pr.csv
//
// and the precipitation and ET files of one run must agree on program year
// and status. See [ParseDatasetName] and [CheckCompatible].
//
// # Depth Weighting
//
// Per unit and period, depth in inches is the pooled volume over the pooled
// area:
//
//	depth_in = sum(acre_feet) * 12 / sum(acres)
//
// computed independently for precipitation and ET. See [SeriesBuilder].
//
// # Soil Moisture Balance
//
// The balance walks a unit's series in time order, carrying one soil storage
// value (inches, capacity 16 by default) from step to step:
//
//	effective  = min(P, ET, max(0, (0.70917*P^0.82416 - 0.11556) * 10^(0.02426*ET)))
//	remainder  = P - effective
//	runoff     = remainder * runoff_fraction
//	before_use = prev                                   (first step)
//	before_use = min(capacity, prev + remainder-runoff) (later steps)
//	cu_soil    = min(before_use, ET - effective)
//	cu_applied = ET - effective - cu_soil
//	cu_precip  = effective + cu_soil
//
// The first step does not recharge storage from the remainder. That
// asymmetry is kept as-is and is visible as [InitialStep]. Every step
// satisfies cu_applied + cu_precip == ET.
//
// # Water Years
//
// A water year runs October through September and is named by the calendar
// year it ends in. Quarters:
//
//	Q1 Oct-Dec (previous calendar year) | Q2 Jan-Mar | Q3 Apr-Jun | Q4 Jul-Sep
//
// Applied-water use is converted to acre-feet with the unit's repurposed
// area (1 inch over A acres = A/12 acre-feet) and accumulated across the
// quarters. An agreement is compliant when the water-year cumulative total
// does not exceed its maximum consumptive use.
package domain
