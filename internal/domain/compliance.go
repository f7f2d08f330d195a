package domain

// IsCompliant reports whether a water-year cumulative applied-water use stays
// within the agreement's maximum consumptive use. Equality is compliant.
func IsCompliant(cumulativeAF, maxConsumptiveUseAF float64) bool {
	return cumulativeAF <= maxConsumptiveUseAF
}
