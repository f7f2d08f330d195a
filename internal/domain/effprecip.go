package domain

import "math"

// Empirical effective precipitation curve coefficients.
const (
	effPrecipScale    = 0.70917
	effPrecipExponent = 0.82416
	effPrecipOffset   = 0.11556
	effPrecipETFactor = 0.02426
)

// EffectivePrecip returns the part of precip (inches) immediately usable
// against et (inches). The result is bounded by both inputs.
func EffectivePrecip(precip, et float64) float64 {
	curve := math.Max(0, (effPrecipScale*math.Pow(precip, effPrecipExponent)-effPrecipOffset)*math.Pow(10, effPrecipETFactor*et))
	return math.Min(precip, math.Min(et, curve))
}
