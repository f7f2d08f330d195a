package domain

// Unit conversions. Depths are inches, volumes acre-feet, areas acres.
const (
	InchesPerFoot = 12.0
	InchesToFeet  = 1.0 / InchesPerFoot
)

// AcreFeetFromInches converts a depth over an area to a volume.
func AcreFeetFromInches(inches, areaAcres float64) float64 {
	return inches * InchesToFeet * areaAcres
}

// InchesFromAcreFeet converts a pooled volume over a pooled area to a depth.
func InchesFromAcreFeet(acreFeet, areaAcres float64) float64 {
	return acreFeet * InchesPerFoot / areaAcres
}
