package catchment

import (
	"math"

	"screening/internal/targeting/models"
)

const (
	metresPerKilometre = 1000
	// kilometresPerMile is deliberately 1.6 rather than 1.60934; existing
	// catchment boundaries were drawn with it.
	kilometresPerMile = 1.6
)

// DistanceMiles is the straight-line grid distance between a clinic and an
// area unit centroid.
func DistanceMiles(from models.GridReference, easting, northing int) float64 {
	dx := from.Easting - float64(easting)
	dy := from.Northing - float64(northing)
	return math.Sqrt(dx*dx+dy*dy) / (metresPerKilometre * kilometresPerMile)
}
