package models

import "math"

// Observation is a single ash-fall measurement site.
type Observation struct {
	// Lon and Lat are geographic coordinates in degrees (WGS84)
	Lon float64
	Lat float64

	// ThicknessCM is the measured deposit thickness in centimetres.
	// Zero marks a "dry" site where no ash was found.
	ThicknessCM float64
}

// Dry reports whether the site recorded no ash.
func (o Observation) Dry() bool {
	return o.ThicknessCM == 0
}

// SplitObservations separates sites with a positive thickness from dry sites.
// Negative or non-finite thicknesses are dropped from both sets.
func SplitObservations(obs []Observation) (positive, dry []Observation) {
	for _, o := range obs {
		switch {
		case math.IsNaN(o.ThicknessCM) || math.IsInf(o.ThicknessCM, 0):
			continue
		case o.ThicknessCM > 0:
			positive = append(positive, o)
		case o.ThicknessCM == 0:
			dry = append(dry, o)
		}
	}
	return positive, dry
}

// Extent returns the bounding box of the observation coordinates.
// The zero Bounds is returned for an empty slice.
func Extent(obs []Observation) Bounds {
	if len(obs) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, o := range obs {
		b.MinX = math.Min(b.MinX, o.Lon)
		b.MaxX = math.Max(b.MaxX, o.Lon)
		b.MinY = math.Min(b.MinY, o.Lat)
		b.MaxY = math.Max(b.MaxY, o.Lat)
	}
	return b
}
