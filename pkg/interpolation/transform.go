package interpolation

import "math"

// ValueTransform maps observed values into the domain the surface is fitted in
// and back.
type ValueTransform interface {
	Forward(v float64) float64
	Inverse(v float64) float64
}

// LogTransform fits log10(v + Offset). Thickness spans several orders of
// magnitude, and fitting in log space keeps large deposits from dominating the
// surface. Offset must be positive.
type LogTransform struct {
	Offset float64
}

// Forward returns log10(v + Offset).
func (t LogTransform) Forward(v float64) float64 {
	return math.Log10(v + t.Offset)
}

// Inverse returns 10^v - Offset.
func (t LogTransform) Inverse(v float64) float64 {
	return math.Pow(10, v) - t.Offset
}

// IdentityTransform fits raw values.
type IdentityTransform struct{}

// Forward returns v.
func (IdentityTransform) Forward(v float64) float64 { return v }

// Inverse returns v.
func (IdentityTransform) Inverse(v float64) float64 { return v }
