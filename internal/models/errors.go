package models

import "github.com/rotisserie/eris"

// Fatal pipeline conditions. Stages wrap these with context; callers classify
// with eris.Is.
var (
	// ErrInsufficientData is returned when too few positive observations are
	// available to fit a surface.
	ErrInsufficientData = eris.New("insufficient data")

	// ErrDegenerateTaper is returned for taper radii or boost values that do
	// not describe a decaying weight.
	ErrDegenerateTaper = eris.New("degenerate taper")

	// ErrInvalidRaster is returned for a land-use raster that cannot be
	// overlaid (no coordinate reference, bad shape).
	ErrInvalidRaster = eris.New("invalid raster")

	// ErrInvalidGeometry is returned when no valid region geometry can be built.
	ErrInvalidGeometry = eris.New("invalid geometry")
)
