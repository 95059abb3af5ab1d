// Package taper builds the directional distance-decay weight applied to the
// interpolated surface around the eruption source.
package taper

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"ashfall/internal/models"
)

// Params describes the source and the decay radii in degrees.
type Params struct {
	SourceLon float64
	SourceLat float64

	// SouthBoost stretches distances south of the source so that the weight
	// decays faster there. 1 is isotropic.
	SouthBoost float64

	InnerRadius float64 // full weight up to here
	OuterRadius float64 // zero weight from here on
}

// DefaultParams returns the reference source at Tambora.
func DefaultParams() Params {
	return Params{
		SourceLon:   118.0,
		SourceLat:   -8.25,
		SouthBoost:  2,
		InnerRadius: 3.5,
		OuterRadius: 20,
	}
}

// Taper evaluates the weight model for a fixed source.
type Taper struct {
	p      Params
	cosLat float64
}

// New validates p.
func New(p Params) (*Taper, error) {
	switch {
	case math.IsNaN(p.InnerRadius) || math.IsNaN(p.OuterRadius) || math.IsNaN(p.SouthBoost):
		return nil, eris.Wrap(models.ErrDegenerateTaper, "taper: NaN parameter")
	case p.InnerRadius < 0:
		return nil, eris.Wrapf(models.ErrDegenerateTaper, "taper: inner radius %g is negative", p.InnerRadius)
	case p.InnerRadius >= p.OuterRadius:
		return nil, eris.Wrapf(models.ErrDegenerateTaper, "taper: inner radius %g not below outer radius %g",
			p.InnerRadius, p.OuterRadius)
	case p.SouthBoost < 1:
		return nil, eris.Wrapf(models.ErrDegenerateTaper, "taper: south boost %g below 1", p.SouthBoost)
	}
	return &Taper{p: p, cosLat: math.Cos(p.SourceLat * math.Pi / 180)}, nil
}

// Params returns the taper parameters.
func (t *Taper) Params() Params { return t.p }

// Radius returns the anisotropic distance of (lon, lat) from the source.
func (t *Taper) Radius(lon, lat float64) float64 {
	dx := (lon - t.p.SourceLon) * t.cosLat
	dy := lat - t.p.SourceLat
	if dy < 0 {
		dy *= t.p.SouthBoost
	}
	return math.Hypot(dx, dy)
}

// WeightAt returns the weight for a radius r.
func (t *Taper) WeightAt(r float64) float64 {
	r0, r1 := t.p.InnerRadius, t.p.OuterRadius
	switch {
	case r <= r0:
		return 1
	case r >= r1:
		return 0
	}
	return 1 - (r-r0)/(r1-r0)
}

// Weight returns the weight at (lon, lat).
func (t *Taper) Weight(lon, lat float64) float64 {
	return t.WeightAt(t.Radius(lon, lat))
}

// Field evaluates the weight at every node of g.
func (t *Taper) Field(g models.Grid) *models.WeightField {
	w := &models.WeightField{Grid: g, Values: make([]float64, g.Len())}
	xs := g.Xs()
	for j := 0; j < g.NY; j++ {
		y := g.Y(j)
		for i, x := range xs {
			w.Values[g.Index(i, j)] = t.Weight(x, y)
		}
	}
	return w
}

// Apply multiplies f by w into a new field. Nodes with zero weight are exactly
// zero, including nodes where f is undefined.
func Apply(f *models.ScalarField, w *models.WeightField) (*models.ScalarField, error) {
	if f == nil || w == nil {
		return nil, eris.New("taper: nil field or weights")
	}
	if !f.Grid.Equal(w.Grid) {
		return nil, eris.Errorf("taper: field grid %dx%d does not match weight grid %dx%d",
			f.Grid.NX, f.Grid.NY, w.Grid.NX, w.Grid.NY)
	}

	out := models.NewScalarField(f.Grid)
	zeroed := 0
	for k, v := range f.Values {
		if w.Values[k] == 0 {
			out.Values[k] = 0
			zeroed++
			continue
		}
		out.Values[k] = v * w.Values[k]
	}

	zap.L().Debug("applied taper", zap.Int("nodes", len(out.Values)), zap.Int("zeroed", zeroed))
	return out, nil
}
