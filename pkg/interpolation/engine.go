package interpolation

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"ashfall/internal/models"
)

// MinObservations is the smallest number of positive sites a surface is
// fitted from. Params.MinObservations below this value is raised to it.
const MinObservations = 5

// Params holds the parameters for RBF interpolation
type Params struct {
	Kernel  Kernel
	Epsilon float64 // kernel shape parameter, 0 selects DefaultEpsilon
	Smooth  float64

	// Transform maps thickness into the fitting domain. Nil means
	// LogTransform{Offset: 0.01}.
	Transform ValueTransform

	MinObservations int
	ClipFactor      float64 // clip to ClipFactor*max(observed), 0 disables
	MaxDistance     float64 // degrees, 0 disables
}

// DefaultParams returns the parameters of the reference reconstruction.
func DefaultParams() Params {
	return Params{
		Kernel:          Multiquadric,
		Smooth:          0.005,
		Transform:       LogTransform{Offset: 0.01},
		MinObservations: MinObservations,
		ClipFactor:      1.2,
	}
}

// ProgressCallback is a function that reports progress during interpolation
type ProgressCallback func(completed, total int, message string)

// Engine fits a thickness surface from observations and samples it on a grid.
type Engine struct {
	params           Params
	progressCallback ProgressCallback
}

// NewEngine validates p and returns an engine.
func NewEngine(p Params) (*Engine, error) {
	if p.Kernel == "" {
		p.Kernel = Multiquadric
	}
	k, err := ParseKernel(string(p.Kernel))
	if err != nil {
		return nil, err
	}
	p.Kernel = k
	if p.Transform == nil {
		p.Transform = LogTransform{Offset: 0.01}
	}
	if lt, ok := p.Transform.(LogTransform); ok && !(lt.Offset > 0) {
		return nil, eris.Errorf("interpolation: log offset must be positive, got %g", lt.Offset)
	}
	if p.MinObservations < MinObservations {
		p.MinObservations = MinObservations
	}
	if p.Epsilon < 0 || p.Smooth < 0 || p.ClipFactor < 0 || p.MaxDistance < 0 {
		return nil, eris.Errorf("interpolation: negative parameter in %+v", p)
	}
	return &Engine{params: p}, nil
}

// SetProgressCallback sets a callback function for progress reporting
func (e *Engine) SetProgressCallback(callback ProgressCallback) {
	e.progressCallback = callback
}

func (e *Engine) reportProgress(completed, total int, message string) {
	if e.progressCallback != nil {
		e.progressCallback(completed, total, message)
	}
}

// Params returns the effective parameters.
func (e *Engine) Params() Params { return e.params }

// Interpolate fits the surface to the positive observations and returns it
// sampled at every node of g. Nodes whose inverted value is non-finite or not
// positive are NaN.
func (e *Engine) Interpolate(obs []models.Observation, g models.Grid) (*models.ScalarField, error) {
	positive, dry := models.SplitObservations(obs)
	if len(positive) < e.params.MinObservations {
		return nil, eris.Wrapf(models.ErrInsufficientData,
			"interpolation: %d positive observations, need %d", len(positive), e.params.MinObservations)
	}

	n := len(positive)
	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	thickness := make([]float64, n)
	for i, o := range positive {
		xs[i] = o.Lon
		ys[i] = o.Lat
		zs[i] = e.params.Transform.Forward(o.ThicknessCM)
		thickness[i] = o.ThicknessCM
	}
	maxObserved := floats.Max(thickness)

	eps := e.params.Epsilon
	if eps == 0 {
		eps = DefaultEpsilon(xs, ys)
	}

	e.reportProgress(0, 3, "fitting surface")
	rbf, err := Fit(xs, ys, zs, e.params.Kernel, eps, e.params.Smooth)
	if err != nil {
		return nil, eris.Wrap(err, "interpolation: fit")
	}

	e.reportProgress(1, 3, "evaluating grid")
	raw := rbf.EvaluateGrid(g)

	var dist []float64
	if e.params.MaxDistance > 0 {
		sites := make([]Point2D, n)
		for i := range positive {
			sites[i] = Point2D{X: xs[i], Y: ys[i]}
		}
		dist = NearestDistance(sites, g)
	}

	e.reportProgress(2, 3, "inverting values")
	field := models.NewScalarField(g)
	ceiling := e.params.ClipFactor * maxObserved
	undefined := 0
	for k, v := range raw {
		out := e.params.Transform.Inverse(v)
		switch {
		case math.IsNaN(out) || math.IsInf(out, 0) || out <= 0:
			out = math.NaN()
		case dist != nil && dist[k] > e.params.MaxDistance:
			out = math.NaN()
		case e.params.ClipFactor > 0 && out > ceiling:
			out = ceiling
		}
		if math.IsNaN(out) {
			undefined++
		}
		field.Values[k] = out
	}
	e.reportProgress(3, 3, "done")

	zap.L().Debug("interpolated surface",
		zap.Int("positive", n),
		zap.Int("dry", len(dry)),
		zap.String("kernel", string(e.params.Kernel)),
		zap.Float64("epsilon", eps),
		zap.Int("nodes", g.Len()),
		zap.Int("undefined", undefined))

	return field, nil
}
