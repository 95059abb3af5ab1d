package interpolation

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashfall/internal/models"
)

// createTestSites returns a small irregular set of sites with a smooth
// positive signal.
func createTestSites() (xs, ys, zs []float64) {
	xs = []float64{0, 1, 2, 3, 4, 0.5, 2.5, 3.5}
	ys = []float64{0, 2, 1, 3, 0, 3.5, 2.5, 1.5}
	for i := range xs {
		zs = append(zs, 1+math.Sin(xs[i])+0.5*ys[i])
	}
	return xs, ys, zs
}

func testGrid(t *testing.T) models.Grid {
	t.Helper()
	g, err := models.NewGrid(models.Bounds{MinX: 0, MinY: 0, MaxX: 4, MaxY: 4}, 5, 5)
	require.NoError(t, err)
	return g
}

func TestParseKernel(t *testing.T) {
	cases := map[string]Kernel{
		"multiquadric":         Multiquadric,
		" Gaussian ":           Gaussian,
		"inverse_multiquadric": InverseMultiquadric,
		"thin-plate":           ThinPlate,
		"cubic":                Cubic,
	}
	for in, want := range cases {
		got, err := ParseKernel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseKernel("bicubic")
	assert.Error(t, err)
}

func TestKernelShapes(t *testing.T) {
	mq, err := Multiquadric.Func(2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mq(0), 1e-12)
	assert.InDelta(t, math.Sqrt(2), mq(2), 1e-12)

	inv, err := InverseMultiquadric.Func(2)
	require.NoError(t, err)
	assert.InDelta(t, 1/math.Sqrt(2), inv(2), 1e-12)

	gs, err := Gaussian.Func(1)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-4), gs(2), 1e-12)

	tp, err := ThinPlate.Func(0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tp(0))
	assert.InDelta(t, 4*math.Log(2), tp(2), 1e-12)

	_, err = Multiquadric.Func(0)
	assert.Error(t, err)
}

func TestDefaultEpsilon(t *testing.T) {
	// 4 x 2 box with 8 points: sqrt(8/8) = 1
	xs := []float64{0, 4, 0, 4, 1, 2, 3, 2}
	ys := []float64{0, 0, 2, 2, 1, 1, 1, 0.5}
	assert.InDelta(t, 1.0, DefaultEpsilon(xs, ys), 1e-12)

	// collinear points drop the zero edge
	assert.InDelta(t, 2.0, DefaultEpsilon([]float64{0, 4}, []float64{1, 1}), 1e-12)
}

func TestLogTransformRoundTrip(t *testing.T) {
	tr := LogTransform{Offset: 0.01}
	for _, v := range []float64{0, 0.1, 1, 250} {
		assert.InDelta(t, v, tr.Inverse(tr.Forward(v)), 1e-9)
	}
	assert.InDelta(t, 0.0, tr.Forward(0.99), 1e-12)
}

func TestFitIsExactWithoutSmoothing(t *testing.T) {
	xs, ys, zs := createTestSites()
	for _, k := range []Kernel{Multiquadric, InverseMultiquadric, Gaussian, Linear} {
		t.Run(string(k), func(t *testing.T) {
			rbf, err := Fit(xs, ys, zs, k, 1.5, 0)
			require.NoError(t, err)
			for i := range xs {
				assert.InDelta(t, zs[i], rbf.At(xs[i], ys[i]), 1e-6)
			}
		})
	}
}

func TestFitRejectsMismatchedInputs(t *testing.T) {
	_, err := Fit([]float64{0, 1}, []float64{0}, []float64{1, 2}, Linear, 1, 0)
	assert.Error(t, err)
}

func TestEvaluateGridMatchesPointwise(t *testing.T) {
	xs, ys, zs := createTestSites()
	rbf, err := Fit(xs, ys, zs, Multiquadric, 1, 0.005)
	require.NoError(t, err)

	g := testGrid(t)
	vals := rbf.EvaluateGrid(g)
	require.Len(t, vals, g.Len())
	for j := 0; j < g.NY; j++ {
		for i := 0; i < g.NX; i++ {
			assert.InDelta(t, rbf.At(g.X(i), g.Y(j)), vals[g.Index(i, j)], 1e-9)
		}
	}
}

func TestEngineMinimumObservations(t *testing.T) {
	eng, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	g := testGrid(t)

	obs := []models.Observation{
		{Lon: 0, Lat: 0, ThicknessCM: 5},
		{Lon: 1, Lat: 3, ThicknessCM: 2},
		{Lon: 3, Lat: 1, ThicknessCM: 8},
		{Lon: 4, Lat: 4, ThicknessCM: 1},
		{Lon: 2, Lat: 2, ThicknessCM: 0}, // dry sites never count
		{Lon: 2, Lat: 3, ThicknessCM: 0},
	}
	_, err = eng.Interpolate(obs, g)
	require.Error(t, err)
	assert.True(t, eris.Is(err, models.ErrInsufficientData))

	obs = append(obs, models.Observation{Lon: 2, Lat: 1, ThicknessCM: 3})
	field, err := eng.Interpolate(obs, g)
	require.NoError(t, err)
	assert.Len(t, field.Values, g.Len())
	assert.True(t, field.Grid.Equal(g))
}

func TestEngineReproducesObservationsAtNodes(t *testing.T) {
	eng, err := NewEngine(Params{
		Kernel:    Multiquadric,
		Epsilon:   1,
		Transform: IdentityTransform{},
	})
	require.NoError(t, err)
	g := testGrid(t)

	obs := []models.Observation{
		{Lon: 0, Lat: 4, ThicknessCM: 3},
		{Lon: 1, Lat: 1, ThicknessCM: 7},
		{Lon: 2, Lat: 2, ThicknessCM: 12},
		{Lon: 3, Lat: 0, ThicknessCM: 4},
		{Lon: 4, Lat: 3, ThicknessCM: 9},
		{Lon: 2, Lat: 4, ThicknessCM: 6},
	}
	field, err := eng.Interpolate(obs, g)
	require.NoError(t, err)

	for _, o := range obs {
		i := int(math.Round(o.Lon - g.Bounds.MinX))
		j := int(math.Round(g.Bounds.MaxY - o.Lat))
		assert.InDelta(t, o.ThicknessCM, field.At(i, j), 1e-6)
	}
}

func TestEngineClipAndNaNPolicy(t *testing.T) {
	p := DefaultParams()
	p.Epsilon = 1
	eng, err := NewEngine(p)
	require.NoError(t, err)
	g := testGrid(t)

	obs := []models.Observation{
		{Lon: 0, Lat: 0, ThicknessCM: 100},
		{Lon: 0.5, Lat: 0.5, ThicknessCM: 0.02},
		{Lon: 2, Lat: 2, ThicknessCM: 40},
		{Lon: 4, Lat: 4, ThicknessCM: 0.05},
		{Lon: 3, Lat: 1, ThicknessCM: 60},
		{Lon: 1, Lat: 3, ThicknessCM: 0.5},
	}
	field, err := eng.Interpolate(obs, g)
	require.NoError(t, err)

	for _, v := range field.Values {
		if math.IsNaN(v) {
			continue
		}
		assert.Greater(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.2*100)
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestEngineMaxDistance(t *testing.T) {
	p := DefaultParams()
	p.MaxDistance = 1.1
	eng, err := NewEngine(p)
	require.NoError(t, err)
	g, err := models.NewGrid(models.Bounds{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, 11, 11)
	require.NoError(t, err)

	obs := []models.Observation{
		{Lon: 0, Lat: 10, ThicknessCM: 5},
		{Lon: 1, Lat: 10, ThicknessCM: 6},
		{Lon: 0, Lat: 9, ThicknessCM: 4},
		{Lon: 1, Lat: 9, ThicknessCM: 7},
		{Lon: 2, Lat: 9, ThicknessCM: 3},
	}
	field, err := eng.Interpolate(obs, g)
	require.NoError(t, err)

	// far corner has no site within range
	assert.True(t, math.IsNaN(field.At(10, 10)))
	assert.False(t, math.IsNaN(field.At(0, 0)))
}

func TestNearestDistance(t *testing.T) {
	g := testGrid(t)
	d := NearestDistance([]Point2D{{X: 0, Y: 4}, {X: 4, Y: 0}}, g)
	assert.InDelta(t, 0.0, d[g.Index(0, 0)], 1e-12)
	assert.InDelta(t, 0.0, d[g.Index(4, 4)], 1e-12)
	assert.InDelta(t, math.Sqrt(8), d[g.Index(2, 2)], 1e-12)

	empty := NearestDistance(nil, g)
	assert.True(t, math.IsInf(empty[0], 1))
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(Params{Kernel: "spline"})
	assert.Error(t, err)

	_, err = NewEngine(Params{Transform: LogTransform{Offset: 0}})
	assert.Error(t, err)

	eng, err := NewEngine(Params{MinObservations: 2})
	require.NoError(t, err)
	assert.Equal(t, MinObservations, eng.Params().MinObservations)
	assert.Equal(t, Multiquadric, eng.Params().Kernel)
}
