package interpolation

import (
	"math"
	"runtime"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"ashfall/internal/models"
)

// RBF is a fitted radial basis function surface over scattered 2D sites.
type RBF struct {
	xs, ys  []float64
	weights *mat.VecDense
	phi     func(r float64) float64
	kernel  Kernel
	epsilon float64
}

// Fit solves (Phi - smooth*I) w = values for the basis weights, where
// Phi[i][j] = phi(|p_i - p_j|). A zero smooth interpolates the sites exactly.
func Fit(xs, ys, values []float64, kernel Kernel, epsilon, smooth float64) (*RBF, error) {
	n := len(xs)
	if n == 0 || len(ys) != n || len(values) != n {
		return nil, eris.Errorf("interpolation: mismatched inputs (%d x, %d y, %d values)", len(xs), len(ys), len(values))
	}
	phi, err := kernel.Func(epsilon)
	if err != nil {
		return nil, err
	}

	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := phi(math.Hypot(xs[i]-xs[j], ys[i]-ys[j]))
			a.Set(i, j, v)
			a.Set(j, i, v)
		}
		a.Set(i, i, a.At(i, i)-smooth)
	}

	b := mat.NewVecDense(n, append([]float64(nil), values...))
	w := mat.NewVecDense(n, nil)
	if err := w.SolveVec(a, b); err != nil {
		// A Condition error still carries a solution
		cond, ok := err.(mat.Condition)
		switch {
		case !ok:
			return nil, eris.Wrap(err, "interpolation: solve rbf system")
		case math.IsInf(float64(cond), 1):
			return nil, eris.New("interpolation: rbf system is singular")
		default:
			zap.L().Warn("rbf system is ill-conditioned",
				zap.String("kernel", string(kernel)),
				zap.Float64("condition", float64(cond)))
		}
	}

	return &RBF{
		xs:      append([]float64(nil), xs...),
		ys:      append([]float64(nil), ys...),
		weights: w,
		phi:     phi,
		kernel:  kernel,
		epsilon: epsilon,
	}, nil
}

// Epsilon returns the shape parameter the surface was fitted with.
func (r *RBF) Epsilon() float64 { return r.epsilon }

// At evaluates the surface at (x, y).
func (r *RBF) At(x, y float64) float64 {
	sum := 0.0
	for k := range r.xs {
		sum += r.weights.AtVec(k) * r.phi(math.Hypot(x-r.xs[k], y-r.ys[k]))
	}
	return sum
}

// EvaluateGrid evaluates the surface at every node of g. Each row is one
// dense kernel matrix times the weight vector; rows are spread over the
// available CPUs.
func (r *RBF) EvaluateGrid(g models.Grid) []float64 {
	out := make([]float64, g.Len())
	xs := g.Xs()
	n := len(r.xs)

	evalRow := func(j int, k *mat.Dense, row *mat.VecDense) {
		y := g.Y(j)
		for i, x := range xs {
			for c := 0; c < n; c++ {
				k.Set(i, c, r.phi(math.Hypot(x-r.xs[c], y-r.ys[c])))
			}
		}
		row.MulVec(k, r.weights)
		copy(out[g.Index(0, j):g.Index(0, j)+g.NX], row.RawVector().Data)
	}

	numCPU := runtime.NumCPU()
	rowsPerWorker := (g.NY + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	for w := 0; w < numCPU; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, g.NY)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			k := mat.NewDense(g.NX, n, nil)
			row := mat.NewVecDense(g.NX, nil)
			for j := start; j < end; j++ {
				evalRow(j, k, row)
			}
		}(start, end)
	}
	wg.Wait()
	return out
}
