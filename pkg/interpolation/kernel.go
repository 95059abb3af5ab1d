package interpolation

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Kernel names a radial basis function. The names and shapes follow the
// classic scipy Rbf family so tuned parameters carry over.
type Kernel string

const (
	Multiquadric        Kernel = "multiquadric"
	InverseMultiquadric Kernel = "inverse"
	Gaussian            Kernel = "gaussian"
	Linear              Kernel = "linear"
	Cubic               Kernel = "cubic"
	Quintic             Kernel = "quintic"
	ThinPlate           Kernel = "thin_plate"
)

// ParseKernel resolves a configuration string to a Kernel.
func ParseKernel(name string) (Kernel, error) {
	k := Kernel(strings.ToLower(strings.TrimSpace(name)))
	switch k {
	case Multiquadric, InverseMultiquadric, Gaussian, Linear, Cubic, Quintic, ThinPlate:
		return k, nil
	case "inverse_multiquadric":
		return InverseMultiquadric, nil
	case "thin-plate", "thinplate":
		return ThinPlate, nil
	}
	return "", eris.Errorf("interpolation: unknown kernel %q", name)
}

// Func returns phi(r) for the kernel with shape parameter epsilon.
// Epsilon is ignored by the polyharmonic kernels.
func (k Kernel) Func(epsilon float64) (func(r float64) float64, error) {
	switch k {
	case Multiquadric, InverseMultiquadric, Gaussian:
		if !(epsilon > 0) {
			return nil, eris.Errorf("interpolation: kernel %s needs a positive epsilon, got %g", k, epsilon)
		}
	}

	switch k {
	case Multiquadric:
		return func(r float64) float64 {
			q := r / epsilon
			return math.Sqrt(q*q + 1)
		}, nil
	case InverseMultiquadric:
		return func(r float64) float64 {
			q := r / epsilon
			return 1 / math.Sqrt(q*q+1)
		}, nil
	case Gaussian:
		return func(r float64) float64 {
			q := r / epsilon
			return math.Exp(-q * q)
		}, nil
	case Linear:
		return func(r float64) float64 { return r }, nil
	case Cubic:
		return func(r float64) float64 { return r * r * r }, nil
	case Quintic:
		return func(r float64) float64 { return r * r * r * r * r }, nil
	case ThinPlate:
		return func(r float64) float64 {
			if r == 0 {
				return 0
			}
			return r * r * math.Log(r)
		}, nil
	}
	return nil, eris.Errorf("interpolation: unknown kernel %q", string(k))
}

// DefaultEpsilon returns the average node spacing estimate used when no shape
// parameter is configured: (product of non-zero bounding box edges / n)^(1/d).
func DefaultEpsilon(xs, ys []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	edges := make([]float64, 0, 2)
	for _, c := range [][]float64{xs, ys} {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range c {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if e := hi - lo; e > 0 {
			edges = append(edges, e)
		}
	}
	if len(edges) == 0 {
		return 1
	}
	prod := 1.0
	for _, e := range edges {
		prod *= e
	}
	return math.Pow(prod/float64(n), 1/float64(len(edges)))
}
