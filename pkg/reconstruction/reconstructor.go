package reconstruction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ashfall/internal/models"
	"ashfall/pkg/equalarea"
	"ashfall/pkg/interpolation"
	"ashfall/pkg/morphology"
	"ashfall/pkg/polygonize"
	"ashfall/pkg/taper"
	"ashfall/pkg/zonal"
)

// GridParams defines the interpolation lattice.
type GridParams struct {
	NX, NY int

	// PadFraction widens the observation extent by this fraction of its span
	// on every side. Ignored when Bounds is set.
	PadFraction float64

	// Bounds fixes the grid extent instead of deriving it from the data.
	Bounds *models.Bounds
}

// Params holds the reconstruction parameters, one block per stage.
type Params struct {
	Grid          GridParams
	Interpolation interpolation.Params
	Taper         taper.Params
	Mask          morphology.Params

	// Threshold is the thickness in cm above which a node belongs to the
	// affected region.
	Threshold float64

	Zonal zonal.Params

	// StandardParallel of the cylindrical equal-area projection, 0 means 30°.
	StandardParallel float64

	// Workers bounds how many thresholds a sweep processes at once.
	Workers int
}

// DefaultParams returns the parameters of the reference reconstruction.
func DefaultParams() *Params {
	return &Params{
		Grid:          GridParams{NX: 300, NY: 300, PadFraction: 0.9},
		Interpolation: interpolation.DefaultParams(),
		Taper:         taper.DefaultParams(),
		Mask:          morphology.DefaultParams(),
		Threshold:     0.1,
		Zonal:         zonal.DefaultParams(),
		Workers:       1,
	}
}

// Inputs are the immutable data a run consumes. LandUse and Boundaries are
// optional; the matching statistics are skipped when they are absent.
type Inputs struct {
	Observations []models.Observation
	LandUse      *models.LandUseRaster
	Boundaries   []models.AdminBoundary
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result is the output of one run at one threshold.
type Result struct {
	RunID     string
	Threshold float64

	Grid     models.Grid
	Field    *models.ScalarField // interpolated thickness, cm
	Weights  *models.WeightField
	Weighted *models.ScalarField
	Mask     *models.BinaryMask

	// Region is nil when a sweep threshold leaves an empty mask.
	Region        *geom.MultiPolygon
	RegionAreaKM2 float64

	Classes   []models.ZonalRecord
	Groups    []models.GroupRecord
	Countries []models.CountryRecord

	Timings []StageTiming
}

// Reconstructor composes the pipeline stages:
// 1. Fitting the RBF surface to the observations on a regular grid
// 2. Weighting the surface with the directional taper
// 3. Thresholding and cleaning the weighted surface into a mask
// 4. Tracing and dissolving the mask into the region geometry
// 5. Computing land-use and country statistics for the region
//
// Every stage returns fresh values; a Reconstructor holds no run state and is
// safe for concurrent use.
type Reconstructor struct {
	params    *Params
	engine    *interpolation.Engine
	taper     *taper.Taper
	extractor *morphology.Extractor
	zonal     *zonal.Calculator
	proj      *equalarea.Projection
}

// NewReconstructor validates params and builds the stages.
func NewReconstructor(params *Params) (*Reconstructor, error) {
	if params == nil {
		params = DefaultParams()
	}
	if params.Grid.NX < 2 || params.Grid.NY < 2 {
		return nil, eris.Errorf("reconstruction: grid needs at least 2x2 nodes, got %dx%d", params.Grid.NX, params.Grid.NY)
	}
	if params.Grid.PadFraction < 0 {
		return nil, eris.Errorf("reconstruction: negative pad fraction %g", params.Grid.PadFraction)
	}

	engine, err := interpolation.NewEngine(params.Interpolation)
	if err != nil {
		return nil, eris.Wrap(err, "reconstruction: interpolation")
	}
	tp, err := taper.New(params.Taper)
	if err != nil {
		return nil, eris.Wrap(err, "reconstruction: taper")
	}
	ex, err := morphology.NewExtractor(params.Mask)
	if err != nil {
		return nil, eris.Wrap(err, "reconstruction: mask")
	}
	lat1 := params.StandardParallel
	if lat1 == 0 {
		lat1 = equalarea.DefaultStandardParallel
	}
	proj, err := equalarea.New(lat1)
	if err != nil {
		return nil, eris.Wrap(err, "reconstruction: projection")
	}

	return &Reconstructor{
		params:    params,
		engine:    engine,
		taper:     tp,
		extractor: ex,
		zonal:     zonal.NewCalculator(params.Zonal, proj),
		proj:      proj,
	}, nil
}

// SetProgressCallback forwards interpolation progress to callback.
func (r *Reconstructor) SetProgressCallback(callback interpolation.ProgressCallback) {
	r.engine.SetProgressCallback(callback)
}

// surface is the threshold-independent part of a run.
type surface struct {
	runID    string
	grid     models.Grid
	field    *models.ScalarField
	weights  *models.WeightField
	weighted *models.ScalarField
	timings  []StageTiming
}

// Grid returns the lattice a run over obs uses.
func (r *Reconstructor) Grid(obs []models.Observation) (models.Grid, error) {
	gp := r.params.Grid
	b := models.Extent(obs)
	if gp.Bounds != nil {
		b = *gp.Bounds
	} else {
		b = b.Pad(gp.PadFraction, gp.PadFraction)
	}
	g, err := models.NewGrid(b, gp.NX, gp.NY)
	if err != nil {
		return models.Grid{}, eris.Wrap(err, "reconstruction: grid")
	}
	return g, nil
}

func (r *Reconstructor) prepare(ctx context.Context, in Inputs) (*surface, error) {
	s := &surface{runID: uuid.NewString()}
	log := zap.L().With(zap.String("run_id", s.runID))

	positive, dry := models.SplitObservations(in.Observations)
	if need := r.engine.Params().MinObservations; len(positive) < need {
		return nil, eris.Wrapf(models.ErrInsufficientData,
			"reconstruction: %d positive observations, need %d", len(positive), need)
	}
	g, err := r.Grid(append(positive, dry...))
	if err != nil {
		return nil, err
	}
	s.grid = g

	err = r.stage(ctx, log, &s.timings, "interpolate", func() error {
		f, err := r.engine.Interpolate(in.Observations, g)
		s.field = f
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, log, &s.timings, "taper", func() error {
		s.weights = r.taper.Field(g)
		w, err := taper.Apply(s.field, s.weights)
		s.weighted = w
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Process runs the full pipeline once at the configured threshold.
func (r *Reconstructor) Process(ctx context.Context, in Inputs) (*Result, error) {
	s, err := r.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	return r.finish(ctx, s, in, r.params.Threshold, false)
}

// Sweep fits and tapers the surface once and runs the mask, polygon and
// statistics stages for every threshold. Results follow the order of
// thresholds. A threshold whose mask comes out empty yields a Result without
// region instead of failing the sweep.
func (r *Reconstructor) Sweep(ctx context.Context, in Inputs, thresholds []float64) ([]*Result, error) {
	if len(thresholds) == 0 {
		return nil, eris.New("reconstruction: no thresholds to sweep")
	}
	s, err := r.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	workers := r.params.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]*Result, len(thresholds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, th := range thresholds {
		i, th := i, th
		g.Go(func() error {
			res, err := r.finish(gctx, s, in, th, true)
			if err != nil {
				return eris.Wrapf(err, "reconstruction: threshold %g", th)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("sweep complete",
		zap.String("run_id", s.runID),
		zap.Int("thresholds", len(thresholds)),
		zap.Int("workers", workers))
	return results, nil
}

func (r *Reconstructor) finish(ctx context.Context, s *surface, in Inputs, threshold float64, allowEmpty bool) (*Result, error) {
	log := zap.L().With(zap.String("run_id", s.runID), zap.Float64("threshold", threshold))
	res := &Result{
		RunID:     s.runID,
		Threshold: threshold,
		Grid:      s.grid,
		Field:     s.field,
		Weights:   s.weights,
		Weighted:  s.weighted,
		Timings:   append([]StageTiming(nil), s.timings...),
	}

	err := r.stage(ctx, log, &res.Timings, "mask", func() error {
		res.Mask = r.extractor.Extract(s.weighted, threshold)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if allowEmpty && res.Mask.Empty() {
		log.Warn("mask is empty, skipping region")
		return res, nil
	}

	err = r.stage(ctx, log, &res.Timings, "polygonize", func() error {
		region, err := polygonize.Region(res.Mask, s.grid.Transform())
		if err != nil {
			return err
		}
		res.Region = region
		res.RegionAreaKM2 = polygonize.AreaKM2(region, r.proj)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.LandUse != nil {
		err = r.stage(ctx, log, &res.Timings, "zonal", func() error {
			classes, groups, err := r.zonal.Classes(res.Region, in.LandUse)
			res.Classes, res.Groups = classes, groups
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if len(in.Boundaries) > 0 {
		err = r.stage(ctx, log, &res.Timings, "countries", func() error {
			countries, err := r.zonal.Countries(res.Region, in.Boundaries)
			res.Countries = countries
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	log.Info("reconstruction complete",
		zap.Float64("area_km2", res.RegionAreaKM2),
		zap.Int("polygons", res.Region.NumPolygons()),
		zap.Int("classes", len(res.Classes)),
		zap.Int("countries", len(res.Countries)))
	return res, nil
}

// stage runs fn unless ctx is done and records its duration.
func (r *Reconstructor) stage(ctx context.Context, log *zap.Logger, timings *[]StageTiming, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "reconstruction: %s", name)
	}
	start := clock.Now()
	if err := fn(); err != nil {
		return eris.Wrapf(err, "reconstruction: %s", name)
	}
	d := clock.Since(start)
	*timings = append(*timings, StageTiming{Stage: name, Duration: d})
	log.Info("stage complete", zap.String("stage", name), zap.Duration("duration", d))
	return nil
}
