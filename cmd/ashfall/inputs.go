package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ashfall/internal/ingest"
	"ashfall/pkg/export"
	"ashfall/pkg/reconstruction"
)

// inputFlags are shared by run and sweep.
type inputFlags struct {
	observations string
	landUse      string
	boundaries   string
	outputDir    string
	formats      []string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.observations, "observations", "", "observation CSV (Longitude, Latitude, Thickness_cm)")
	cmd.Flags().StringVar(&f.landUse, "landuse", "", "land-use ESRI ASCII grid with sidecar .prj")
	cmd.Flags().StringVar(&f.boundaries, "boundaries", "", "country boundaries (.shp or .geojson)")
	cmd.Flags().StringVar(&f.outputDir, "output", "", "output directory (overrides output.dir)")
	cmd.Flags().StringSliceVar(&f.formats, "format", nil, "output formats (overrides output.formats)")
	_ = cmd.MarkFlagRequired("observations")
}

func (f *inputFlags) load() (reconstruction.Inputs, error) {
	var in reconstruction.Inputs
	obs, err := ingest.LoadObservations(f.observations)
	if err != nil {
		return in, eris.Wrap(err, "load observations")
	}
	in.Observations = obs

	if f.landUse != "" {
		if in.LandUse, err = ingest.LoadLandUse(f.landUse); err != nil {
			return in, eris.Wrap(err, "load land use")
		}
	}
	if f.boundaries != "" {
		if in.Boundaries, err = ingest.LoadBoundaries(f.boundaries, cfg.Zonal.NameField); err != nil {
			return in, eris.Wrap(err, "load boundaries")
		}
	}
	return in, nil
}

func (f *inputFlags) writer() (*export.Writer, error) {
	dir, formats := cfg.Output.Dir, cfg.Output.Formats
	if f.outputDir != "" {
		dir = f.outputDir
	}
	if len(f.formats) > 0 {
		formats = f.formats
	}
	return export.NewWriter(dir, formats)
}

func newReconstructor(workers int) (*reconstruction.Reconstructor, error) {
	params, err := cfg.ReconstructionParams()
	if err != nil {
		return nil, err
	}
	if workers > 0 {
		params.Workers = workers
	}
	r, err := reconstruction.NewReconstructor(params)
	if err != nil {
		return nil, err
	}
	r.SetProgressCallback(func(completed, total int, message string) {
		zap.L().Debug(message, zap.Int("completed", completed), zap.Int("total", total))
	})
	return r, nil
}
