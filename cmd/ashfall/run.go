package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ashfall/pkg/reconstruction"
)

var (
	runInputs    inputFlags
	runThreshold float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconstruct the affected region at one threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := runInputs.load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Mask.Threshold = runThreshold
		}

		r, err := newReconstructor(0)
		if err != nil {
			return err
		}
		res, err := r.Process(cmd.Context(), in)
		if err != nil {
			return err
		}

		w, err := runInputs.writer()
		if err != nil {
			return err
		}
		files, err := w.Write(res)
		if err != nil {
			return err
		}

		printResult(cmd.OutOrStdout(), res)
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f)
		}
		return nil
	},
}

func init() {
	runInputs.register(runCmd)
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "thickness threshold in cm (overrides mask.threshold)")
	rootCmd.AddCommand(runCmd)
}

func printResult(out io.Writer, res *reconstruction.Result) {
	fmt.Fprintf(out, "threshold %g cm: ", res.Threshold)
	if res.Region == nil {
		fmt.Fprintln(out, "no affected region")
		return
	}
	fmt.Fprintf(out, "%.1f km² in %d polygon(s)\n", res.RegionAreaKM2, res.Region.NumPolygons())
	for _, c := range res.Countries {
		if c.PercentOfCountry != nil {
			fmt.Fprintf(out, "  %-24s %12.1f km²  %6.2f%%\n", c.Country, c.AreaKM2, *c.PercentOfCountry)
		} else {
			fmt.Fprintf(out, "  %-24s %12.1f km²\n", c.Country, c.AreaKM2)
		}
	}
	for _, g := range res.Groups {
		fmt.Fprintf(out, "  %-24s %12.1f km²  %6.2f%% of region\n", g.Group, g.AreaKM2, g.ShareOfRegion)
	}
}
