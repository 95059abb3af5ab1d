package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	sweepInputs     inputFlags
	sweepThresholds []float64
	sweepWorkers    int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reconstruct the affected region for several thresholds",
	Long: "Fits and tapers the surface once, then extracts the region and its statistics " +
		"for every threshold (sweep.thresholds unless --thresholds is given).",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := sweepInputs.load()
		if err != nil {
			return err
		}
		thresholds := cfg.Sweep.Thresholds
		if len(sweepThresholds) > 0 {
			thresholds = sweepThresholds
		}

		r, err := newReconstructor(sweepWorkers)
		if err != nil {
			return err
		}
		results, err := r.Sweep(cmd.Context(), in, thresholds)
		if err != nil {
			return err
		}

		w, err := sweepInputs.writer()
		if err != nil {
			return err
		}
		files, err := w.WriteSweep(results)
		if err != nil {
			return err
		}

		for _, res := range results {
			printResult(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files\n", len(files))
		return nil
	},
}

func init() {
	sweepInputs.register(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&sweepThresholds, "thresholds", nil, "thresholds in cm (overrides sweep.thresholds)")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "thresholds processed concurrently (overrides sweep.workers)")
	rootCmd.AddCommand(sweepCmd)
}
