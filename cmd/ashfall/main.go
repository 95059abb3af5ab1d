package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ashfall/pkg/config"
)

var (
	cfg     *config.Config
	cfgPath string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "ashfall",
	Short: "Reconstruct volcanic ash-fall deposits from point observations",
	Long: "Interpolates ash thickness measurements onto a grid, tapers the surface around the source, " +
		"extracts the affected region and reports land-use and country statistics.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is fine; variables may come from the environment
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "load %s", envFile)
		}

		c, err := config.LoadConfig(cfgPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := cfg.InitLogger(); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "ashfall.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with ASHFALL_* overrides")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
