package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/go-core-stack/throttler/config"
)

// app carries the state shared by all subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "throttlecat",
		Short: "Copy files under a shared average and peak rate",
		Long: `throttlecat copies files concurrently while a single throttler bounds
the aggregate rate of all copies to an average rate, allowing short
bursts up to a peak rate.

Settings come from flags, a config file (--config) or THROTTLER_*
environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	root.AddCommand(newCopyCmd(a), newTuneCmd(a))
	return root
}

func (a *app) initLogger() error {
	var (
		logger *zap.Logger
		err    error
	)
	if a.verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// addRateFlags registers the throttler settings on fs.
func addRateFlags(fs *pflag.FlagSet) {
	fs.String("avg-rate", "", "average rate, e.g. 10MB/s or 1048576 (empty or 0 disables throttling)")
	fs.String("peak-rate", "", "peak rate (default 1.2 times the average rate)")
	fs.String("bucket-limit", "", "token bucket size (default two quarter-second bursts at peak rate)")
	fs.Duration("log-interval", 0, "interval between throttler stats logs (0 disables)")
}

// loadConfig binds the rate flags of the running command to the config
// keys, so that flags override file and environment values, and loads
// the settings.
func (a *app) loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	bindings := map[string]string{
		config.KeyAvgRate:     "avg-rate",
		config.KeyPeakRate:    "peak-rate",
		config.KeyBucketLimit: "bucket-limit",
		config.KeyLogInterval: "log-interval",
	}
	for key, name := range bindings {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}
	return config.Load(a.v, a.cfgFile)
}
