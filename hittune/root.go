package main

import (
	"fmt"
	"log/slog"
	"os"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var (
	configFilename string
	verbosity      int
	configuration  hittuning.Configuration
	logger         hittuning.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hittune",
	Short: "Hit-finder parameter tuning for the ICARUS TPC",
	Long: `hittune generates gaushit FCL parameter scans, runs them through lar
locally or on the grid, and compares reconstructed hit energy with the
deposited energy of the simulation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configuration, err = hittuning.LoadConfiguration(configFilename)
		if err != nil {
			return fmt.Errorf("error reading configuration file: %w", err)
		}
		if cmd.Flags().Changed("verbose") {
			configuration.Verbosity = verbosity
		}
		hittuning.SetConfiguration(configuration)
		setLogger(hittuning.NewLogger(os.Stdout, slog.LevelDebug))

		if configuration.Verbosity > 0 {
			logger.Info(fmt.Sprintf("Reading configuration file: %s", configFilename), "main")
			hittuning.PrintConfiguration(configuration, logger)
		}
		return nil
	},
}

func setLogger(l hittuning.Logger) {
	logger = l
	hittuning.SetLogger(l)
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger == nil {
			setLogger(hittuning.NewLogger(os.Stdout, slog.LevelDebug))
		}
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file path (JSON or YAML)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Verbosity level (repeat for more)")
}

// updateConfiguration republishes the configuration after flags changed it.
func updateConfiguration() {
	hittuning.SetConfiguration(configuration)
}

func fclOptions(config hittuning.Configuration) (hittuning.FCLOptions, error) {
	opts := hittuning.FCLOptions{MC: config.MC, TFileService: config.AnaFile}
	for _, a := range config.FCLAnalyzers {
		module, err := hittuning.ParseAnalyzerModule(a)
		if err != nil {
			return opts, err
		}
		opts.Analyzers = append(opts.Analyzers, module)
	}
	return opts, nil
}

func loadGrid(config hittuning.Configuration, defaultFirst bool) ([]hittuning.FCLParams, error) {
	spec := hittuning.DefaultGridSpec()
	if config.GridFile != "" {
		var err error
		spec, err = hittuning.LoadGridSpec(config.GridFile)
		if err != nil {
			return nil, err
		}
	}
	return hittuning.CreateGrid(spec, defaultFirst)
}

func analysisOptions(config hittuning.Configuration) hittuning.AnalysisOptions {
	return hittuning.AnalysisOptions{
		TreeName: config.TreeName,
		Loop: hittuning.EventLoopOptions{
			Range:      hittuning.ReadRange{Skip: config.Skip, MaxEvents: config.MaxEvents},
			NumWorkers: config.NumWorkers,
		},
		WaveformPNG: true,
	}
}

func larOptions(config hittuning.Configuration) []string {
	return hittuning.EventOptions(config.LarEvents)
}

func printResults(res hittuning.Results) {
	labels := hittuning.ResultLabels()
	fmt.Printf("%-8s %10s %10s %10s %10s\n", "", "all", "plane0", "plane1", "plane2")
	for i, row := range res {
		fmt.Printf("%-8s %10.4f %10.4f %10.4f %10.4f\n", labels[i], row[0], row[1], row[2], row[3])
	}
}
