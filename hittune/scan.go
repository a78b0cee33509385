package main

import (
	"fmt"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var (
	scanDBFile string
	scanJobNum int
)

var scanCmd = &cobra.Command{
	Use:   "scan [input]",
	Short: "Run every parameter set of the grid locally with versioned file names",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := configuration.InputFile
		if len(args) == 1 {
			input = args[0]
		}
		if input == "" {
			return fmt.Errorf("no input file given")
		}

		grid, err := loadGrid(configuration, true)
		if err != nil {
			return err
		}
		if configuration.Debug && len(grid) > 2 {
			grid = grid[:2]
		}
		fclOpts, err := fclOptions(configuration)
		if err != nil {
			return err
		}
		waveform, err := hittuning.WaveformSpecFromConfig(configuration)
		if err != nil {
			return err
		}

		results, err := hittuning.RunInteractive(cmd.Context(), grid, hittuning.InteractiveOptions{
			MC:         configuration.MC,
			Tag:        configuration.Tag,
			OutputDir:  configuration.OutputDir,
			InputFile:  input,
			JobNum:     scanJobNum,
			DBFile:     scanDBFile,
			FCL:        fclOpts,
			Lar:        hittuning.Lar{Binary: configuration.LarBinary},
			LarOptions: larOptions(configuration),
			Waveform:   waveform,
			Analysis:   analysisOptions(configuration),
		})
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				continue
			}
			logger.Info(fmt.Sprintf("%s: total ratio %.4f", r.Names.FCL, r.Results[0][0]), "scan")
		}
		logger.Info(fmt.Sprintf("Processed %d parameter sets, %d failed", len(results), failed), "scan")
		return err
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd)
	scanCmd.Flags().StringVar(&scanDBFile, "db", "", "Results database (default hitTuning_<tag>.db)")
	scanCmd.Flags().IntVar(&scanJobNum, "job", -1, "Job number stored with each run")
}
