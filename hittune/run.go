package main

import (
	"fmt"
	"strconv"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var runWorkDir string

var runCmd = &cobra.Command{
	Use:   "run <jobNum> <fcl> <input>",
	Short: "Run one grid job: lar with the FCL, then the MC event loop",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobNum, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid job number %q: %w", args[0], err)
		}
		configuration.MC = true
		updateConfiguration()
		waveform, err := hittuning.WaveformSpecFromConfig(configuration)
		if err != nil {
			return err
		}

		res, err := hittuning.RunGridJob(cmd.Context(), hittuning.GridJobOptions{
			JobNum:     jobNum,
			FCLFile:    args[1],
			InputFile:  args[2],
			WorkDir:    runWorkDir,
			AnaFile:    configuration.AnaFile,
			Lar:        hittuning.Lar{Binary: configuration.LarBinary},
			LarOptions: larOptions(configuration),
			Waveform:   waveform,
			Analysis:   analysisOptions(configuration),
		})
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Run %d stored in %s, histograms in %s", res.RunID, res.DBFile, res.HistFile), "run")
		printResults(res.Results)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runWorkDir, "workdir", ".", "Directory for the job outputs")
}
