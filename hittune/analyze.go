package main

import (
	"errors"
	"fmt"

	"github.com/pkg/profile"
	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/sbn-icarus/hittuning_go/pkg/summary"
	"github.com/spf13/cobra"
)

var (
	analyzeHistFile   string
	analyzeProfile    string
	analyzeSummary    string
	analyzeMapRun     int
	analyzeMaxEvents  int
	analyzeSkip       int
	analyzeNumWorkers int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Run the MC or data event loop over hit trees",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		applyScanFlags(cmd)
		if cmd.Flags().Changed("max-events") {
			configuration.MaxEvents = analyzeMaxEvents
		}
		if cmd.Flags().Changed("skip") {
			configuration.Skip = analyzeSkip
		}
		if cmd.Flags().Changed("workers") {
			configuration.NumWorkers = analyzeNumWorkers
		}
		if cmd.Flags().Changed("summary") {
			configuration.SummaryFile = analyzeSummary
		}
		updateConfiguration()

		switch analyzeProfile {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
		default:
			return fmt.Errorf("unknown profile mode %q, expected cpu or mem", analyzeProfile)
		}

		opts := analysisOptions(configuration)
		if configuration.ChannelMapDB != "" {
			db, err := hittuning.ConnectChannelMapDB(configuration.ChannelMapDB, configuration)
			if err != nil {
				return err
			}
			opts.ChannelMap, err = hittuning.LoadChannelMap(db, analyzeMapRun)
			db.Close()
			if err != nil {
				return err
			}
		}

		var writer *summary.Writer
		if configuration.SummaryFile != "" {
			writer, err = summary.NewWriter(configuration.SummaryFile, configuration.CompressionLevel)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, writer.Close())
			}()
			opts.Summary = writer
		}

		waveform, err := hittuning.WaveformSpecFromConfig(configuration)
		if err != nil {
			return err
		}
		analyzer, err := hittuning.AnalyzeFiles(cmd.Context(), args, analyzeHistFile, configuration.MC, waveform, opts)
		if analyzer != nil {
			analyzer.LogSummary()
		}
		if err != nil {
			return err
		}
		if configuration.MC {
			res := analyzer.Results()
			printResults(res)
			if writer != nil {
				return writer.WriteResults(res)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeHistFile, "hist", "hist_output.root", "Histogram output file")
	analyzeCmd.Flags().StringVar(&analyzeProfile, "profile", "", "Profile the event loop: cpu or mem")
	analyzeCmd.Flags().StringVar(&analyzeSummary, "summary", "", "Per-event HDF5 summary file")
	analyzeCmd.Flags().IntVar(&analyzeMapRun, "map-run", 0, "Run number used to select the channel map")
	analyzeCmd.Flags().IntVarP(&analyzeMaxEvents, "max-events", "n", 0, "Maximum number of events")
	analyzeCmd.Flags().IntVar(&analyzeSkip, "skip", 0, "Events to skip")
	analyzeCmd.Flags().IntVarP(&analyzeNumWorkers, "workers", "j", 1, "Number of file readers")
	analyzeCmd.Flags().BoolVar(&flagMC, "mc", false, "Run the MC event loop")
	analyzeCmd.Flags().StringVarP(&flagTag, "tag", "t", "", "Tag")
}
