package main

import (
	"fmt"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var displayOpts = hittuning.DefaultDisplayOptions()

var displayCmd = &cobra.Command{
	Use:   "display <file>",
	Short: "Draw the wire signals and hits of one event and plane",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("tag") {
			displayOpts.Tag = configuration.Tag
		}
		src, err := hittuning.OpenTreeReader(args[0], configuration.TreeName, hittuning.ReadRange{})
		if err != nil {
			return err
		}
		defer src.Close()

		display, err := hittuning.FindDisplay(cmd.Context(), src, displayOpts)
		if err != nil {
			return err
		}
		files, err := display.Save(displayOpts)
		if err != nil {
			return err
		}
		for _, f := range files {
			logger.Info(fmt.Sprintf("Saved %s", f), "display")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(displayCmd)
	f := displayCmd.Flags()
	f.StringVarP(&displayOpts.OutputDir, "output-dir", "o", displayOpts.OutputDir, "Output directory")
	f.StringVarP(&displayOpts.Tag, "tag", "t", displayOpts.Tag, "Tag of the output files")
	f.IntVarP(&displayOpts.Event, "event", "e", 0, "Event number")
	f.IntVarP(&displayOpts.Plane, "plane", "p", 2, "Plane (0, 1 or 2)")
	f.IntVar(&displayOpts.TimeRange[0], "tmin", displayOpts.TimeRange[0], "First tick")
	f.IntVar(&displayOpts.TimeRange[1], "tmax", displayOpts.TimeRange[1], "Last tick")
	f.IntVar(&displayOpts.WireRange[0], "wmin", 0, "First channel (default plane bounds)")
	f.IntVar(&displayOpts.WireRange[1], "wmax", 0, "Last channel (default plane bounds)")
}
