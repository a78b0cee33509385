package main

import (
	"errors"
	"fmt"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var (
	skimNoTruth   bool
	skimNoWires   bool
	skimMaxEvents int
	skimSkip      int
)

var skimCmd = &cobra.Command{
	Use:   "skim <input> <output>",
	Short: "Copy a range of events of a hit tree, optionally dropping truth or wires",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		rng := hittuning.ReadRange{Skip: skimSkip, MaxEvents: skimMaxEvents}
		src, err := hittuning.OpenTreeReader(args[0], configuration.TreeName, rng)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := hittuning.CreateTreeWriter(args[1], configuration.TreeName, !skimNoTruth, !skimNoWires)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, dst.Close())
		}()

		if err := src.ForEach(cmd.Context(), dst.Write); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Wrote %d events to %s", dst.Entries(), args[1]), "skim")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(skimCmd)
	skimCmd.Flags().BoolVar(&skimNoTruth, "no-truth", false, "Drop the MC truth branches")
	skimCmd.Flags().BoolVar(&skimNoWires, "no-wires", false, "Drop the wire ROI branches")
	skimCmd.Flags().IntVarP(&skimMaxEvents, "max-events", "n", 0, "Maximum number of events")
	skimCmd.Flags().IntVar(&skimSkip, "skip", 0, "Events to skip")
}
