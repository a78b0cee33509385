package main

import (
	"fmt"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var noDefault bool

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Write one FCL file per parameter combination of the scan grid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grid, err := loadGrid(configuration, !noDefault)
		if err != nil {
			return err
		}
		opts, err := fclOptions(configuration)
		if err != nil {
			return err
		}
		n, err := hittuning.WriteGrid(configuration.OutputDir, configuration.Tag, grid, opts, configuration.Debug)
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Wrote %d FCL files to %s", n, configuration.OutputDir), "grid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gridCmd)
	addScanFlags(gridCmd)
	gridCmd.Flags().BoolVar(&noDefault, "no-default", false, "Do not prepend the default parameter set")
}

// addScanFlags binds the flags shared by the commands that build a grid.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagGridFile, "grid-file", "", "YAML grid specification")
	cmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "Output directory")
	cmd.Flags().StringVarP(&flagTag, "tag", "t", "", "Tag of the generated files")
	cmd.Flags().BoolVar(&flagMC, "mc", false, "Use the MC stage1 template and event loop")
	cmd.Flags().BoolVar(&flagDebug, "debug", false, "Process only the first two parameter sets")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		applyScanFlags(cmd)
	}
}

var (
	flagGridFile  string
	flagOutputDir string
	flagTag       string
	flagMC        bool
	flagDebug     bool
)

func applyScanFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("grid-file") {
		configuration.GridFile = flagGridFile
	}
	if cmd.Flags().Changed("output-dir") {
		configuration.OutputDir = flagOutputDir
	}
	if cmd.Flags().Changed("tag") {
		configuration.Tag = flagTag
	}
	if cmd.Flags().Changed("mc") {
		configuration.MC = flagMC
	}
	if cmd.Flags().Changed("debug") {
		configuration.Debug = flagDebug
	}
	updateConfiguration()
}
