package main

import (
	"fmt"
	"os"
	"strconv"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var (
	filesDefname string
	filesOutput  string
	filesLocate  bool
	filesRun     int
	filesEvent   int
)

var filesCmd = &cobra.Command{
	Use:   "files <run>...",
	Short: "List the stage0 files of runs from SAM",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runs := make([]int, len(args))
		for i, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid run number %q: %w", a, err)
			}
			runs[i] = n
		}
		sam := hittuning.NewSAMWeb(configuration.Experiment, nil)
		files, err := sam.ListFiles(cmd.Context(), hittuning.Stage0Dims(configuration.Defname, configuration.DataTier, runs))
		if err != nil {
			return err
		}
		if filesLocate {
			for i, f := range files {
				loc, err := sam.LocateFile(cmd.Context(), f)
				if err != nil {
					return err
				}
				files[i] = loc
			}
		}
		logger.Info(fmt.Sprintf("Found %d files", len(files)), "files")
		if filesOutput == "" {
			for _, f := range files {
				fmt.Fprintln(os.Stdout, f)
			}
			return nil
		}
		return hittuning.WriteFileList(filesOutput, files)
	},
}

var findEventCmd = &cobra.Command{
	Use:   "find-event",
	Short: "Find the file and xrootd URL holding one event",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sam := hittuning.NewSAMWeb(configuration.Experiment, nil)
		file, url, err := sam.FindEventFile(cmd.Context(), configuration.Defname, filesRun, filesEvent)
		if err != nil {
			return err
		}
		fmt.Println(file)
		fmt.Println(url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(findEventCmd)
	for _, cmd := range []*cobra.Command{filesCmd, findEventCmd} {
		cmd.Flags().StringVar(&filesDefname, "defname", "", "SAM dataset definition")
		cmd.PreRun = func(cmd *cobra.Command, args []string) {
			if cmd.Flags().Changed("defname") {
				configuration.Defname = filesDefname
			}
		}
	}
	filesCmd.Flags().StringVarP(&filesOutput, "output", "o", "", "File list to write (default stdout)")
	filesCmd.Flags().BoolVar(&filesLocate, "locate", false, "Write the file locations instead of the names")
	findEventCmd.Flags().IntVar(&filesRun, "run", 0, "Run number")
	findEventCmd.Flags().IntVar(&filesEvent, "event", 0, "Event number")
	findEventCmd.MarkFlagRequired("run")
	findEventCmd.MarkFlagRequired("event")
}
