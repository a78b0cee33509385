package main

import (
	"fmt"
	"os"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var (
	submitDryRun bool
	submitNJobs  int
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit the parameter scan to the grid with jobsub",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := configuration.Submit
		if c.Tag == "" {
			c.Tag = configuration.Tag
		}
		if cmd.Flags().Changed("dry-run") {
			c.DryRun = submitDryRun
		}
		if cmd.Flags().Changed("njobs") {
			c.NJobs = submitNJobs
		}

		res, err := hittuning.Submit(cmd.Context(), c, nil, os.Stdout)
		if err != nil {
			return err
		}
		if c.DryRun {
			return nil
		}
		logger.Info(fmt.Sprintf("Submission %s: job %s", res.SubmissionID, res.JobID), "submit")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "Print the jobsub_submit command without running it")
	submitCmd.Flags().IntVar(&submitNJobs, "njobs", 0, "Number of jobs (default from configuration)")
}
