package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var jobWorkDir string

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Run one grid job from the jobsub environment",
	Long: `Run the job selected by JOBSUBJOBSECTION inside a grid worker and copy its
histograms and database back with ifdh. The process exits with a code that
identifies the failing step.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(hittuning.ExitCode(runJob(cmd)))
	},
}

func runJob(cmd *cobra.Command) error {
	env, err := hittuning.LoadJobEnv(os.Getenv)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	logFile := fmt.Sprintf("%s/hitTuning_job_%d.log", jobWorkDir, env.Section)
	f, err := os.Create(logFile)
	if err != nil {
		logger.Error(fmt.Sprintf("Warning: cannot create log file %s: %v", logFile, err))
		logFile = ""
	} else {
		defer f.Close()
		setLogger(hittuning.NewLogger(io.MultiWriter(os.Stdout, f), slog.LevelDebug))
	}

	configuration.MC = true
	configuration.AnaFile = env.AnaFile
	configuration.TreeName = env.TreeName
	updateConfiguration()
	waveform, err := hittuning.WaveformSpecFromConfig(configuration)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	runner := &hittuning.JobRunner{
		Env:        env,
		Experiment: configuration.Experiment,
		WorkDir:    jobWorkDir,
		LogFile:    logFile,
		LarBinary:  configuration.LarBinary,
		LarOptions: larOptions(configuration),
		Waveform:   waveform,
		Analysis:   analysisOptions(configuration),
	}
	if err := runner.Run(cmd.Context()); err != nil {
		logger.Error(err.Error())
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.Flags().StringVar(&jobWorkDir, "workdir", ".", "Working directory of the job")
}
