package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var (
	mergeRoot     string
	mergePattern  string
	mergeTable    string
	mergeConflict string
	mergeWatch    bool
	mergeSettle   time.Duration
	mergeCentral  bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <dest.db> [source.db...]",
	Short: "Merge per-job results databases into one",
	Long: `Merge the runs table of the per-job SQLite databases into dest. Sources
default to every database found under --root. With --central the rows are
copied into the MySQL database of the configuration instead and dest is
ignored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := args[0]
		opts := hittuning.MergeOptions{Table: mergeTable, Conflict: mergeConflict}

		if mergeWatch {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			logger.Info(fmt.Sprintf("Watching %s for new databases, merging into %s", mergeRoot, dest), "merge")
			return hittuning.WatchAndMerge(ctx, mergeRoot, dest, opts, mergeSettle)
		}

		sources := args[1:]
		if len(sources) == 0 {
			var err error
			sources, err = hittuning.FindDatabases(mergeRoot, mergePattern, dest)
			if err != nil {
				return err
			}
		}
		if len(sources) == 0 {
			return fmt.Errorf("no databases to merge under %s", mergeRoot)
		}

		n, err := mergeSources(cmd.Context(), dest, sources, opts)
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Merged %d of %d databases", n, len(sources)), "merge")
		return nil
	},
}

func mergeSources(ctx context.Context, dest string, sources []string, opts hittuning.MergeOptions) (int, error) {
	if !mergeCentral {
		return hittuning.MergeDatabases(ctx, dest, sources, opts)
	}
	db, err := hittuning.ConnectResultsDB(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return hittuning.MergeIntoDB(ctx, db, sources, opts)
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	defaults := hittuning.DefaultMergeOptions()
	mergeCmd.Flags().StringVar(&mergeRoot, "root", ".", "Directory searched for databases")
	mergeCmd.Flags().StringVar(&mergePattern, "pattern", "**/*.db", "Database file pattern")
	mergeCmd.Flags().StringVar(&mergeTable, "table", defaults.Table, "Table to merge")
	mergeCmd.Flags().StringVar(&mergeConflict, "conflict", defaults.Conflict, "Duplicate handling: ignore or replace")
	mergeCmd.Flags().BoolVar(&mergeWatch, "watch", false, "Keep running and merge databases as they arrive")
	mergeCmd.Flags().DurationVar(&mergeSettle, "settle", 5*time.Second, "Quiet time before a new database is merged")
	mergeCmd.Flags().BoolVar(&mergeCentral, "central", false, "Merge into the configured MySQL database")
}
