package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/spf13/cobra"
)

var (
	queryBest    string
	queryLimit   int
	queryWhere   []string
	queryCentral bool
)

var queryCmd = &cobra.Command{
	Use:   "query [db]",
	Short: "List runs of a results database",
	Long: `List the runs of a SQLite results database, or of the configured MySQL
database with --central. --best ranks runs by how close a ratio column is to
one; --where filters on column=value pairs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var db *hittuning.ResultsDB
		var err error
		switch {
		case queryCentral:
			db, err = hittuning.ConnectResultsDB(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
		case len(args) == 1:
			db, err = hittuning.OpenResultsDB(args[0])
		default:
			return fmt.Errorf("no database given")
		}
		if err != nil {
			return err
		}
		defer db.Close()

		var runs []hittuning.RunRecord
		switch {
		case queryBest != "":
			runs, err = db.BestRuns(queryBest, queryLimit)
		case len(queryWhere) > 0:
			var filters map[string]any
			filters, err = parseFilters(queryWhere)
			if err == nil {
				runs, err = db.SearchRuns(filters)
			}
		default:
			runs, err = db.AllRuns()
		}
		if err != nil {
			return err
		}
		printRuns(runs)
		return nil
	},
}

// parseFilters reads column=value pairs; numeric values compare as numbers.
func parseFilters(pairs []string) (map[string]any, error) {
	filters := make(map[string]any, len(pairs))
	for _, p := range pairs {
		column, value, ok := strings.Cut(p, "=")
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid filter %q, expected column=value", p)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			filters[column] = f
		} else {
			filters[column] = value
		}
	}
	return filters, nil
}

func printRuns(runs []hittuning.RunRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "id\tjob\ttimestamp\tfcl\ttotal\tele\tgamma\tmu\tp\tpi")
	for _, r := range runs {
		res := r.Results()
		fmt.Fprintf(w, "%d\t%d\t%s\t%s", r.ID, r.JobNum, r.Timestamp, r.FCLFilename)
		for _, row := range res {
			fmt.Fprintf(w, "\t%.4f", row[0])
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryBest, "best", "", "Rank by closeness to one of this ratio column")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 10, "Number of runs listed with --best")
	queryCmd.Flags().StringArrayVar(&queryWhere, "where", nil, "column=value filter (repeatable)")
	queryCmd.Flags().BoolVar(&queryCentral, "central", false, "Query the configured MySQL database")
}
