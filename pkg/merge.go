package hittuning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	sqlx "github.com/jmoiron/sqlx"
)

type MergeOptions struct {
	Table string
	// "ignore" or "replace"
	Conflict string
}

func DefaultMergeOptions() MergeOptions {
	return MergeOptions{Table: runsTable, Conflict: "ignore"}
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (o MergeOptions) validate() error {
	if !identifierRe.MatchString(o.Table) {
		return fmt.Errorf("invalid table name %q", o.Table)
	}
	if o.Conflict != "ignore" && o.Conflict != "replace" {
		return fmt.Errorf("invalid conflict mode %q, expected ignore or replace", o.Conflict)
	}
	return nil
}

func (o MergeOptions) insertVerb(d Dialect) string {
	switch {
	case d == MySQL && o.Conflict == "replace":
		return "REPLACE"
	case d == MySQL:
		return "INSERT IGNORE"
	case o.Conflict == "replace":
		return "INSERT OR REPLACE"
	default:
		return "INSERT OR IGNORE"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteList(names []string, quote func(string) string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

type tableColumn struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

type queryer interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func tableColumns(ctx context.Context, q queryer, schema, table string) ([]string, error) {
	var info []tableColumn
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", schema, quoteIdent(table))
	if err := q.SelectContext(ctx, &info, query); err != nil {
		return nil, fmt.Errorf("error reading columns of %s.%s: %w", schema, table, err)
	}
	names := make([]string, len(info))
	for i, c := range info {
		names[i] = c.Name
	}
	return names, nil
}

// commonColumns keeps the source columns, except id, that the destination
// table also has.
func commonColumns(src, dest []string) []string {
	cols := make([]string, 0, len(src))
	for _, c := range src {
		if c == "id" || !slices.Contains(dest, c) {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

func tableSchema(ctx context.Context, path, table string) (string, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return "", &ErrOpenFile{Filename: path, Err: err}
	}
	defer db.Close()

	var schema sql.NullString
	err = db.GetContext(ctx, &schema, "SELECT sql FROM sqlite_master WHERE type='table' AND name=?", table)
	if err != nil || !schema.Valid || schema.String == "" {
		return "", fmt.Errorf("cannot get schema for table '%s' from %s: %w", table, path, errors.Join(err, sql.ErrNoRows))
	}
	return schema.String, nil
}

// MergeDatabases appends the rows of every source SQLite database into dest.
// The destination table is created from the first source when missing; the id
// column is never copied so rows from different jobs get fresh ids. Sources
// without the table are skipped. It returns the number of sources merged.
func MergeDatabases(ctx context.Context, dest string, sources []string, opts MergeOptions) (int, error) {
	if len(sources) == 0 {
		logger.Info("No DB files to merge", "merge")
		return 0, nil
	}
	if err := opts.validate(); err != nil {
		return 0, err
	}

	db, err := sqlx.Open("sqlite", dest)
	if err != nil {
		return 0, &ErrOpenFile{Filename: dest, Err: err}
	}
	defer db.Close()

	// ATTACH is per connection, so everything runs on one
	conn, err := db.Connx(ctx)
	if err != nil {
		return 0, fmt.Errorf("error connecting to %s: %w", dest, err)
	}
	defer conn.Close()

	var existing []string
	err = conn.SelectContext(ctx, &existing, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", opts.Table)
	if err != nil {
		return 0, fmt.Errorf("error inspecting %s: %w", dest, err)
	}
	if len(existing) == 0 {
		schema, err := tableSchema(ctx, sources[0], opts.Table)
		if err != nil {
			return 0, err
		}
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			return 0, fmt.Errorf("error creating %s in %s: %w", opts.Table, dest, err)
		}
	}

	destCols, err := tableColumns(ctx, conn, "main", opts.Table)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, path := range sources {
		ok, err := mergeAttached(ctx, conn, path, destCols, opts)
		if err != nil {
			return merged, err
		}
		if ok {
			merged++
		}
	}
	logger.Info(fmt.Sprintf("Merged %d/%d databases into %s", merged, len(sources), dest), "merge")
	return merged, nil
}

func mergeAttached(ctx context.Context, conn *sqlx.Conn, path string, destCols []string, opts MergeOptions) (merged bool, err error) {
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Merging %s", path), "merge")
	}
	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS src", path); err != nil {
		return false, fmt.Errorf("error attaching %s: %w", path, err)
	}
	defer func() {
		if _, derr := conn.ExecContext(ctx, "DETACH DATABASE src"); derr != nil {
			err = errors.Join(err, fmt.Errorf("error detaching %s: %w", path, derr))
		}
	}()

	srcCols, err := tableColumns(ctx, conn, "src", opts.Table)
	if err != nil {
		return false, err
	}
	if len(srcCols) == 0 {
		logger.Info(fmt.Sprintf("Skipping %s: table '%s' not found", path, opts.Table), "merge")
		return false, nil
	}

	cols := commonColumns(srcCols, destCols)
	colList := quoteList(cols, quoteIdent)
	query := fmt.Sprintf("%s INTO main.%s (%s) SELECT %s FROM src.%s",
		opts.insertVerb(SQLite), quoteIdent(opts.Table), colList, colList, quoteIdent(opts.Table))
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s", query), "merge")
	}
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return false, fmt.Errorf("error copying rows from %s: %w", path, err)
	}
	return true, nil
}

// MergeIntoDB copies the rows of every source SQLite database into an already
// open results database, typically the central MySQL one.
func MergeIntoDB(ctx context.Context, dest *ResultsDB, sources []string, opts MergeOptions) (int, error) {
	if err := opts.validate(); err != nil {
		return 0, err
	}

	rows, err := dest.db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1=0", opts.Table))
	if err != nil {
		return 0, fmt.Errorf("error inspecting destination table %s: %w", opts.Table, err)
	}
	destCols, err := rows.Columns()
	rows.Close()
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, path := range sources {
		n, err := copyRows(ctx, dest, path, destCols, opts)
		if err != nil {
			return merged, err
		}
		if n >= 0 {
			merged++
		}
	}
	logger.Info(fmt.Sprintf("Merged %d/%d databases into the %s database", merged, len(sources), dest.dialect), "merge")
	return merged, nil
}

// copyRows returns the number of rows copied, or -1 when the source has no
// such table.
func copyRows(ctx context.Context, dest *ResultsDB, path string, destCols []string, opts MergeOptions) (int, error) {
	src, err := sqlx.Open("sqlite", path)
	if err != nil {
		return 0, &ErrOpenFile{Filename: path, Err: err}
	}
	defer src.Close()

	srcCols, err := tableColumns(ctx, src, "main", opts.Table)
	if err != nil {
		return 0, err
	}
	if len(srcCols) == 0 {
		logger.Info(fmt.Sprintf("Skipping %s: table '%s' not found", path, opts.Table), "merge")
		return -1, nil
	}
	cols := commonColumns(srcCols, destCols)

	rows, err := src.QueryxContext(ctx, fmt.Sprintf("SELECT %s FROM %s", quoteList(cols, quoteIdent), quoteIdent(opts.Table)))
	if err != nil {
		return 0, fmt.Errorf("error reading %s: %w", path, err)
	}
	defer rows.Close()

	binds := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		opts.insertVerb(dest.dialect), opts.Table, strings.Join(cols, ", "), binds)

	tx, err := dest.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			tx.Rollback()
			return n, fmt.Errorf("error scanning DB row: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			tx.Rollback()
			return n, fmt.Errorf("error inserting row from %s: %w", path, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Copied %d rows from %s", n, path), "merge")
	}
	return n, nil
}

// FindDatabases walks root for files matching the doublestar pattern
// (default "**/*.db") and returns them sorted. exclude, usually the merge
// destination, is left out.
func FindDatabases(root, pattern, exclude string) ([]string, error) {
	if pattern == "" {
		pattern = "**/*.db"
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("error searching %s for %s: %w", root, pattern, err)
	}

	excludeAbs := ""
	if exclude != "" {
		excludeAbs, _ = filepath.Abs(exclude)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		path := filepath.Join(root, filepath.FromSlash(m))
		if abs, _ := filepath.Abs(path); abs == excludeAbs {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// WatchAndMerge merges the databases already under root and then every new
// .db file that appears, once it has not been written to for settle. It
// returns when ctx is cancelled.
func WatchAndMerge(ctx context.Context, root, dest string, opts MergeOptions, settle time.Duration) error {
	if settle <= 0 {
		return fmt.Errorf("settle time must be positive, got %s", settle)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error watching %s: %w", root, err)
	}

	merged := make(map[string]bool)
	existing, err := FindDatabases(root, "", dest)
	if err != nil {
		return err
	}
	if _, err := MergeDatabases(ctx, dest, existing, opts); err != nil {
		return err
	}
	for _, path := range existing {
		merged[path] = true
	}

	destAbs, _ := filepath.Abs(dest)
	pending := make(map[string]time.Time)
	tick := settle / 2
	if tick <= 0 {
		tick = settle
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						logger.Error(fmt.Sprintf("error watching %s: %v", event.Name, err))
					}
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Ext(event.Name) != ".db" || merged[event.Name] {
				continue
			}
			if abs, _ := filepath.Abs(event.Name); abs == destAbs {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(fmt.Sprintf("fsnotify error: %v", err))

		case now := <-ticker.C:
			ready := make([]string, 0, len(pending))
			for path, last := range pending {
				if now.Sub(last) >= settle {
					ready = append(ready, path)
				}
			}
			sort.Strings(ready)
			for _, path := range ready {
				delete(pending, path)
				if _, err := MergeDatabases(ctx, dest, []string{path}, opts); err != nil {
					logger.Error(fmt.Sprintf("error merging %s: %v", path, err))
					continue
				}
				merged[path] = true
			}
		}
	}
}
