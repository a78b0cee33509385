package hittuning

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "modernc.org/sqlite"
)

const runsTable = "runs"

type Dialect int

const (
	SQLite Dialect = iota
	MySQL
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case MySQL:
		return "mysql"
	default:
		return "unknown"
	}
}

// Row labels of Results and of the ratio columns.
var ratioNames = [NSpecies + 1]string{"total", "ele", "gamma", "mu", "p", "pi"}

// ResultLabels names the rows of Results.
func ResultLabels() [NSpecies + 1]string {
	return ratioNames
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID             int64          `db:"id"`
	JobNum         int            `db:"jobNum"`
	Timestamp      string         `db:"timestamp"`
	FCLFilename    string         `db:"fcl_filename"`
	OutputFilename sql.NullString `db:"output_filename"`
	HistFilename   sql.NullString `db:"hist_filename"`

	RoiThreshold0    float64 `db:"roiThreshold_0"`
	RoiThreshold1    float64 `db:"roiThreshold_1"`
	RoiThreshold2    float64 `db:"roiThreshold_2"`
	MinPulseHeight0  float64 `db:"minPulseHeight_0"`
	MinPulseHeight1  float64 `db:"minPulseHeight_1"`
	MinPulseHeight2  float64 `db:"minPulseHeight_2"`
	MinPulseSigma0   float64 `db:"minPulseSigma_0"`
	MinPulseSigma1   float64 `db:"minPulseSigma_1"`
	MinPulseSigma2   float64 `db:"minPulseSigma_2"`
	LongMaxHits0     int     `db:"LongMaxHits_0"`
	LongMaxHits1     int     `db:"LongMaxHits_1"`
	LongMaxHits2     int     `db:"LongMaxHits_2"`
	LongPulseWidth0  float64 `db:"LongPulseWidth_0"`
	LongPulseWidth1  float64 `db:"LongPulseWidth_1"`
	LongPulseWidth2  float64 `db:"LongPulseWidth_2"`
	PulseHeightCuts0 float64 `db:"PulseHeightCuts_0"`
	PulseHeightCuts1 float64 `db:"PulseHeightCuts_1"`
	PulseHeightCuts2 float64 `db:"PulseHeightCuts_2"`
	PulseWidthCuts0  float64 `db:"PulseWidthCuts_0"`
	PulseWidthCuts1  float64 `db:"PulseWidthCuts_1"`
	PulseWidthCuts2  float64 `db:"PulseWidthCuts_2"`
	PulseRatioCuts0  float64 `db:"PulseRatioCuts_0"`
	PulseRatioCuts1  float64 `db:"PulseRatioCuts_1"`
	PulseRatioCuts2  float64 `db:"PulseRatioCuts_2"`
	MaxMultiHit      int     `db:"MaxMultiHit"`
	Chi2NDF          float64 `db:"Chi2NDF"`

	Notes sql.NullString `db:"notes"`

	RatioTotal  float64 `db:"ratio_total"`
	RatioTotal0 float64 `db:"ratio_total0"`
	RatioTotal1 float64 `db:"ratio_total1"`
	RatioTotal2 float64 `db:"ratio_total2"`
	RatioEle    float64 `db:"ratio_ele"`
	RatioEle0   float64 `db:"ratio_ele0"`
	RatioEle1   float64 `db:"ratio_ele1"`
	RatioEle2   float64 `db:"ratio_ele2"`
	RatioGamma  float64 `db:"ratio_gamma"`
	RatioGamma0 float64 `db:"ratio_gamma0"`
	RatioGamma1 float64 `db:"ratio_gamma1"`
	RatioGamma2 float64 `db:"ratio_gamma2"`
	RatioMu     float64 `db:"ratio_mu"`
	RatioMu0    float64 `db:"ratio_mu0"`
	RatioMu1    float64 `db:"ratio_mu1"`
	RatioMu2    float64 `db:"ratio_mu2"`
	RatioP      float64 `db:"ratio_p"`
	RatioP0     float64 `db:"ratio_p0"`
	RatioP1     float64 `db:"ratio_p1"`
	RatioP2     float64 `db:"ratio_p2"`
	RatioPi     float64 `db:"ratio_pi"`
	RatioPi0    float64 `db:"ratio_pi0"`
	RatioPi1    float64 `db:"ratio_pi1"`
	RatioPi2    float64 `db:"ratio_pi2"`
}

func newRunRecord(params FCLParams, jobNum int, fcl, output, hist, notes string) RunRecord {
	r := RunRecord{
		JobNum:           jobNum,
		Timestamp:        time.Now().Format("2006-01-02T15:04:05.000000"),
		FCLFilename:      fcl,
		OutputFilename:   nullString(output),
		HistFilename:     nullString(hist),
		Notes:            nullString(notes),
		RoiThreshold0:    params.RoiThreshold[0],
		RoiThreshold1:    params.RoiThreshold[1],
		RoiThreshold2:    params.RoiThreshold[2],
		MinPulseHeight0:  params.MinPulseHeight[0],
		MinPulseHeight1:  params.MinPulseHeight[1],
		MinPulseHeight2:  params.MinPulseHeight[2],
		MinPulseSigma0:   params.MinPulseSigma[0],
		MinPulseSigma1:   params.MinPulseSigma[1],
		MinPulseSigma2:   params.MinPulseSigma[2],
		LongMaxHits0:     params.LongMaxHits[0],
		LongMaxHits1:     params.LongMaxHits[1],
		LongMaxHits2:     params.LongMaxHits[2],
		LongPulseWidth0:  params.LongPulseWidth[0],
		LongPulseWidth1:  params.LongPulseWidth[1],
		LongPulseWidth2:  params.LongPulseWidth[2],
		PulseHeightCuts0: params.PulseHeightCuts[0],
		PulseHeightCuts1: params.PulseHeightCuts[1],
		PulseHeightCuts2: params.PulseHeightCuts[2],
		PulseWidthCuts0:  params.PulseWidthCuts[0],
		PulseWidthCuts1:  params.PulseWidthCuts[1],
		PulseWidthCuts2:  params.PulseWidthCuts[2],
		PulseRatioCuts0:  params.PulseRatioCuts[0],
		PulseRatioCuts1:  params.PulseRatioCuts[1],
		PulseRatioCuts2:  params.PulseRatioCuts[2],
		MaxMultiHit:      params.MaxMultiHit,
		Chi2NDF:          params.Chi2NDF,
	}
	r.setResults(unsetResults())
	return r
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Params rebuilds the parameter set stored in the row.
func (r RunRecord) Params() FCLParams {
	return FCLParams{
		RoiThreshold:    [NPlanes]float64{r.RoiThreshold0, r.RoiThreshold1, r.RoiThreshold2},
		MinPulseHeight:  [NPlanes]float64{r.MinPulseHeight0, r.MinPulseHeight1, r.MinPulseHeight2},
		MinPulseSigma:   [NPlanes]float64{r.MinPulseSigma0, r.MinPulseSigma1, r.MinPulseSigma2},
		LongMaxHits:     [NPlanes]int{r.LongMaxHits0, r.LongMaxHits1, r.LongMaxHits2},
		LongPulseWidth:  [NPlanes]float64{r.LongPulseWidth0, r.LongPulseWidth1, r.LongPulseWidth2},
		PulseHeightCuts: [NPlanes]float64{r.PulseHeightCuts0, r.PulseHeightCuts1, r.PulseHeightCuts2},
		PulseWidthCuts:  [NPlanes]float64{r.PulseWidthCuts0, r.PulseWidthCuts1, r.PulseWidthCuts2},
		PulseRatioCuts:  [NPlanes]float64{r.PulseRatioCuts0, r.PulseRatioCuts1, r.PulseRatioCuts2},
		MaxMultiHit:     r.MaxMultiHit,
		Chi2NDF:         r.Chi2NDF,
	}
}

func (r *RunRecord) ratioFields() [NSpecies + 1][NPlanes + 1]*float64 {
	return [NSpecies + 1][NPlanes + 1]*float64{
		{&r.RatioTotal, &r.RatioTotal0, &r.RatioTotal1, &r.RatioTotal2},
		{&r.RatioEle, &r.RatioEle0, &r.RatioEle1, &r.RatioEle2},
		{&r.RatioGamma, &r.RatioGamma0, &r.RatioGamma1, &r.RatioGamma2},
		{&r.RatioMu, &r.RatioMu0, &r.RatioMu1, &r.RatioMu2},
		{&r.RatioP, &r.RatioP0, &r.RatioP1, &r.RatioP2},
		{&r.RatioPi, &r.RatioPi0, &r.RatioPi1, &r.RatioPi2},
	}
}

func (r *RunRecord) setResults(res Results) {
	fields := r.ratioFields()
	for i := range fields {
		for j := range fields[i] {
			*fields[i][j] = res[i][j]
		}
	}
}

// Results returns the stored ratio matrix.
func (r RunRecord) Results() Results {
	var res Results
	fields := r.ratioFields()
	for i := range fields {
		for j := range fields[i] {
			res[i][j] = *fields[i][j]
		}
	}
	return res
}

type columnDef struct {
	name    string
	sqlType string
}

var planeParamColumns = []columnDef{
	{"roiThreshold", "REAL"},
	{"minPulseHeight", "REAL"},
	{"minPulseSigma", "REAL"},
	{"LongMaxHits", "INTEGER"},
	{"LongPulseWidth", "REAL"},
	{"PulseHeightCuts", "REAL"},
	{"PulseWidthCuts", "REAL"},
	{"PulseRatioCuts", "REAL"},
}

// runColumns lists every column of the runs table except id, in table order.
func runColumns() []columnDef {
	cols := []columnDef{
		{"jobNum", "INTEGER NOT NULL"},
		{"timestamp", "TEXT NOT NULL"},
		{"fcl_filename", "TEXT NOT NULL"},
		{"output_filename", "TEXT"},
		{"hist_filename", "TEXT"},
	}
	for _, p := range planeParamColumns {
		for plane := 0; plane < NPlanes; plane++ {
			cols = append(cols, columnDef{fmt.Sprintf("%s_%d", p.name, plane), p.sqlType})
		}
	}
	cols = append(cols,
		columnDef{"MaxMultiHit", "INTEGER"},
		columnDef{"Chi2NDF", "REAL"},
		columnDef{"notes", "TEXT"},
	)
	for _, name := range ratioColumns() {
		cols = append(cols, columnDef{name, "REAL"})
	}
	return cols
}

func ratioColumns() []string {
	cols := make([]string, 0, len(ratioNames)*(NPlanes+1))
	for _, name := range ratioNames {
		cols = append(cols, "ratio_"+name)
		for plane := 0; plane < NPlanes; plane++ {
			cols = append(cols, fmt.Sprintf("ratio_%s%d", name, plane))
		}
	}
	return cols
}

// Columns returns the names of all columns of the runs table, id first.
func Columns() []string {
	names := []string{"id"}
	for _, c := range runColumns() {
		names = append(names, c.name)
	}
	return names
}

func createRunsTableSQL(d Dialect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", runsTable)
	switch d {
	case MySQL:
		b.WriteString("    id INTEGER PRIMARY KEY AUTO_INCREMENT")
	default:
		b.WriteString("    id INTEGER PRIMARY KEY AUTOINCREMENT")
	}
	for _, c := range runColumns() {
		fmt.Fprintf(&b, ",\n    %s %s", c.name, c.sqlType)
	}
	b.WriteString("\n)")
	return b.String()
}

// ResultsDB stores one row per processed parameter set.
type ResultsDB struct {
	db      *sqlx.DB
	dialect Dialect
}

// OpenResultsDB opens (or creates) a SQLite results database.
func OpenResultsDB(path string) (*ResultsDB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening results database %s: %w", path, err)
	}
	// a single connection keeps ATTACH and the schema visible to every statement
	db.SetMaxOpenConns(1)
	return newResultsDB(db, SQLite)
}

// ConnectResultsDB connects to the central MySQL results database.
func ConnectResultsDB(user string, pass string, host string, dbname string) (*ResultsDB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", host, err)
	}
	return newResultsDB(db, MySQL)
}

func newResultsDB(db *sqlx.DB, d Dialect) (*ResultsDB, error) {
	r := &ResultsDB{db: db, dialect: d}
	if err := r.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *ResultsDB) createTables() error {
	query := createRunsTableSQL(r.dialect)
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s", query), "database")
	}
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("error creating %s table: %w", runsTable, err)
	}
	return nil
}

func (r *ResultsDB) DB() *sqlx.DB {
	return r.db
}

func (r *ResultsDB) Dialect() Dialect {
	return r.dialect
}

// AddRun inserts a new row with all ratios set to -1 and returns its id.
func (r *ResultsDB) AddRun(params FCLParams, jobNum int, fcl, output, hist, notes string) (int64, error) {
	record := newRunRecord(params, jobNum, fcl, output, hist, notes)

	cols := runColumns()
	names := make([]string, len(cols))
	binds := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
		binds[i] = ":" + c.name
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", runsTable,
		strings.Join(names, ", "), strings.Join(binds, ", "))

	res, err := r.db.NamedExec(query, record)
	if err != nil {
		return 0, fmt.Errorf("error inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading inserted id: %w", err)
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Added run %d for job %d (%s)", id, jobNum, fcl), "database")
	}
	return id, nil
}

// GetRun returns the row with the given id, or nil when it does not exist.
func (r *ResultsDB) GetRun(id int64) (*RunRecord, error) {
	var record RunRecord
	err := r.db.Get(&record, fmt.Sprintf("SELECT * FROM %s WHERE id = ?", runsTable), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading run %d: %w", id, err)
	}
	return &record, nil
}

// AllRuns returns every row, newest first.
func (r *ResultsDB) AllRuns() ([]RunRecord, error) {
	var records []RunRecord
	err := r.db.Select(&records, fmt.Sprintf("SELECT * FROM %s ORDER BY timestamp DESC", runsTable))
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	return records, nil
}

// SearchRuns returns the rows matching every column = value filter. Unknown
// columns are rejected before any query is built.
func (r *ResultsDB) SearchRuns(filters map[string]any) ([]RunRecord, error) {
	columns := Columns()
	keys := make([]string, 0, len(filters))
	for key := range filters {
		if !slices.Contains(columns, key) {
			return nil, &ErrUnknownColumn{Column: key}
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	query := fmt.Sprintf("SELECT * FROM %s WHERE 1=1", runsTable)
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		query += fmt.Sprintf(" AND %s = ?", key)
		args = append(args, filters[key])
	}
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s %v", query, args), "database")
	}

	var records []RunRecord
	if err := r.db.Select(&records, query, args...); err != nil {
		return nil, fmt.Errorf("error searching runs: %w", err)
	}
	return records, nil
}

// BestRuns ranks the rows with a measured ratio in column by their distance
// to one and returns the first n.
func (r *ResultsDB) BestRuns(column string, n int) ([]RunRecord, error) {
	if !slices.Contains(ratioColumns(), column) {
		return nil, &ErrUnknownColumn{Column: column}
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s >= 0 ORDER BY ABS(%s - 1) ASC, id ASC LIMIT ?",
		runsTable, column, column)
	var records []RunRecord
	if err := r.db.Select(&records, query, n); err != nil {
		return nil, fmt.Errorf("error ranking runs by %s: %w", column, err)
	}
	return records, nil
}

func (r *ResultsDB) updateColumn(id int64, column string, value any) error {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", runsTable, column)
	if _, err := r.db.Exec(query, value, id); err != nil {
		return fmt.Errorf("error updating %s of run %d: %w", column, id, err)
	}
	return nil
}

func (r *ResultsDB) UpdateOutputFilename(id int64, filename string) error {
	return r.updateColumn(id, "output_filename", filename)
}

func (r *ResultsDB) UpdateHistFilename(id int64, filename string) error {
	return r.updateColumn(id, "hist_filename", filename)
}

// UpdateResults stores the 6x4 ratio matrix of an analysed run.
func (r *ResultsDB) UpdateResults(id int64, results Results) error {
	cols := ratioColumns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	for i := range results {
		for j := range results[i] {
			args = append(args, results[i][j])
		}
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", runsTable, strings.Join(sets, ", "))
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("error updating results of run %d: %w", id, err)
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Stored results for run %d: total ratio %.4f", id, results[0][0]), "database")
	}
	return nil
}

func (r *ResultsDB) Close() error {
	return r.db.Close()
}
