package hittuning

import (
	"fmt"
	"path/filepath"

	sqlx "github.com/jmoiron/sqlx"
)

// ChannelRange is an inclusive block of readout channels belonging to one
// plane of one TPC.
type ChannelRange struct {
	MinChannel int `db:"MinChannel"`
	MaxChannel int `db:"MaxChannel"`
	Plane      int `db:"Plane"`
	TPC        int `db:"TPC"`
}

func (r ChannelRange) contains(channel int) bool {
	return channel >= r.MinChannel && channel <= r.MaxChannel
}

// ChannelMap maps readout channels to wire planes.
type ChannelMap struct {
	Ranges []ChannelRange
}

// Channel blocks of ChannelMapICARUS_20240318.
var icarusRanges = []ChannelRange{
	{0, 2239, 0, int(TPCEE)},
	{13824, 16063, 0, int(TPCEW)},
	{27648, 29887, 0, int(TPCWE)},
	{41472, 43711, 0, int(TPCWW)},

	{2240, 8063, 1, int(TPCEE)},
	{16128, 21087, 1, int(TPCEW)},
	{29952, 35711, 1, int(TPCWE)},
	{43776, 49535, 1, int(TPCWW)},

	{8064, 13823, 2, int(TPCEE)},
	{21888, 27647, 2, int(TPCEW)},
	{35712, 41471, 2, int(TPCWE)},
	{49536, 55295, 2, int(TPCWW)},
}

// Wire ranges shown by the event display. They differ from the readout blocks
// for the EE induction plane.
var displayRanges = [NPlanes][NTPCs][2]int{
	{{41472, 43711}, {27648, 29887}, {13824, 16063}, {0, 2239}},
	{{43776, 49535}, {29952, 35711}, {16128, 21087}, {2304, 8063}},
	{{49536, 55295}, {35712, 41471}, {21888, 27647}, {8064, 13823}},
}

func DefaultChannelMap() *ChannelMap {
	ranges := make([]ChannelRange, len(icarusRanges))
	copy(ranges, icarusRanges)
	return &ChannelMap{Ranges: ranges}
}

// Plane returns the wire plane of a channel, or -1 when it is not mapped.
func (m *ChannelMap) Plane(channel int) int {
	for _, r := range m.Ranges {
		if r.contains(channel) {
			return r.Plane
		}
	}
	return -1
}

// TPCOf returns the TPC of a channel, or -1 when it is not mapped.
func (m *ChannelMap) TPCOf(channel int) TPC {
	for _, r := range m.Ranges {
		if r.contains(channel) {
			return TPC(r.TPC)
		}
	}
	return -1
}

// DisplayBounds returns the inclusive channel range drawn for a plane and TPC,
// or [0, 0] for an invalid pair.
func DisplayBounds(plane int, tpc TPC) [2]int {
	if plane < 0 || plane >= NPlanes || tpc < 0 || int(tpc) >= NTPCs {
		return [2]int{0, 0}
	}
	return displayRanges[plane][tpc]
}

// LoadChannelMap reads the channel blocks valid for a run from the
// ChannelRanges table.
func LoadChannelMap(db *sqlx.DB, runNumber int) (*ChannelMap, error) {
	query := "SELECT MinChannel, MaxChannel, Plane, TPC FROM ChannelRanges WHERE MinRun <= ? and MaxRun >= ? ORDER BY MinChannel"

	if configuration.Verbosity > 0 {
		logger.Info("Channel map read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s (run %d)", query, runNumber), "database")
	}

	rows, err := db.Queryx(query, runNumber, runNumber)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	channelMap := &ChannelMap{}
	for rows.Next() {
		result := ChannelRange{}
		if err := rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		if result.Plane < 0 || result.Plane >= NPlanes {
			return nil, fmt.Errorf("channel range %d-%d has invalid plane %d", result.MinChannel, result.MaxChannel, result.Plane)
		}
		channelMap.Ranges = append(channelMap.Ranges, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(channelMap.Ranges) == 0 {
		return nil, fmt.Errorf("no channel ranges valid for run %d", runNumber)
	}
	return channelMap, nil
}

// ConnectChannelMapDB opens the database holding the ChannelRanges table: a
// SQLite file when name has a .db or .sqlite extension, otherwise the schema
// name on the configured MySQL host.
func ConnectChannelMapDB(name string, config Configuration) (*sqlx.DB, error) {
	switch filepath.Ext(name) {
	case ".db", ".sqlite":
		db, err := sqlx.Connect("sqlite", name)
		if err != nil {
			return nil, fmt.Errorf("error opening channel map %s: %w", name, err)
		}
		return db, nil
	}
	dbURI := fmt.Sprintf("%s:%s@(%s:3306)/%s?parseTime=true", config.User, config.Passwd, config.Host, name)
	db, err := sqlx.Connect("mysql", dbURI)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", config.Host, err)
	}
	return db, nil
}
