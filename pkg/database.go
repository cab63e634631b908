package decoder

import (
	"fmt"
	"strings"

	"github.com/a2mainz/acqu_decoder/pkg/detector"
	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "modernc.org/sqlite"
)

// ConnectToDatabase opens the setup database. For the sqlite driver dbname
// is the path of the database file.
func ConnectToDatabase(driver string, user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite":
		return sqlx.Connect("sqlite", dbname)
	case "mysql", "":
		port := "3306"
		dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
		return sqlx.Connect("mysql", dbURI)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

const setupSchema = `
CREATE TABLE IF NOT EXISTS HitMappings (
	MinRun INTEGER NOT NULL,
	MaxRun INTEGER NOT NULL,
	Detector VARCHAR(32) NOT NULL,
	ChannelType VARCHAR(32) NOT NULL,
	Element INTEGER NOT NULL,
	RawChannel INTEGER NOT NULL,
	Mask INTEGER NOT NULL DEFAULT 0,
	Seq INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS ScalerMappings (
	MinRun INTEGER NOT NULL,
	MaxRun INTEGER NOT NULL,
	SlowControlName VARCHAR(64) NOT NULL,
	LogicalChannel INTEGER NOT NULL,
	RawChannel INTEGER NOT NULL,
	Seq INTEGER NOT NULL DEFAULT 0
);`

// CreateSetupTables creates the mapping tables if they do not exist.
func CreateSetupTables(db *sqlx.DB) error {
	for _, statement := range strings.Split(setupSchema, ";") {
		if strings.TrimSpace(statement) == "" {
			continue
		}
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("error creating setup tables: %w", err)
		}
	}
	return nil
}

type hitMappingRow struct {
	MinRun      int    `db:"MinRun"`
	MaxRun      int    `db:"MaxRun"`
	Detector    string `db:"Detector"`
	ChannelType string `db:"ChannelType"`
	Element     uint   `db:"Element"`
	RawChannel  uint32 `db:"RawChannel"`
	Mask        uint32 `db:"Mask"`
	Seq         int    `db:"Seq"`
}

type scalerMappingRow struct {
	MinRun          int    `db:"MinRun"`
	MaxRun          int    `db:"MaxRun"`
	SlowControlName string `db:"SlowControlName"`
	LogicalChannel  uint32 `db:"LogicalChannel"`
	RawChannel      uint32 `db:"RawChannel"`
	Seq             int    `db:"Seq"`
}

// StoreSetup writes the mappings of setup for its run range. Seq keeps the
// order of the mappings so DBSetup returns them as a SetupList would.
func StoreSetup(db *sqlx.DB, setup JSONSetup) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	seq := 0
	for _, mapping := range setup.HitMappings {
		for _, raw := range mapping.RawChannels {
			seq++
			row := hitMappingRow{
				MinRun:      setup.MinRun,
				MaxRun:      setup.MaxRun,
				Detector:    mapping.LogicalChannel.Detector.String(),
				ChannelType: mapping.LogicalChannel.ChannelType.String(),
				Element:     mapping.LogicalChannel.Element,
				RawChannel:  raw.RawChannel,
				Mask:        raw.Mask,
				Seq:         seq,
			}
			_, err := tx.NamedExec(`INSERT INTO HitMappings (MinRun, MaxRun, Detector, ChannelType, Element, RawChannel, Mask, Seq)
				VALUES (:MinRun, :MaxRun, :Detector, :ChannelType, :Element, :RawChannel, :Mask, :Seq)`, row)
			if err != nil {
				return fmt.Errorf("error inserting hit mapping: %w", err)
			}
		}
	}
	seq = 0
	for _, mapping := range setup.ScalerMappings {
		for _, entry := range mapping.Entries {
			seq++
			row := scalerMappingRow{
				MinRun:          setup.MinRun,
				MaxRun:          setup.MaxRun,
				SlowControlName: mapping.SlowControlName,
				LogicalChannel:  entry.LogicalChannel,
				RawChannel:      entry.RawChannel,
				Seq:             seq,
			}
			_, err := tx.NamedExec(`INSERT INTO ScalerMappings (MinRun, MaxRun, SlowControlName, LogicalChannel, RawChannel, Seq)
				VALUES (:MinRun, :MaxRun, :SlowControlName, :LogicalChannel, :RawChannel, :Seq)`, row)
			if err != nil {
				return fmt.Errorf("error inserting scaler mapping: %w", err)
			}
		}
	}
	return tx.Commit()
}

// DBSetup reads the mappings valid for a run from the setup database.
type DBSetup struct {
	DB *sqlx.DB
}

func (s DBSetup) Mappings(info HeaderInfo) (Mappings, error) {
	run := int(info.RunNumber)
	hitMappings, err := getHitMappingsFromDB(s.DB, run)
	if err != nil {
		errMessage := fmt.Errorf("error getting hit mappings from database: %w", err)
		logger.Error(errMessage.Error())
		return Mappings{}, errMessage
	}
	scalerMappings, err := getScalerMappingsFromDB(s.DB, run)
	if err != nil {
		errMessage := fmt.Errorf("error getting scaler mappings from database: %w", err)
		logger.Error(errMessage.Error())
		return Mappings{}, errMessage
	}
	if len(hitMappings) == 0 && len(scalerMappings) == 0 {
		return Mappings{}, fmt.Errorf("run %d: %w", run, ErrNoConfig)
	}
	return Mappings{HitMappings: hitMappings, ScalerMappings: scalerMappings}, nil
}

func getHitMappingsFromDB(db *sqlx.DB, runNumber int) ([]HitMapping, error) {
	query := db.Rebind(`SELECT MinRun, MaxRun, Detector, ChannelType, Element, RawChannel, Mask, Seq FROM HitMappings
		WHERE MinRun <= ? and MaxRun >= ? ORDER BY MinRun, Seq`)
	if configuration.Verbosity > 0 {
		logger.Info("Reading hit mappings from database", "database")
	}
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s", query), "database")
	}

	var rows []hitMappingRow
	if err := db.Select(&rows, query, runNumber, runNumber); err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}

	var mappings []HitMapping
	index := make(map[detector.LogicalChannel]int)
	for _, row := range rows {
		det, err := detector.ParseType(row.Detector)
		if err != nil {
			return nil, err
		}
		channelType, err := detector.ParseChannelType(row.ChannelType)
		if err != nil {
			return nil, err
		}
		logical := detector.LogicalChannel{Detector: det, ChannelType: channelType, Element: row.Element}
		i, ok := index[logical]
		if !ok {
			i = len(mappings)
			index[logical] = i
			mappings = append(mappings, HitMapping{LogicalChannel: logical})
		}
		mappings[i].RawChannels = append(mappings[i].RawChannels, RawChannel{RawChannel: row.RawChannel, Mask: row.Mask})
	}
	return mappings, nil
}

func getScalerMappingsFromDB(db *sqlx.DB, runNumber int) ([]ScalerMapping, error) {
	query := db.Rebind(`SELECT MinRun, MaxRun, SlowControlName, LogicalChannel, RawChannel, Seq FROM ScalerMappings
		WHERE MinRun <= ? and MaxRun >= ? ORDER BY MinRun, Seq`)
	if configuration.Verbosity > 0 {
		logger.Info("Reading scaler mappings from database", "database")
	}

	var rows []scalerMappingRow
	if err := db.Select(&rows, query, runNumber, runNumber); err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}

	var mappings []ScalerMapping
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.SlowControlName]
		if !ok {
			i = len(mappings)
			index[row.SlowControlName] = i
			mappings = append(mappings, ScalerMapping{SlowControlName: row.SlowControlName})
		}
		mappings[i].Entries = append(mappings[i].Entries, ScalerEntry{LogicalChannel: row.LogicalChannel, RawChannel: row.RawChannel})
	}
	return mappings, nil
}
