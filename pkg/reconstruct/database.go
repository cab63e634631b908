package reconstruct

import (
	"fmt"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	sqlx "github.com/jmoiron/sqlx"
)

const calibrationSchema = `
CREATE TABLE IF NOT EXISTS Calibrations (
	MinRun INTEGER NOT NULL,
	MaxRun INTEGER NOT NULL,
	Detector VARCHAR(32) NOT NULL,
	ChannelType VARCHAR(32) NOT NULL,
	Element INTEGER NOT NULL,
	Gain DOUBLE NOT NULL,
	ValueOffset DOUBLE NOT NULL
)`

type calibrationRow struct {
	MinRun      int     `db:"MinRun"`
	MaxRun      int     `db:"MaxRun"`
	Detector    string  `db:"Detector"`
	ChannelType string  `db:"ChannelType"`
	Element     uint    `db:"Element"`
	Gain        float64 `db:"Gain"`
	Offset      float64 `db:"ValueOffset"`
}

func CreateCalibrationTable(db *sqlx.DB) error {
	if _, err := db.Exec(calibrationSchema); err != nil {
		return fmt.Errorf("error creating calibration table: %w", err)
	}
	return nil
}

// StoreCalibration writes entries valid for the runs minRun to maxRun.
func StoreCalibration(db *sqlx.DB, minRun int, maxRun int, entries []CalibrationEntry) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		row := calibrationRow{
			MinRun:      minRun,
			MaxRun:      maxRun,
			Detector:    e.LogicalChannel.Detector.String(),
			ChannelType: e.LogicalChannel.ChannelType.String(),
			Element:     e.LogicalChannel.Element,
			Gain:        e.Gain,
			Offset:      e.Offset,
		}
		_, err := tx.NamedExec(`INSERT INTO Calibrations (MinRun, MaxRun, Detector, ChannelType, Element, Gain, ValueOffset)
			VALUES (:MinRun, :MaxRun, :Detector, :ChannelType, :Element, :Gain, :ValueOffset)`, row)
		if err != nil {
			return fmt.Errorf("error inserting calibration: %w", err)
		}
	}
	return tx.Commit()
}

// LoadCalibration reads the constants valid for run. A run without
// constants gets an empty calibration.
func LoadCalibration(db *sqlx.DB, run int) (*Calibration, error) {
	query := db.Rebind(`SELECT MinRun, MaxRun, Detector, ChannelType, Element, Gain, ValueOffset FROM Calibrations
		WHERE MinRun <= ? and MaxRun >= ?`)
	if configuration := decoder.GetConfiguration(); configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading calibration of run %d from database", run), "database")
	}

	var rows []calibrationRow
	if err := db.Select(&rows, query, run, run); err != nil {
		return nil, fmt.Errorf("error querying calibrations: %w", err)
	}

	entries := make([]CalibrationEntry, 0, len(rows))
	for _, row := range rows {
		det, err := detector.ParseType(row.Detector)
		if err != nil {
			return nil, err
		}
		channelType, err := detector.ParseChannelType(row.ChannelType)
		if err != nil {
			return nil, err
		}
		entries = append(entries, CalibrationEntry{
			LogicalChannel: detector.LogicalChannel{Detector: det, ChannelType: channelType, Element: row.Element},
			Gain:           row.Gain,
			Offset:         row.Offset,
		})
	}
	return NewCalibration(entries...), nil
}
