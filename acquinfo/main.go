package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/logging"
	"github.com/a2mainz/acqu_decoder/pkg/reconstruct"
	"github.com/a2mainz/acqu_decoder/pkg/report"
	sqlx "github.com/jmoiron/sqlx"
)

var configuration decoder.Configuration

var logger logging.Logger

func init() {
	logger = logging.New(os.Stdout, os.Stderr)
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	fileIn := flag.String("file", "", "Acqu file, overrides file_in")
	plotFile := flag.String("plot", "", "PNG file with histograms, overrides plot_file")
	maxEvents := flag.Int("n", 0, "Maximum number of events to read")
	headerOnly := flag.Bool("header", false, "Only print the file header")
	importSetup := flag.Bool("import-setup", false, "Store the mappings and calibrations of the setup file in the database")
	flag.Parse()

	var err error
	configuration, err = LoadConfiguration(*configFilename, *fileIn, *plotFile, *maxEvents)
	if err != nil {
		logger.Error(fmt.Errorf("Error reading configuration file: %w", err).Error())
		os.Exit(1)
	}
	decoder.SetConfiguration(configuration)
	decoder.SetLogger(logger)
	reconstruct.SetLogger(logger)
	if configuration.Verbosity > 0 {
		printConfiguration(configuration, logger)
	}

	switch {
	case *importSetup:
		err = importSetupFile()
	case *headerOnly:
		err = printHeader()
	default:
		err = summarize()
	}
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func connect() (*sqlx.DB, error) {
	db, err := decoder.ConnectToDatabase(configuration.DBDriver, configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
	if err != nil {
		return nil, fmt.Errorf("Error connection to database: %w", err)
	}
	return db, nil
}

func setupProvider() (decoder.SetupProvider, *sqlx.DB, error) {
	if configuration.NoDB {
		setups, err := decoder.LoadSetupFile(configuration.SetupFile)
		return setups, nil, err
	}
	db, err := connect()
	if err != nil {
		return nil, nil, err
	}
	return decoder.DBSetup{DB: db}, db, nil
}

// importSetupFile copies the setup file into the database. Calibrations
// get the run range of every setup in the file.
func importSetupFile() error {
	setups, err := decoder.LoadSetupFile(configuration.SetupFile)
	if err != nil {
		return err
	}
	_, calibration, err := reconstruct.LoadSetupFile(configuration.SetupFile)
	if err != nil {
		return err
	}
	entries := calibration.Entries()

	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := decoder.CreateSetupTables(db); err != nil {
		return err
	}
	if err := reconstruct.CreateCalibrationTable(db); err != nil {
		return err
	}
	for _, setup := range setups {
		if err := decoder.StoreSetup(db, setup); err != nil {
			return fmt.Errorf("setup %s: %w", setup.Name, err)
		}
		if err := reconstruct.StoreCalibration(db, setup.MinRun, setup.MaxRun, entries); err != nil {
			return fmt.Errorf("setup %s: %w", setup.Name, err)
		}
		logger.Info(fmt.Sprintf("Stored setup %s for runs %d to %d", setup.Name, setup.MinRun, setup.MaxRun), "import")
	}
	return nil
}

func printHeader() error {
	reader, err := decoder.OpenRawFile(configuration.FileIn)
	if err != nil {
		return err
	}
	// the header does not depend on the setup, so any run matches
	u, err := decoder.NewUnpacker(reader, anySetup{})
	if err != nil {
		reader.Close()
		return err
	}
	defer u.Close()
	header := u.Header()

	fmt.Println(header.String())
	fmt.Printf("Compression: %v\n", reader.Compression())
	fmt.Printf("Record length: 0x%x\n", header.RecordLength)
	if timestamp, err := decoder.RunTimestamp(header); err == nil {
		fmt.Printf("Run start: %s\n", time.Unix(timestamp, 0).UTC().Format(time.RFC3339))
	} else {
		fmt.Printf("Run start: %v\n", err)
	}
	for _, m := range header.ADCModules {
		fmt.Printf("ADC    %-12s index %3d bits %2d channels %5d-%d\n", m.Identifier, m.Index, m.Bits, m.FirstRawChannel, m.FirstRawChannel+m.NRawChannels-1)
	}
	for _, m := range header.ScalerModules {
		fmt.Printf("Scaler %-12s index %3d bits %2d channels %5d-%d\n", m.Identifier, m.Index, m.Bits, m.FirstRawChannel, m.FirstRawChannel+m.NRawChannels-1)
	}
	return nil
}

type anySetup struct{}

func (anySetup) Mappings(decoder.HeaderInfo) (decoder.Mappings, error) {
	return decoder.Mappings{}, nil
}

func summarize() error {
	provider, db, err := setupProvider()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	setup, calibration, err := reconstruct.LoadSetupFile(configuration.SetupFile)
	if err != nil {
		return err
	}

	u, err := decoder.OpenUnpacker(configuration.FileIn, provider)
	if err != nil {
		return err
	}
	defer u.Close()
	header := u.Header()
	if db != nil {
		if calibration, err = reconstruct.LoadCalibration(db, int(header.RunNumber)); err != nil {
			return err
		}
	}

	start := time.Now()
	r := reconstruct.NewReconstructor(setup, calibration, reconstruct.ConfigFromConfiguration(configuration))
	summary := report.NewSummary(header.RunNumber)
	for summary.Events < configuration.MaxEvents {
		event, err := u.NextEvent()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		summary.Add(r.Reconstruct(event))
		if configuration.Verbosity > 0 && summary.Events%100000 == 0 {
			logger.Info(fmt.Sprintf("%d events, %.1f%% done", summary.Events, u.PercentDone()), "acquinfo")
		}
	}
	summary.SetUnpackerStats(u.Stats())

	if err := summary.WriteText(os.Stdout); err != nil {
		return err
	}
	if configuration.PlotFile != "" {
		if err := summary.SavePlots(configuration.PlotFile); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Histograms written to %s", configuration.PlotFile), "acquinfo")
	}
	logger.Info(fmt.Sprintf("Done in %d ms", time.Since(start).Milliseconds()), "acquinfo")
	return nil
}
