package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/logging"
	"github.com/a2mainz/acqu_decoder/pkg/output"
	"github.com/a2mainz/acqu_decoder/pkg/reconstruct"
	"github.com/a2mainz/acqu_decoder/pkg/report"
	sqlx "github.com/jmoiron/sqlx"
)

var dbConn *sqlx.DB
var configuration decoder.Configuration

var (
	logger         logging.Logger
	VerbosityLevel int
)

func init() {
	logger = logging.New(os.Stdout, os.Stderr)
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	if err := run(*configFilename); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(configFilename string) error {
	var err error
	configuration, err = decoder.LoadConfiguration(configFilename)
	if err != nil {
		return fmt.Errorf("Error reading configuration file: %w", err)
	}
	decoder.SetConfiguration(configuration)
	decoder.SetLogger(logger)
	reconstruct.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", configFilename), "main")
		printConfiguration(configuration, logger)
	}

	setup, calibration, err := reconstruct.LoadSetupFile(configuration.SetupFile)
	if err != nil {
		return fmt.Errorf("Error reading detector setup: %w", err)
	}

	var provider decoder.SetupProvider
	if configuration.NoDB {
		provider, err = decoder.LoadSetupFile(configuration.SetupFile)
		if err != nil {
			return fmt.Errorf("Error reading mappings: %w", err)
		}
	} else {
		dbConn, err = decoder.ConnectToDatabase(configuration.DBDriver, configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
		if err != nil {
			return fmt.Errorf("Error connection to database: %w", err)
		}
		defer dbConn.Close()
		provider = decoder.DBSetup{DB: dbConn}
	}

	fileReader, err := NewFileReader(configuration.FileIn, provider)
	if err != nil {
		return fmt.Errorf("Error opening file: %w", err)
	}
	defer fileReader.Close()
	header := fileReader.Unpacker.Header()
	if VerbosityLevel > 0 {
		logger.Info(header.String(), "main")
	}

	if dbConn != nil {
		calibration, err = reconstruct.LoadCalibration(dbConn, int(header.RunNumber))
		if err != nil {
			return fmt.Errorf("Error reading calibration: %w", err)
		}
	}

	var writer *output.Writer
	if configuration.WriteData {
		timestamp, err := decoder.RunTimestamp(header)
		if err != nil {
			return err
		}
		writer, err = output.NewWriter(configuration.FileOut, header, timestamp, configuration.CompressionLevel)
		if err != nil {
			return fmt.Errorf("Error creating output file: %w", err)
		}
		if VerbosityLevel > 0 {
			logger.Info(fmt.Sprintf("Writing %s, session %s", configuration.FileOut, writer.SessionID), "main")
		}
	}

	start := time.Now()
	reconstructor := reconstruct.NewReconstructor(setup, calibration, reconstruct.ConfigFromConfiguration(configuration))
	summary := report.NewSummary(header.RunNumber)

	jobs := make(chan WorkerData, 100)
	results := make(chan WorkerResult, 100)
	nWorkers := max(configuration.NumWorkers, 1)
	done := make(chan struct{}, nWorkers)
	for w := 1; w <= nWorkers; w++ {
		go func(id int) {
			worker(id, reconstructor, jobs, results)
			done <- struct{}{}
		}(w)
	}
	go func() {
		for w := 0; w < nWorkers; w++ {
			<-done
		}
		close(results)
	}()
	go sendEventsToWorkers(fileReader, jobs)

	writeErr := processWorkerResults(results, writer, summary)
	if writer != nil {
		if err := writer.Close(); err != nil {
			writeErr = fmt.Errorf("Error closing output file: %w", err)
		}
	}
	if writeErr != nil {
		return writeErr
	}

	summary.SetUnpackerStats(fileReader.Unpacker.Stats())
	if err := summary.WriteText(os.Stdout); err != nil {
		return err
	}
	if configuration.PlotFile != "" {
		if err := summary.SavePlots(configuration.PlotFile); err != nil {
			return err
		}
	}

	duration := time.Since(start)
	logger.Info(fmt.Sprintf("Total events processed: %d in %d ms", summary.Events, duration.Milliseconds()), "main")
	return nil
}
