package main

import (
	"fmt"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/logging"
)

func printConfiguration(config decoder.Configuration, logger logging.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("Setup file: %s", config.SetupFile), "config")
	logger.Info(fmt.Sprintf("Plot file: %s", config.PlotFile), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Write data: %t", config.WriteData), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Allow single veto clusters: %t", config.AllowSingleVetoClusters), "config")
	logger.Info(fmt.Sprintf("PID phi epsilon: %.2f deg", config.PIDPhiEpsilon), "config")
	logger.Info(fmt.Sprintf("CB cluster threshold: %.1f MeV", config.CBClusterThreshold), "config")
	logger.Info(fmt.Sprintf("TAPS cluster threshold: %.1f MeV", config.TAPSClusterThreshold), "config")
}
