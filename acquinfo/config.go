package main

import (
	"fmt"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/logging"
)

// LoadConfiguration reads the configuration file if given and applies the
// command line overrides on top.
func LoadConfiguration(filename string, fileIn string, plotFile string, maxEvents int) (decoder.Configuration, error) {
	config := decoder.DefaultConfiguration()
	config.WriteData = false

	if filename != "" {
		var err error
		config, err = decoder.LoadConfiguration(filename)
		if err != nil {
			return config, err
		}
	}
	if fileIn != "" {
		config.FileIn = fileIn
	}
	if plotFile != "" {
		config.PlotFile = plotFile
	}
	if maxEvents > 0 {
		config.MaxEvents = maxEvents
	}
	return config, nil
}

func printConfiguration(config decoder.Configuration, logger logging.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("Setup file: %s", config.SetupFile), "config")
	logger.Info(fmt.Sprintf("Plot file: %s", config.PlotFile), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
}
