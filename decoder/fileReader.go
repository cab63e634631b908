package main

import (
	"errors"
	"fmt"
	"io"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
)

// FileReader hands out the events of the input file honouring the skip and
// max_events settings.
type FileReader struct {
	Unpacker *decoder.Unpacker
	EvtCount int
}

func NewFileReader(filename string, setup decoder.SetupProvider) (*FileReader, error) {
	u, err := decoder.OpenUnpacker(filename, setup)
	if err != nil {
		return nil, err
	}
	if configuration.Skip > 0 {
		if VerbosityLevel > 0 {
			logger.Info(fmt.Sprintf("Skipping %d events", configuration.Skip), "fileReader")
		}
		if err := u.Skip(configuration.Skip); err != nil && !errors.Is(err, io.EOF) {
			u.Close()
			return nil, err
		}
	}
	return &FileReader{Unpacker: u}, nil
}

func (f *FileReader) getNextEvent() (*decoder.Event, error) {
	if f.EvtCount >= configuration.MaxEvents {
		if VerbosityLevel > 0 {
			logger.Info("Max events reached", "fileReader")
		}
		return nil, io.EOF
	}
	event, err := f.Unpacker.NextEvent()
	if err != nil {
		return nil, err
	}
	f.EvtCount++
	if VerbosityLevel > 2 {
		message := fmt.Sprintf("Reading event %d with ID %v (%.1f%%)", f.EvtCount, event.ID, f.Unpacker.PercentDone())
		logger.Info(message, "fileReader")
	}
	return event, nil
}

func (f *FileReader) Close() error {
	return f.Unpacker.Close()
}
