package decoder

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFileFormat is returned when the header matches no supported Acqu format.
	ErrNoFileFormat = errors.New("no applicable Acqu file format found")
	// ErrNoConfig is returned when no setup can configure the unpacker for a run.
	ErrNoConfig = errors.New("no setup found for this run")
	// ErrNoFirstDataBuffer is returned when no data buffer signature is found
	// at any of the known header record lengths.
	ErrNoFirstDataBuffer = errors.New("did not find first data buffer with Mk2 signature")
	// ErrShortFirstBuffer is returned when the file ends inside the first data buffer.
	ErrShortFirstBuffer = errors.New("first data buffer incomplete")
)

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error {
	return e.Err
}

// ErrShortRead represents a read from the raw file that delivered fewer words than requested.
type ErrShortRead struct {
	Wanted int
	Got    int
	Err    error
}

func (e *ErrShortRead) Error() string {
	return fmt.Sprintf("short read: wanted %d words, got %d: %v", e.Wanted, e.Got, e.Err)
}

func (e *ErrShortRead) Unwrap() error {
	return e.Err
}
