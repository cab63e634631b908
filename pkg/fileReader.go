package decoder

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionXz
	CompressionLZ4
)

var compressionStrings = []string{"none", "gzip", "zstd", "xz", "lz4"}

func (c Compression) String() string {
	if c < CompressionNone || int(c) >= len(compressionStrings) {
		return "UNKNOWN"
	}
	return compressionStrings[c]
}

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicXz   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// countingReader tracks how many bytes of the underlying (possibly
// compressed) stream have been consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// RawFileReader streams 32bit words from a plain or compressed Acqu file.
// It cannot seek, so callers grow their buffers with ExpandBuffer.
type RawFileReader struct {
	closers     []io.Closer
	counter     *countingReader
	r           io.Reader
	size        int64
	compression Compression
	eof         bool
	gcount      int
	scratch     []byte
}

func OpenRawFile(filename string) (*RawFileReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	reader, err := NewRawFileReader(file, fileInfo.Size())
	if err != nil {
		file.Close()
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	reader.closers = append(reader.closers, file)
	return reader, nil
}

// NewRawFileReader wraps r, detecting the compression from its first bytes.
// size is the number of bytes of r, used for PercentDone; 0 if unknown.
func NewRawFileReader(r io.Reader, size int64) (*RawFileReader, error) {
	counter := &countingReader{r: r}
	buffered := bufio.NewReaderSize(counter, 1<<16)
	reader := &RawFileReader{counter: counter, size: size}

	magic, _ := buffered.Peek(len(magicXz))
	switch {
	case bytes.HasPrefix(magic, magicGzip):
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip stream: %w", err)
		}
		reader.closers = append(reader.closers, gz)
		reader.r = gz
		reader.compression = CompressionGzip
	case bytes.HasPrefix(magic, magicZstd):
		zr, err := zstd.NewReader(buffered, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("error opening zstd stream: %w", err)
		}
		rc := zr.IOReadCloser()
		reader.closers = append(reader.closers, rc)
		reader.r = rc
		reader.compression = CompressionZstd
	case bytes.HasPrefix(magic, magicXz):
		xr, err := xz.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("error opening xz stream: %w", err)
		}
		reader.r = xr
		reader.compression = CompressionXz
	case bytes.HasPrefix(magic, magicLZ4):
		reader.r = lz4.NewReader(buffered)
		reader.compression = CompressionLZ4
	default:
		reader.r = buffered
		reader.compression = CompressionNone
	}
	return reader, nil
}

func (f *RawFileReader) Compression() Compression {
	return f.compression
}

// Read fills words completely or reports why it could not. The returned
// count is the number of complete words read.
func (f *RawFileReader) Read(words []uint32) (int, error) {
	nBytes := WORD_SIZE * len(words)
	if cap(f.scratch) < nBytes {
		f.scratch = make([]byte, nBytes)
	}
	data := f.scratch[:nBytes]
	n, err := io.ReadFull(f.r, data)
	f.gcount = n
	nWords := n / WORD_SIZE
	for i := 0; i < nWords; i++ {
		words[i] = binary.LittleEndian.Uint32(data[WORD_SIZE*i:])
	}
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			f.eof = true
		}
		return nWords, &ErrShortRead{Wanted: len(words), Got: nWords, Err: err}
	}
	return nWords, nil
}

// ExpandBuffer grows buffer to n words, reading the missing words from the file.
func (f *RawFileReader) ExpandBuffer(buffer *[]uint32, n int) error {
	current := len(*buffer)
	if current >= n {
		return nil
	}
	if cap(*buffer) < n {
		grown := make([]uint32, current, n)
		copy(grown, *buffer)
		*buffer = grown
	}
	*buffer = (*buffer)[:n]
	nRead, err := f.Read((*buffer)[current:])
	if err != nil {
		*buffer = (*buffer)[:current+nRead]
		return err
	}
	return nil
}

// GCount returns the number of bytes delivered by the last Read.
func (f *RawFileReader) GCount() int {
	return f.gcount
}

func (f *RawFileReader) EOF() bool {
	return f.eof
}

func (f *RawFileReader) PercentDone() float64 {
	if f.size <= 0 {
		return 0
	}
	return 100.0 * float64(f.counter.n) / float64(f.size)
}

func (f *RawFileReader) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}
