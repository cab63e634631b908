package decoder

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func compress(t *testing.T, compression Compression, data []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	var w io.WriteCloser
	var err error
	switch compression {
	case CompressionGzip:
		w = gzip.NewWriter(&out)
	case CompressionZstd:
		w, err = zstd.NewWriter(&out)
	case CompressionXz:
		w, err = xz.NewWriter(&out)
	case CompressionLZ4:
		w = lz4.NewWriter(&out)
	default:
		return data
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return out.Bytes()
}

func TestCompressedFiles(t *testing.T) {
	data := encodeFile(t, testHeader(), func(enc *Mk2Encoder) {
		for i := 0; i < 10; i++ {
			require.NoError(t, enc.WriteEvent(hitEvent([2]uint16{1, uint16(i)}, [2]uint16{3, uint16(2 * i)})))
		}
	})

	for _, compression := range []Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionXz, CompressionLZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			filename := filepath.Join(t.TempDir(), "run.dat")
			require.NoError(t, os.WriteFile(filename, compress(t, compression, data), 0o644))

			u, err := OpenUnpacker(filename, testSetup())
			require.NoError(t, err)
			defer u.Close()
			assert.Equal(t, compression, u.reader.Compression())

			events := readAll(t, u)
			require.Len(t, events, 10)
			assert.Equal(t, []uint16{18}, events[9].DetectorReadHits[1].Values())
			assert.Greater(t, u.PercentDone(), 0.0)
			if compression == CompressionNone {
				assert.InDelta(t, 100.0, u.PercentDone(), 1e-9)
			}
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := OpenUnpacker(filepath.Join(t.TempDir(), "missing.dat"), testSetup())
	var openErr *ErrOpenFile
	require.ErrorAs(t, err, &openErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRawFileReaderExpandBuffer(t *testing.T) {
	data := make([]byte, 4*10)
	for i := range 10 {
		data[4*i] = byte(i)
	}
	reader, err := NewRawFileReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var buffer []uint32
	require.NoError(t, reader.ExpandBuffer(&buffer, 4))
	assert.Equal(t, []uint32{0, 1, 2, 3}, buffer)
	require.NoError(t, reader.ExpandBuffer(&buffer, 2), "shrinking is a no-op")
	assert.Len(t, buffer, 4)

	err = reader.ExpandBuffer(&buffer, 12)
	var short *ErrShortRead
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 8, short.Wanted)
	assert.Equal(t, 6, short.Got)
	assert.Len(t, buffer, 10)
	assert.True(t, reader.EOF())
	assert.Equal(t, 24, reader.GCount())
}
