package output

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"github.com/a2mainz/acqu_decoder/pkg/reconstruct"
	hdf5 "github.com/jmbenlloch/go-hdf5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func readTable[T any](t *testing.T, f *hdf5.File, name string) []T {
	t.Helper()
	dset, err := f.OpenDataset(name)
	require.NoError(t, err)
	defer dset.Close()
	dims, _, err := dset.Space().SimpleExtentDims()
	require.NoError(t, err)
	rows := make([]T, dims[0])
	if len(rows) > 0 {
		require.NoError(t, dset.Read(&rows))
	}
	return rows
}

func TestWriterRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "run.h5")
	header := decoder.HeaderInfo{
		Time:          time.Date(2014, time.April, 10, 12, 0, 0, 0, time.UTC),
		Description:   "Test run",
		RunNumber:     1234,
		RecordLength:  0x8000,
		ADCModules:    []decoder.HardwareModule{{Identifier: "CAEN_V792", NRawChannels: 32, Bits: 12}},
		ScalerModules: []decoder.HardwareModule{{Identifier: "SIS_3820", Index: 1, NRawChannels: 32, Bits: 32}},
	}
	w, err := NewWriter(filename, header, 1397124000, 4)
	require.NoError(t, err)
	assert.Len(t, w.SessionID, 36)

	cb := &reconstruct.Cluster{DetectorType: detector.CB, Position: r3.Vec{X: 1, Y: 2, Z: 3}, Energy: 100, Time: 5, ShortEnergy: math.NaN(), Hits: make([]reconstruct.ClusterHit, 2)}
	lost := &reconstruct.Cluster{DetectorType: detector.PID, Energy: 1, Flags: reconstruct.Unmatched}
	event := &reconstruct.ReconstructedEvent{
		ID:         decoder.ID{Timestamp: 1397124000, Lower: 7},
		Candidates: []reconstruct.Candidate{{Detector: detector.CB, CaloEnergy: 100, ClusterSize: 2, TrackerEnergy: math.NaN(), Clusters: []*reconstruct.Cluster{cb}}},
		Clusters:   []*reconstruct.Cluster{cb, lost},
		SlowControls: []decoder.SlowControl{{
			Type:          decoder.EpicsOneShot,
			Name:          "EPICS_BEAM",
			PayloadFloat:  []decoder.KeyValue[float64]{{Key: 0, Value: 1.5}},
			PayloadString: []decoder.KeyValue[string]{{Key: 1, Value: "ON"}},
		}},
		DAQErrors: []decoder.DAQError{{ModuleID: 0x2001, ErrorCode: 3, ModuleName: "CAEN_V792"}},
		Messages:  []decoder.Message{{Level: decoder.Warn, Text: "value {}", Payload: []float64{2}}},
	}
	require.NoError(t, w.WriteEvent(event))
	require.NoError(t, w.WriteEvent(&reconstruct.ReconstructedEvent{ID: decoder.ID{Lower: 8}}))
	assert.Equal(t, 2, w.EvtCounter)
	require.NoError(t, w.Close())

	f, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()

	runInfo := readTable[RunInfoHDF5](t, f, "Run/runInfo")
	require.Len(t, runInfo, 1)
	assert.Equal(t, int32(1234), runInfo[0].run_number)
	assert.Len(t, readTable[ModuleHDF5](t, f, "Run/modules"), 2)

	events := readTable[EventDataHDF5](t, f, "Run/events")
	require.Len(t, events, 2)
	assert.Equal(t, uint32(7), events[0].evt_number)
	assert.Equal(t, int32(1), events[0].n_unmatched)

	clusters := readTable[ClusterHDF5](t, f, "Reconstructed/clusters")
	require.Len(t, clusters, 2)
	assert.Equal(t, int32(0), clusters[0].candidate)
	assert.Equal(t, int32(-1), clusters[1].candidate)
	assert.Equal(t, 100.0, clusters[0].energy)

	assert.Len(t, readTable[CandidateHDF5](t, f, "Reconstructed/candidates"), 1)
	assert.Len(t, readTable[SlowControlHDF5](t, f, "SlowControl/values"), 2)
	assert.Len(t, readTable[DAQErrorHDF5](t, f, "Unpacker/daqErrors"), 1)
	messages := readTable[MessageHDF5](t, f, "Unpacker/messages")
	require.Len(t, messages, 1)
	assert.Equal(t, "value 2", string(messages[0].text[:7]))
}

func TestNewWriterBadPath(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "missing", "run.h5"), decoder.HeaderInfo{}, 0, 0)
	assert.Error(t, err)
}

func TestCandidateIndexSharedVeto(t *testing.T) {
	pid := &reconstruct.Cluster{DetectorType: detector.PID, Energy: 2}
	a := &reconstruct.Cluster{DetectorType: detector.CB, Energy: 100}
	b := &reconstruct.Cluster{DetectorType: detector.CB, Energy: 50}
	event := &reconstruct.ReconstructedEvent{
		Candidates: []reconstruct.Candidate{
			{Detector: detector.CB | detector.PID, Clusters: []*reconstruct.Cluster{a, pid}},
			{Detector: detector.CB | detector.PID, Clusters: []*reconstruct.Cluster{b, pid}},
		},
		Clusters: []*reconstruct.Cluster{a, b, pid},
	}
	index := candidateIndex(event)
	assert.Equal(t, int32(0), index[a])
	assert.Equal(t, int32(1), index[b])
	assert.Equal(t, int32(0), index[pid])
}
