package reconstruct

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func endToEndSetup() *Setup {
	cb := NewDetector(detector.CB, []Element{
		{Channel: 0, Position: r3.Vec{X: 25, Z: 10}, Neighbours: []uint32{1}},
		{Channel: 1, Position: r3.Vec{X: 25, Y: 2, Z: 10}, Neighbours: []uint32{0}},
	})
	cb.Clustering = true
	pid := NewDetector(detector.PID, []Element{{Channel: 0, Position: r3.Vec{X: 5}, DPhi: pidDPhi}})
	return NewSetup(cb, pid)
}

func endToEndMappings() decoder.SetupList {
	mapping := func(lc detector.LogicalChannel, raw uint32) decoder.HitMapping {
		return decoder.HitMapping{LogicalChannel: lc, RawChannels: []decoder.RawChannel{{RawChannel: raw}}}
	}
	cbT1 := detector.LogicalChannel{Detector: detector.CB, ChannelType: detector.Time, Element: 1}
	return decoder.SetupList{{
		Name:   "end to end",
		MinRun: 1,
		MaxRun: 10000,
		Mappings: decoder.Mappings{HitMappings: []decoder.HitMapping{
			mapping(cbE0, 1), mapping(cbT0, 2),
			mapping(cbE1, 3), mapping(cbT1, 4),
			mapping(pidE0, 5), mapping(pidT0, 6),
		}},
	}}
}

func encodeEvents(t *testing.T, events ...*decoder.RawEvent) []byte {
	t.Helper()
	var out bytes.Buffer
	enc := decoder.NewMk2Encoder(&out, 0x8000)
	header := decoder.HeaderInfo{
		Time:      time.Date(2014, time.April, 10, 12, 0, 0, 0, time.UTC),
		RunNumber: 1234,
	}
	modules := []decoder.ModuleInfoMk2{{ModID: decoder.ECAEN_V792, ModType: int32(decoder.EDAQ_ADC), NChannel: 32, Bits: 12}}
	require.NoError(t, enc.WriteHeader(header, modules))
	for _, event := range events {
		require.NoError(t, enc.WriteEvent(event))
	}
	require.NoError(t, enc.Close())
	return out.Bytes()
}

func TestReconstructEndToEnd(t *testing.T) {
	charged := &decoder.RawEvent{}
	charged.AddHit(1, 70)
	charged.AddHit(2, 12)
	charged.AddHit(3, 30)
	charged.AddHit(4, 13)
	charged.AddHit(5, 3)
	charged.AddHit(6, 11)

	neutral := &decoder.RawEvent{}
	neutral.AddHit(1, 5)
	neutral.AddHit(2, 12)
	neutral.AddHit(3, 40)
	neutral.AddHit(4, 14)

	data := encodeEvents(t, charged, neutral)
	reader, err := decoder.NewRawFileReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	u, err := decoder.NewUnpacker(reader, endToEndMappings())
	require.NoError(t, err)
	defer u.Close()

	r := NewReconstructor(endToEndSetup(), NewCalibration(), testConfig())
	var results []*ReconstructedEvent
	for {
		event, err := u.NextEvent()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		results = append(results, r.Reconstruct(event))
	}
	require.Len(t, results, 2)

	first := results[0]
	require.Len(t, first.Candidates, 1)
	c := first.Candidates[0]
	assert.Equal(t, detector.CB|detector.PID, c.Detector)
	assert.Equal(t, 100.0, c.CaloEnergy)
	assert.Equal(t, 3.0, c.VetoEnergy)
	assert.Equal(t, 2, c.ClusterSize)
	assert.Equal(t, 12.0, c.Time, "time of the central element")
	assert.Len(t, first.Clusters, 2)
	assert.Zero(t, first.Unmatched())
	assert.Equal(t, uint32(0), first.ID.Lower)

	second := results[1]
	require.Len(t, second.Candidates, 1)
	assert.Equal(t, detector.CB, second.Candidates[0].Detector)
	assert.Equal(t, 45.0, second.Candidates[0].CaloEnergy)
	assert.Equal(t, 14.0, second.Candidates[0].Time)
	assert.True(t, math.IsNaN(second.Candidates[0].TrackerEnergy))
	assert.Equal(t, uint32(1), second.ID.Lower)
}

func TestReconstructKeepsTaggerAndSlowControl(t *testing.T) {
	taggerT := detector.LogicalChannel{Detector: detector.Tagger, ChannelType: detector.Time, Element: 17}
	event := &decoder.Event{
		ID: decoder.ID{Timestamp: 1, Lower: 2},
		DetectorReadHits: []decoder.DetectorReadHit{
			decoder.NewDetectorReadHit(taggerT, []uint16{40}),
			decoder.NewDetectorReadHit(pidE0, []uint16{3}),
		},
		SlowControls:     []decoder.SlowControl{{Type: decoder.AcquScaler, Name: "Beampolmon"}},
		UnpackerMessages: []decoder.Message{{Level: decoder.Warn, Text: "test"}},
	}
	result := NewReconstructor(endToEndSetup(), nil, testConfig()).Reconstruct(event)
	assert.Equal(t, event.ID, result.ID)
	require.Len(t, result.TaggerHits, 1)
	assert.Equal(t, uint32(17), result.TaggerHits[0].Channel)
	assert.Equal(t, 40.0, result.TaggerHits[0].Time)
	assert.Len(t, result.SlowControls, 1)
	assert.Len(t, result.Messages, 1)
	assert.Empty(t, result.Candidates)
	// the PID hit has no time and never forms a cluster
	assert.Empty(t, result.Clusters)
}
