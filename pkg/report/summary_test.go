package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"github.com/a2mainz/acqu_decoder/pkg/reconstruct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvents() []*reconstruct.ReconstructedEvent {
	unmatched := &reconstruct.Cluster{DetectorType: detector.PID, Flags: reconstruct.Unmatched}
	return []*reconstruct.ReconstructedEvent{
		{
			Candidates: []reconstruct.Candidate{
				{Detector: detector.CB | detector.PID, CaloEnergy: 100, Theta: math.Pi / 2},
				{Detector: detector.CB, CaloEnergy: 200, Theta: math.Pi / 4},
			},
			Clusters: []*reconstruct.Cluster{{}, {}, {}, unmatched},
			Messages: []decoder.Message{{Level: decoder.Warn}},
		},
		{
			Candidates: []reconstruct.Candidate{{Detector: detector.CB, CaloEnergy: 300}},
			Clusters:   []*reconstruct.Cluster{{}},
			DAQErrors:  []decoder.DAQError{{ModuleID: 1}},
			Messages:   []decoder.Message{{Level: decoder.Info}, {Level: decoder.DataDiscard}},
		},
		{},
	}
}

func TestSummary(t *testing.T) {
	s := NewSummary(1234)
	for _, e := range testEvents() {
		s.Add(e)
	}
	s.SetUnpackerStats(decoder.Stats{Buffers: 3, DiscardedBuffers: 1})

	assert.Equal(t, 3, s.Events)
	assert.Equal(t, 3, s.Candidates)
	assert.Equal(t, 5, s.Clusters)
	assert.Equal(t, 1, s.UnmatchedClusters)
	assert.Equal(t, 1, s.DAQErrors)
	assert.Equal(t, 2, s.ByDetector[detector.CB])
	assert.Equal(t, 1, s.Charged)
	assert.Equal(t, 1, s.Messages[decoder.DataDiscard])

	e := s.CaloEnergy()
	assert.Equal(t, 3, e.N)
	assert.InDelta(t, 200, e.Mean, 1e-9)
	assert.InDelta(t, 100, e.StdDev, 1e-9)
	assert.Equal(t, 200.0, e.Median)
	assert.Equal(t, 300.0, e.Max)

	m := s.Multiplicity()
	assert.InDelta(t, 1, m.Mean, 1e-9)
	assert.Equal(t, 2.0, m.Max)

	var out bytes.Buffer
	require.NoError(t, s.WriteText(&out))
	assert.Contains(t, out.String(), "Run 1234: 3 events, 3 candidates, 5 clusters (1 unmatched)")
	assert.Contains(t, out.String(), "discarded buffers: 1")
	assert.Contains(t, out.String(), "Candidates CB|PID: 1")
	assert.Contains(t, out.String(), "Charged candidates: 1")
}

func TestSummaryEmpty(t *testing.T) {
	s := NewSummary(1)
	assert.True(t, math.IsNaN(s.CaloEnergy().Mean))
	assert.Zero(t, s.CaloEnergy().N)
	var out bytes.Buffer
	assert.NoError(t, s.WriteText(&out))
}

func TestSavePlots(t *testing.T) {
	for name, events := range map[string][]*reconstruct.ReconstructedEvent{
		"filled": testEvents(),
		"empty":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			s := NewSummary(1234)
			for _, e := range events {
				s.Add(e)
			}
			filename := filepath.Join(t.TempDir(), "run.png")
			require.NoError(t, s.SavePlots(filename))
			info, err := os.Stat(filename)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}
}
