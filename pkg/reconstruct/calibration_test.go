package reconstruct

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cbE0     = detector.LogicalChannel{Detector: detector.CB, ChannelType: detector.Integral, Element: 0}
	cbT0     = detector.LogicalChannel{Detector: detector.CB, ChannelType: detector.Time, Element: 0}
	cbShort0 = detector.LogicalChannel{Detector: detector.CB, ChannelType: detector.IntegralShort, Element: 0}
	cbE1     = detector.LogicalChannel{Detector: detector.CB, ChannelType: detector.Integral, Element: 1}
	pidE0    = detector.LogicalChannel{Detector: detector.PID, ChannelType: detector.Integral, Element: 0}
	pidT0    = detector.LogicalChannel{Detector: detector.PID, ChannelType: detector.Time, Element: 0}
)

func TestCalibrationApply(t *testing.T) {
	c := NewCalibration(CalibrationEntry{LogicalChannel: cbE0, Gain: 0.5, Offset: -10})
	assert.Equal(t, 40.0, c.Apply(cbE0, 100))
	assert.Equal(t, 100.0, c.Apply(cbE1, 100))
	assert.Equal(t, 1, c.Len())

	c = NewCalibration(
		CalibrationEntry{LogicalChannel: pidE0, Gain: 3},
		CalibrationEntry{LogicalChannel: cbE1, Gain: 2},
		CalibrationEntry{LogicalChannel: cbT0, Gain: 1},
	)
	var order []detector.LogicalChannel
	for _, e := range c.Entries() {
		order = append(order, e.LogicalChannel)
	}
	assert.Equal(t, []detector.LogicalChannel{cbT0, cbE1, pidE0}, order)

	var empty *Calibration
	assert.Equal(t, 7.0, empty.Apply(cbE0, 7))
	assert.Zero(t, empty.Len())
	assert.Nil(t, empty.Entries())
}

func TestCalibrationConvert(t *testing.T) {
	c := NewCalibration(CalibrationEntry{LogicalChannel: cbT0, Gain: 2})
	hits := []decoder.DetectorReadHit{
		decoder.NewDetectorReadHit(cbE1, []uint16{30}),
		decoder.NewDetectorReadHit(cbE0, []uint16{100, 101}),
		decoder.NewDetectorReadHit(cbT0, []uint16{5, 6}),
		decoder.NewDetectorReadHit(cbShort0, []uint16{20}),
		decoder.NewDetectorReadHit(pidE0, nil),
	}
	byDetector := c.Convert(hits)
	require.Len(t, byDetector, 1, "hits without values are skipped")

	cb := byDetector[detector.CB]
	require.Len(t, cb, 2)
	assert.Equal(t, uint32(1), cb[0].Channel)
	assert.Equal(t, 30.0, cb[0].Energy)
	assert.True(t, math.IsNaN(cb[0].Time))
	assert.False(t, cb[0].IsSane())

	assert.Equal(t, uint32(0), cb[1].Channel)
	assert.Equal(t, 100.0, cb[1].Energy)
	assert.Equal(t, 10.0, cb[1].Time)
	assert.Equal(t, 20.0, cb[1].ShortEnergy())
	want := []Datum{
		{Type: detector.Integral, Value: 100},
		{Type: detector.Integral, Value: 101},
		{Type: detector.Time, Value: 10},
		{Type: detector.Time, Value: 12},
		{Type: detector.IntegralShort, Value: 20},
	}
	if diff := cmp.Diff(want, cb[1].Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
}

func TestCalibrationDatabase(t *testing.T) {
	db, err := decoder.ConnectToDatabase("sqlite", "", "", "", filepath.Join(t.TempDir(), "calib.db"))
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	require.NoError(t, CreateCalibrationTable(db))
	entries := []CalibrationEntry{
		{LogicalChannel: cbE0, Gain: 0.07, Offset: -3},
		{LogicalChannel: pidT0, Gain: 0.1, Offset: 0},
	}
	require.NoError(t, StoreCalibration(db, 1000, 2000, entries))
	require.NoError(t, StoreCalibration(db, 3000, 4000, []CalibrationEntry{{LogicalChannel: cbE0, Gain: 1}}))

	c, err := LoadCalibration(db, 1234)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.InDelta(t, 4.0, c.Apply(cbE0, 100), 1e-9)
	assert.InDelta(t, 10.0, c.Apply(pidT0, 100), 1e-9)

	c, err = LoadCalibration(db, 2500)
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestLoadSetupFile(t *testing.T) {
	content := `{
	"detectors": [
		{"type": "CB", "clustering": true, "split": true, "moliere_radius": 4.8, "weight": "log",
		 "elements": [
			{"channel": 0, "position": [1, 0, 25], "neighbours": [1]},
			{"channel": 1, "position": [2, 0, 25], "neighbours": [0], "touches_hole": true}
		 ]},
		{"type": "PID", "weight": "linear", "elements": [{"channel": 0, "position": [5, 0, 0], "dphi": 0.26}]},
		{"type": "TAPSVeto", "element_radius": 2.0, "elements": []}
	],
	"calibrations": [
		{"logical_channel": {"detector": "CB", "channel_type": "Integral", "element": 0}, "gain": 0.5, "offset": 1}
	]
}`
	filename := filepath.Join(t.TempDir(), "detectors.json")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))

	setup, calibration, err := LoadSetupFile(filename)
	require.NoError(t, err)
	assert.Equal(t, []detector.Type{detector.CB, detector.PID, detector.TAPSVeto}, setup.Types())
	require.NotNil(t, setup.CB)
	require.NotNil(t, setup.PID)
	assert.Nil(t, setup.TAPS)
	assert.True(t, setup.CB.Clustering)
	assert.True(t, setup.CB.Split)
	assert.Equal(t, 2, setup.CB.NElements())
	assert.True(t, setup.CB.Element(1).TouchesHole)
	assert.Nil(t, setup.CB.Element(7))
	assert.Equal(t, 0.26, setup.PID.Element(0).DPhi)
	assert.Equal(t, 2.0, setup.TAPSVeto.ElementRadius)
	assert.Equal(t, 51.0, calibration.Apply(cbE0, 100))

	_, _, err = LoadSetupFile(filepath.Join(t.TempDir(), "missing.json"))
	var openErr *decoder.ErrOpenFile
	assert.ErrorAs(t, err, &openErr)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"detectors": [{"type": "CB", "weight": "cubic"}]}`), 0o644))
	_, _, err = LoadSetupFile(bad)
	assert.Error(t, err)
}
