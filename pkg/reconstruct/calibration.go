package reconstruct

import (
	"cmp"
	"math"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"golang.org/x/exp/slices"
)

// CalibrationEntry converts the raw values of one logical channel with
// value = Offset + Gain*raw.
type CalibrationEntry struct {
	LogicalChannel detector.LogicalChannel `json:"logical_channel"`
	Gain           float64                 `json:"gain"`
	Offset         float64                 `json:"offset"`
}

// Calibration holds the constants of a run. Channels without an entry
// keep their raw value.
type Calibration struct {
	entries map[detector.LogicalChannel]CalibrationEntry
}

func NewCalibration(entries ...CalibrationEntry) *Calibration {
	c := &Calibration{entries: make(map[detector.LogicalChannel]CalibrationEntry, len(entries))}
	for _, e := range entries {
		c.entries[e.LogicalChannel] = e
	}
	return c
}

func (c *Calibration) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns the constants ordered by detector, channel type and
// element.
func (c *Calibration) Entries() []CalibrationEntry {
	if c == nil {
		return nil
	}
	entries := make([]CalibrationEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b CalibrationEntry) int {
		la, lb := a.LogicalChannel, b.LogicalChannel
		if la.Detector != lb.Detector {
			return cmp.Compare(la.Detector, lb.Detector)
		}
		if la.ChannelType != lb.ChannelType {
			return cmp.Compare(la.ChannelType, lb.ChannelType)
		}
		return cmp.Compare(la.Element, lb.Element)
	})
	return entries
}

func (c *Calibration) Apply(channel detector.LogicalChannel, raw uint16) float64 {
	if c == nil {
		return float64(raw)
	}
	e, ok := c.entries[channel]
	if !ok {
		return float64(raw)
	}
	return e.Offset + e.Gain*float64(raw)
}

// Convert groups the calibrated read hits by detector and element. The
// first Integral value sets the energy, the first Time value sets the time.
// Elements appear in the order they are first seen.
func (c *Calibration) Convert(hits []decoder.DetectorReadHit) map[detector.Type][]ClusterHit {
	byDetector := make(map[detector.Type][]ClusterHit)
	index := make(map[detector.Type]map[uint32]int)

	for _, readHit := range hits {
		lc := readHit.LogicalChannel
		values := readHit.Values()
		if len(values) == 0 {
			continue
		}
		if index[lc.Detector] == nil {
			index[lc.Detector] = make(map[uint32]int)
		}
		element := uint32(lc.Element)
		i, ok := index[lc.Detector][element]
		if !ok {
			i = len(byDetector[lc.Detector])
			index[lc.Detector][element] = i
			byDetector[lc.Detector] = append(byDetector[lc.Detector], ClusterHit{
				Channel: element,
				Energy:  math.NaN(),
				Time:    math.NaN(),
			})
		}
		hit := &byDetector[lc.Detector][i]

		for k, raw := range values {
			value := c.Apply(lc, raw)
			hit.Data = append(hit.Data, Datum{Type: lc.ChannelType, Value: value})
			if k > 0 {
				continue
			}
			switch lc.ChannelType {
			case detector.Integral:
				if math.IsNaN(hit.Energy) {
					hit.Energy = value
				}
			case detector.Time:
				if math.IsNaN(hit.Time) {
					hit.Time = value
				}
			}
		}
	}
	return byDetector
}
