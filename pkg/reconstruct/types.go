package reconstruct

import (
	"fmt"
	"math"

	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"gonum.org/v1/gonum/spatial/r3"
)

// Datum is one calibrated value of a hit.
type Datum struct {
	Type  detector.ChannelType
	Value float64
}

// ClusterHit is the calibrated information of one detector element.
// Energy and Time are NaN when the element has no such channel.
type ClusterHit struct {
	Channel uint32
	Energy  float64
	Time    float64
	Data    []Datum
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (h ClusterHit) IsSane() bool {
	return isFinite(h.Energy) && isFinite(h.Time)
}

// ShortEnergy returns the first IntegralShort datum, or NaN.
func (h ClusterHit) ShortEnergy() float64 {
	for _, d := range h.Data {
		if d.Type == detector.IntegralShort {
			return d.Value
		}
	}
	return math.NaN()
}

type ClusterFlag uint8

const (
	Split ClusterFlag = 1 << iota
	TouchesHoleCentral
	TouchesHoleCrystal
	Unmatched
)

var clusterFlagNames = []string{"Split", "TouchesHoleCentral", "TouchesHoleCrystal", "Unmatched"}

func (f ClusterFlag) String() string {
	s := ""
	for i, name := range clusterFlagNames {
		if f&(1<<i) != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	return s
}

type Cluster struct {
	DetectorType   detector.Type
	Position       r3.Vec
	Energy         float64
	Time           float64
	CentralElement uint32
	ShortEnergy    float64
	Hits           []ClusterHit
	Flags          ClusterFlag
}

func (c *Cluster) HasFlag(flag ClusterFlag) bool {
	return c.Flags&flag != 0
}

func (c *Cluster) SetFlag(flag ClusterFlag, on bool) {
	if on {
		c.Flags |= flag
	} else {
		c.Flags &^= flag
	}
}

func (c *Cluster) IsSane() bool {
	return isFinite(c.Energy) && isFinite(c.Time)
}

func (c *Cluster) Theta() float64 {
	return math.Atan2(math.Hypot(c.Position.X, c.Position.Y), c.Position.Z)
}

func (c *Cluster) Phi() float64 {
	return math.Atan2(c.Position.Y, c.Position.X)
}

func (c *Cluster) String() string {
	return fmt.Sprintf("Cluster %v E=%.3f T=%.3f Central=%d Hits=%d Flags=%v",
		c.DetectorType, c.Energy, c.Time, c.CentralElement, len(c.Hits), c.Flags)
}

// Candidate is one particle hypothesis. TrackerEnergy is NaN when no
// tracker took part.
type Candidate struct {
	Detector      detector.Type
	CaloEnergy    float64
	VetoEnergy    float64
	Theta         float64
	Phi           float64
	Time          float64
	ClusterSize   int
	TrackerEnergy float64
	Clusters      []*Cluster
}

func (c Candidate) String() string {
	return fmt.Sprintf("Candidate %v CaloE=%.3f VetoE=%.3f Theta=%.4f Phi=%.4f Time=%.3f Size=%d",
		c.Detector, c.CaloEnergy, c.VetoEnergy, c.Theta, c.Phi, c.Time, c.ClusterSize)
}
