package reconstruct

import (
	"encoding/json"
	"fmt"
	"os"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"
)

// Element is the static geometry of one detector element. Positions are
// in cm, angles in radians.
type Element struct {
	Channel     uint32
	Position    r3.Vec
	Neighbours  []uint32
	TouchesHole bool
	// DPhi is the azimuthal width of the element, used by the PID
	DPhi float64
}

type elementJSON struct {
	Channel     uint32     `json:"channel"`
	Position    [3]float64 `json:"position"`
	Neighbours  []uint32   `json:"neighbours,omitempty"`
	TouchesHole bool       `json:"touches_hole,omitempty"`
	DPhi        float64    `json:"dphi,omitempty"`
}

// Detector holds the geometry and clustering policy of one detector type.
type Detector struct {
	Type detector.Type
	// Clustering selects next-neighbour clustering, otherwise every hit
	// becomes its own cluster
	Clustering    bool
	Split         bool
	MoliereRadius float64
	// ElementRadius is the radius of one element, used by the TAPSVeto
	ElementRadius float64
	Weight        WeightFunc
	elements      map[uint32]*Element
}

func NewDetector(t detector.Type, elements []Element) *Detector {
	d := &Detector{
		Type:     t,
		Weight:   LogWeight(DefaultLogWeightW0),
		elements: make(map[uint32]*Element, len(elements)),
	}
	for i := range elements {
		e := elements[i]
		d.elements[e.Channel] = &e
	}
	return d
}

// Element returns the geometry of channel, or nil if it is unknown.
func (d *Detector) Element(channel uint32) *Element {
	return d.elements[channel]
}

func (d *Detector) NElements() int {
	return len(d.elements)
}

type detectorJSON struct {
	Type          detector.Type `json:"type"`
	Clustering    bool          `json:"clustering"`
	Split         bool          `json:"split"`
	MoliereRadius float64       `json:"moliere_radius"`
	ElementRadius float64       `json:"element_radius"`
	Weight        string        `json:"weight"`
	LogWeightW0   float64       `json:"log_weight_w0"`
	Elements      []elementJSON `json:"elements"`
}

// Setup is the set of detectors of the experiment. The detectors with a
// special role in candidate building are nil when not configured.
type Setup struct {
	Detectors map[detector.Type]*Detector
	CB        *Detector
	PID       *Detector
	TAPS      *Detector
	TAPSVeto  *Detector
}

func NewSetup(detectors ...*Detector) *Setup {
	s := &Setup{Detectors: make(map[detector.Type]*Detector)}
	for _, d := range detectors {
		s.Detectors[d.Type] = d
	}
	s.CB = s.Detectors[detector.CB]
	s.PID = s.Detectors[detector.PID]
	s.TAPS = s.Detectors[detector.TAPS]
	s.TAPSVeto = s.Detectors[detector.TAPSVeto]
	return s
}

// Types returns the configured detector types in ascending order.
func (s *Setup) Types() []detector.Type {
	types := make([]detector.Type, 0, len(s.Detectors))
	for t := range s.Detectors {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

type setupFileJSON struct {
	Detectors    []detectorJSON     `json:"detectors"`
	Calibrations []CalibrationEntry `json:"calibrations"`
}

// LoadSetupFile reads the detector geometry and, if present, the
// calibration constants from a JSON file.
func LoadSetupFile(filename string) (*Setup, *Calibration, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, &decoder.ErrOpenFile{Filename: filename, Err: err}
	}
	var file setupFileJSON
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("error parsing detector setup %s: %w", filename, err)
	}

	detectors := make([]*Detector, 0, len(file.Detectors))
	for _, dj := range file.Detectors {
		elements := make([]Element, len(dj.Elements))
		for i, ej := range dj.Elements {
			elements[i] = Element{
				Channel:     ej.Channel,
				Position:    r3.Vec{X: ej.Position[0], Y: ej.Position[1], Z: ej.Position[2]},
				Neighbours:  ej.Neighbours,
				TouchesHole: ej.TouchesHole,
				DPhi:        ej.DPhi,
			}
		}
		d := NewDetector(dj.Type, elements)
		d.Clustering = dj.Clustering
		d.Split = dj.Split
		d.MoliereRadius = dj.MoliereRadius
		d.ElementRadius = dj.ElementRadius
		switch dj.Weight {
		case "", "log":
			w0 := dj.LogWeightW0
			if w0 == 0 {
				w0 = DefaultLogWeightW0
			}
			d.Weight = LogWeight(w0)
		case "linear":
			d.Weight = LinearWeight
		default:
			return nil, nil, fmt.Errorf("detector %v: unknown weight %q", dj.Type, dj.Weight)
		}
		detectors = append(detectors, d)
	}

	if configuration := decoder.GetConfiguration(); configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Loaded %d detectors and %d calibration entries from %s",
			len(detectors), len(file.Calibrations), filename), "setup")
	}
	return NewSetup(detectors...), NewCalibration(file.Calibrations...), nil
}
