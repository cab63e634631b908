package reconstruct

import (
	"fmt"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
)

// ReconstructedEvent is the result of running clustering and candidate
// building on one unpacked event. Clusters holds every cluster of the
// event, the unmatched ones flagged.
type ReconstructedEvent struct {
	ID           decoder.ID
	Candidates   []Candidate
	Clusters     []*Cluster
	TaggerHits   []ClusterHit
	SlowControls []decoder.SlowControl
	DAQErrors    []decoder.DAQError
	Messages     []decoder.Message
}

func (e *ReconstructedEvent) Unmatched() int {
	n := 0
	for _, c := range e.Clusters {
		if c.HasFlag(Unmatched) {
			n++
		}
	}
	return n
}

type Reconstructor struct {
	setup       *Setup
	calibration *Calibration
	builder     *CandidateBuilder
}

func NewReconstructor(setup *Setup, calibration *Calibration, config Config) *Reconstructor {
	return &Reconstructor{
		setup:       setup,
		calibration: calibration,
		builder:     NewCandidateBuilder(setup, config),
	}
}

func (r *Reconstructor) Reconstruct(event *decoder.Event) *ReconstructedEvent {
	result := &ReconstructedEvent{
		ID:           event.ID,
		SlowControls: event.SlowControls,
		DAQErrors:    event.DAQErrors,
		Messages:     event.UnpackerMessages,
	}

	hits := r.calibration.Convert(event.DetectorReadHits)
	result.TaggerHits = append(hits[detector.Tagger], hits[detector.EPT]...)

	clusters := make(SortedClusters, len(r.setup.Detectors))
	for _, t := range r.setup.Types() {
		if len(hits[t]) == 0 {
			continue
		}
		clusters[t] = Build(r.setup.Detectors[t], hits[t])
	}
	if configuration := decoder.GetConfiguration(); configuration.Verbosity > 2 {
		for t, h := range hits {
			if _, ok := r.setup.Detectors[t]; !ok && t != detector.Tagger && t != detector.EPT {
				logger.Info(fmt.Sprintf("Event %v: %d hits of unconfigured detector %v ignored", event.ID, len(h), t), "reconstruct")
			}
		}
	}

	result.Candidates, result.Clusters = r.builder.Build(clusters)
	return result
}
