package report

import (
	"fmt"
	"io"
	"math"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"github.com/a2mainz/acqu_decoder/pkg/reconstruct"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
)

// Summary accumulates run level numbers over reconstructed events.
type Summary struct {
	Run               uint32
	Events            int
	Candidates        int
	Clusters          int
	UnmatchedClusters int
	DAQErrors         int
	SlowControls      int
	Messages          map[decoder.MessageLevel]int
	ByDetector        map[detector.Type]int
	// Charged counts candidates with a PID or TAPS veto cluster
	Charged  int
	Unpacker decoder.Stats

	caloEnergies   []float64
	thetas         []float64
	multiplicities []float64
}

func NewSummary(run uint32) *Summary {
	return &Summary{
		Run:        run,
		Messages:   make(map[decoder.MessageLevel]int),
		ByDetector: make(map[detector.Type]int),
	}
}

func (s *Summary) Add(event *reconstruct.ReconstructedEvent) {
	s.Events++
	s.Candidates += len(event.Candidates)
	s.Clusters += len(event.Clusters)
	s.UnmatchedClusters += event.Unmatched()
	s.DAQErrors += len(event.DAQErrors)
	s.SlowControls += len(event.SlowControls)
	for _, m := range event.Messages {
		s.Messages[m.Level]++
	}
	for _, c := range event.Candidates {
		s.ByDetector[c.Detector]++
		if c.Detector.Contains(detector.PID) || c.Detector.Contains(detector.TAPSVeto) {
			s.Charged++
		}
		if c.CaloEnergy > 0 {
			s.caloEnergies = append(s.caloEnergies, c.CaloEnergy)
			s.thetas = append(s.thetas, c.Theta*180/math.Pi)
		}
	}
	s.multiplicities = append(s.multiplicities, float64(len(event.Candidates)))
}

// SetUnpackerStats records the counters of the unpacker once the run is done.
func (s *Summary) SetUnpackerStats(stats decoder.Stats) {
	s.Unpacker = stats
}

// Distribution describes a sample of values.
type Distribution struct {
	N      int
	Mean   float64
	StdDev float64
	Median float64
	Max    float64
}

func describe(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{Mean: math.NaN(), StdDev: math.NaN(), Median: math.NaN(), Max: math.NaN()}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	d := Distribution{N: len(sorted), Max: sorted[len(sorted)-1]}
	d.Mean, d.StdDev = stat.MeanStdDev(sorted, nil)
	if len(sorted) == 1 {
		d.StdDev = 0
	}
	d.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return d
}

func (s *Summary) CaloEnergy() Distribution {
	return describe(s.caloEnergies)
}

func (s *Summary) Multiplicity() Distribution {
	return describe(s.multiplicities)
}

func (s *Summary) WriteText(w io.Writer) error {
	p := func(format string, args ...any) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	}
	if err := p("Run %d: %d events, %d candidates, %d clusters (%d unmatched)\n",
		s.Run, s.Events, s.Candidates, s.Clusters, s.UnmatchedClusters); err != nil {
		return err
	}
	if err := p("Buffers: %d, discarded buffers: %d, discarded events: %d\n",
		s.Unpacker.Buffers, s.Unpacker.DiscardedBuffers, s.Unpacker.DiscardedEvents); err != nil {
		return err
	}
	if err := p("DAQ errors: %d, slow controls: %d\n", s.DAQErrors, s.SlowControls); err != nil {
		return err
	}
	for _, level := range []decoder.MessageLevel{decoder.Info, decoder.Warn, decoder.DataError, decoder.DataDiscard} {
		if err := p("Messages %v: %d\n", level, s.Messages[level]); err != nil {
			return err
		}
	}

	types := make([]detector.Type, 0, len(s.ByDetector))
	for t := range s.ByDetector {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		if err := p("Candidates %v: %d\n", t, s.ByDetector[t]); err != nil {
			return err
		}
	}

	if err := p("Charged candidates: %d\n", s.Charged); err != nil {
		return err
	}

	e := s.CaloEnergy()
	m := s.Multiplicity()
	if err := p("Calorimeter energy: n=%d mean=%.2f sd=%.2f median=%.2f max=%.2f\n", e.N, e.Mean, e.StdDev, e.Median, e.Max); err != nil {
		return err
	}
	return p("Multiplicity: mean=%.3f sd=%.3f max=%.0f\n", m.Mean, m.StdDev, m.Max)
}
