package reconstruct

import (
	"fmt"
	"math"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"golang.org/x/exp/slices"
)

type Config struct {
	AllowSingleVetoClusters bool
	// PIDPhiEpsilon widens the PID azimuthal window, in radians
	PIDPhiEpsilon        float64
	CBClusterThreshold   float64
	TAPSClusterThreshold float64
}

// ConfigFromConfiguration converts the decoder configuration, which has
// the PID epsilon in degrees.
func ConfigFromConfiguration(c decoder.Configuration) Config {
	return Config{
		AllowSingleVetoClusters: c.AllowSingleVetoClusters,
		PIDPhiEpsilon:           c.PIDPhiEpsilon * math.Pi / 180,
		CBClusterThreshold:      c.CBClusterThreshold,
		TAPSClusterThreshold:    c.TAPSClusterThreshold,
	}
}

// SortedClusters holds the clusters of one event per detector type.
type SortedClusters map[detector.Type][]*Cluster

// CandidateBuilder combines the clusters of the detector layers into
// candidates. It keeps no state between events.
type CandidateBuilder struct {
	setup  *Setup
	config Config
}

func NewCandidateBuilder(setup *Setup, config Config) *CandidateBuilder {
	if configuration := decoder.GetConfiguration(); configuration.Verbosity > 2 {
		for name, d := range map[string]*Detector{"CB": setup.CB, "PID": setup.PID, "TAPS": setup.TAPS, "TAPSVeto": setup.TAPSVeto} {
			if d == nil {
				logger.Info(fmt.Sprintf("Detector %s not initialized", name), "candidates")
			}
		}
	}
	return &CandidateBuilder{setup: setup, config: config}
}

// phiMpiPi wraps an angle into [-pi, pi).
func phiMpiPi(phi float64) float64 {
	phi = math.Mod(phi+math.Pi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi - math.Pi
}

func sortedTypes(clusters SortedClusters) []detector.Type {
	types := make([]detector.Type, 0, len(clusters))
	for t := range clusters {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Build consumes the clusters and returns the candidates together with
// every cluster it was given. Clusters not part of any candidate carry the
// Unmatched flag.
func (b *CandidateBuilder) Build(clusters SortedClusters) ([]Candidate, []*Cluster) {
	var candidates []Candidate
	all := make([]*Cluster, 0)

	// insane clusters and clusters below threshold never form candidates
	for _, t := range sortedTypes(clusters) {
		threshold := 0.0
		switch t {
		case detector.CB:
			threshold = b.config.CBClusterThreshold
		case detector.TAPS:
			threshold = b.config.TAPSClusterThreshold
		}
		kept := clusters[t][:0:0]
		for _, c := range clusters[t] {
			if c.IsSane() && c.Energy > threshold {
				kept = append(kept, c)
				continue
			}
			c.SetFlag(Unmatched, true)
			all = append(all, c)
		}
		clusters[t] = kept
	}

	if b.setup.CB != nil && b.setup.PID != nil {
		candidates, all = b.buildPIDCB(clusters, candidates, all)
	}
	if b.setup.TAPS != nil && b.setup.TAPSVeto != nil {
		candidates, all = b.buildTAPSVeto(clusters, candidates, all)
	}
	candidates, all = b.catchAll(clusters, candidates, all)

	for _, t := range sortedTypes(clusters) {
		for _, c := range clusters[t] {
			c.SetFlag(Unmatched, true)
			all = append(all, c)
		}
		clusters[t] = nil
	}
	return candidates, all
}

// buildPIDCB matches every PID cluster with all CB clusters inside its
// azimuthal window. A CB cluster goes to the first PID cluster matching it.
func (b *CandidateBuilder) buildPIDCB(clusters SortedClusters, candidates []Candidate, all []*Cluster) ([]Candidate, []*Cluster) {
	cbClusters := clusters[detector.CB]
	pidClusters := clusters[detector.PID]
	if len(cbClusters) == 0 || len(pidClusters) == 0 {
		return candidates, all
	}

	remainingPID := pidClusters[:0:0]
	for _, pid := range pidClusters {
		pidPhi := pid.Phi()
		dPhi := 0.0
		if element := b.setup.PID.Element(pid.CentralElement); element != nil {
			dPhi = element.DPhi
		}
		dPhiMax := (dPhi + b.config.PIDPhiEpsilon) / 2

		matched := false
		remainingCB := cbClusters[:0:0]
		for _, cb := range cbClusters {
			if math.Abs(phiMpiPi(cb.Phi()-pidPhi)) < dPhiMax {
				candidates = append(candidates, Candidate{
					Detector:      detector.CB | detector.PID,
					CaloEnergy:    cb.Energy,
					VetoEnergy:    pid.Energy,
					Theta:         cb.Theta(),
					Phi:           cb.Phi(),
					Time:          cb.Time,
					ClusterSize:   len(cb.Hits),
					TrackerEnergy: math.NaN(),
					Clusters:      []*Cluster{cb, pid},
				})
				all = append(all, cb)
				matched = true
				continue
			}
			remainingCB = append(remainingCB, cb)
		}
		cbClusters = remainingCB

		if matched {
			all = append(all, pid)
		} else {
			remainingPID = append(remainingPID, pid)
		}
	}
	clusters[detector.CB] = cbClusters
	clusters[detector.PID] = remainingPID
	return candidates, all
}

// buildTAPSVeto matches TAPS clusters whose position projected on the
// detector plane is closer than one veto element radius to a veto cluster.
func (b *CandidateBuilder) buildTAPSVeto(clusters SortedClusters, candidates []Candidate, all []*Cluster) ([]Candidate, []*Cluster) {
	tapsClusters := clusters[detector.TAPS]
	vetoClusters := clusters[detector.TAPSVeto]
	if len(tapsClusters) == 0 || len(vetoClusters) == 0 {
		return candidates, all
	}

	radius := b.setup.TAPSVeto.ElementRadius

	remainingVeto := vetoClusters[:0:0]
	for _, veto := range vetoClusters {
		matched := false
		remainingTAPS := tapsClusters[:0:0]
		for _, taps := range tapsClusters {
			dx := taps.Position.X - veto.Position.X
			dy := taps.Position.Y - veto.Position.Y
			if math.Hypot(dx, dy) < radius {
				candidates = append(candidates, Candidate{
					Detector:      detector.TAPS | detector.TAPSVeto,
					CaloEnergy:    taps.Energy,
					VetoEnergy:    veto.Energy,
					Theta:         taps.Theta(),
					Phi:           taps.Phi(),
					Time:          taps.Time,
					ClusterSize:   len(taps.Hits),
					TrackerEnergy: math.NaN(),
					Clusters:      []*Cluster{taps, veto},
				})
				all = append(all, taps)
				matched = true
				continue
			}
			remainingTAPS = append(remainingTAPS, taps)
		}
		tapsClusters = remainingTAPS

		if matched {
			all = append(all, veto)
		} else {
			remainingVeto = append(remainingVeto, veto)
		}
	}
	clusters[detector.TAPS] = tapsClusters
	clusters[detector.TAPSVeto] = remainingVeto
	return candidates, all
}

func (b *CandidateBuilder) catchAll(clusters SortedClusters, candidates []Candidate, all []*Cluster) ([]Candidate, []*Cluster) {
	for _, t := range sortedTypes(clusters) {
		switch {
		case b.config.AllowSingleVetoClusters && (t == detector.PID || t == detector.TAPSVeto):
			for _, c := range clusters[t] {
				candidates = append(candidates, Candidate{
					Detector:      t,
					CaloEnergy:    0,
					VetoEnergy:    c.Energy,
					Theta:         c.Theta(),
					Phi:           c.Phi(),
					Time:          c.Time,
					ClusterSize:   1,
					TrackerEnergy: math.NaN(),
					Clusters:      []*Cluster{c},
				})
				all = append(all, c)
			}
			clusters[t] = nil
		case t == detector.CB || t == detector.TAPS:
			for _, c := range clusters[t] {
				candidates = append(candidates, Candidate{
					Detector:      t,
					CaloEnergy:    c.Energy,
					VetoEnergy:    0,
					Theta:         c.Theta(),
					Phi:           c.Phi(),
					Time:          c.Time,
					ClusterSize:   len(c.Hits),
					TrackerEnergy: math.NaN(),
					Clusters:      []*Cluster{c},
				})
				all = append(all, c)
			}
			clusters[t] = nil
		case t == detector.MWPC0 || t == detector.MWPC1 || t == detector.Cherenkov:
			for _, c := range clusters[t] {
				candidates = append(candidates, Candidate{
					Detector:      t,
					CaloEnergy:    0,
					VetoEnergy:    0,
					Theta:         c.Theta(),
					Phi:           c.Phi(),
					Time:          c.Time,
					ClusterSize:   1,
					TrackerEnergy: c.Energy,
					Clusters:      []*Cluster{c},
				})
				all = append(all, c)
			}
			clusters[t] = nil
		}
	}
	return candidates, all
}
