package reconstruct

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/spatial/r3"
)

// crystal is a sane hit together with its element geometry. The node ID in
// the neighbour graph is the index in the crystal list.
type crystal struct {
	hit     *ClusterHit
	element *Element
}

func saneCrystals(d *Detector, hits []ClusterHit) []crystal {
	crystals := make([]crystal, 0, len(hits))
	for i := range hits {
		hit := &hits[i]
		if !hit.IsSane() {
			continue
		}
		element := d.Element(hit.Channel)
		if element == nil {
			logger.Error(fmt.Sprintf("%v: hit in unknown element %d ignored", d.Type, hit.Channel))
			continue
		}
		crystals = append(crystals, crystal{hit: hit, element: element})
	}
	return crystals
}

// Build groups the hits of a clustering detector into clusters of
// neighbouring elements. Hits without energy or time are ignored. Clusters
// come out in the order of their first hit.
func Build(d *Detector, hits []ClusterHit) []*Cluster {
	if !d.Clustering {
		return BuildSimple(d, hits)
	}
	crystals := saneCrystals(d, hits)
	if len(crystals) == 0 {
		return nil
	}

	g := simple.NewUndirectedGraph()
	byChannel := make(map[uint32][]int64, len(crystals))
	for i, c := range crystals {
		g.AddNode(simple.Node(i))
		byChannel[c.element.Channel] = append(byChannel[c.element.Channel], int64(i))
	}
	for i, c := range crystals {
		for _, neighbour := range c.element.Neighbours {
			for _, j := range byChannel[neighbour] {
				if j == int64(i) || g.HasEdgeBetween(int64(i), j) {
					continue
				}
				g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}

	components := topo.ConnectedComponents(g)
	groups := make([][]int, len(components))
	for i, component := range components {
		groups[i] = nodeIndices(component)
	}
	slices.SortFunc(groups, func(a, b []int) int {
		return a[0] - b[0]
	})

	clusters := make([]*Cluster, 0, len(groups))
	for _, group := range groups {
		if d.Split {
			parts := splitGroup(d, crystals, g, group)
			if len(parts) > 1 {
				for _, part := range parts {
					cluster := buildCluster(d, crystals, part)
					cluster.SetFlag(Split, true)
					clusters = append(clusters, cluster)
				}
				continue
			}
		}
		clusters = append(clusters, buildCluster(d, crystals, group))
	}
	return clusters
}

func nodeIndices(nodes []graph.Node) []int {
	indices := make([]int, len(nodes))
	for i, n := range nodes {
		indices[i] = int(n.ID())
	}
	slices.Sort(indices)
	return indices
}

// splitGroup looks for local energy maxima inside a group and assigns
// every crystal to the maximum with the largest E*exp(-2.5*d/R_Moliere).
// Groups with one maximum are returned unchanged.
func splitGroup(d *Detector, crystals []crystal, g *simple.UndirectedGraph, group []int) [][]int {
	var maxima []int
	for _, i := range group {
		isMax := true
		neighbours := g.From(int64(i))
		for neighbours.Next() {
			j := int(neighbours.Node().ID())
			ei, ej := crystals[i].hit.Energy, crystals[j].hit.Energy
			// equal energies: the first seen crystal is the maximum
			if ej > ei || (ej == ei && j < i) {
				isMax = false
				break
			}
		}
		if isMax {
			maxima = append(maxima, i)
		}
	}
	if len(maxima) < 2 {
		return [][]int{group}
	}

	moliere := d.MoliereRadius
	if moliere <= 0 {
		moliere = 1
	}
	parts := make([][]int, len(maxima))
	for _, i := range group {
		best := -1
		bestWeight := math.Inf(-1)
		for k, m := range maxima {
			if m == i {
				best = k
				break
			}
			distance := r3.Norm(r3.Sub(crystals[i].element.Position, crystals[m].element.Position))
			weight := crystals[m].hit.Energy * math.Exp(-2.5*distance/moliere)
			if weight > bestWeight {
				best = k
				bestWeight = weight
			}
		}
		parts[best] = append(parts[best], i)
	}
	return parts
}

func buildCluster(d *Detector, crystals []crystal, group []int) *Cluster {
	cluster := &Cluster{
		DetectorType: d.Type,
		Time:         math.NaN(),
		ShortEnergy:  math.NaN(),
		Hits:         make([]ClusterHit, 0, len(group)),
	}
	for _, i := range group {
		cluster.Energy += crystals[i].hit.Energy
	}

	weightedSum := 0.0
	maxEnergy := math.Inf(-1)
	var central *crystal
	touchesHole := false
	for _, i := range group {
		c := &crystals[i]
		cluster.Hits = append(cluster.Hits, *c.hit)

		w := d.Weight(c.hit.Energy, cluster.Energy)
		cluster.Position = r3.Add(cluster.Position, r3.Scale(w, c.element.Position))
		weightedSum += w
		touchesHole = touchesHole || c.element.TouchesHole

		// strict comparison keeps the first seen crystal on ties
		if c.hit.Energy > maxEnergy {
			maxEnergy = c.hit.Energy
			central = c
		}
	}

	cluster.CentralElement = central.element.Channel
	cluster.Time = central.hit.Time
	cluster.ShortEnergy = central.hit.ShortEnergy()
	cluster.SetFlag(TouchesHoleCentral, central.element.TouchesHole)
	cluster.SetFlag(TouchesHoleCrystal, touchesHole)

	if weightedSum > 0 {
		cluster.Position = r3.Scale(1/weightedSum, cluster.Position)
	} else {
		cluster.Position = central.element.Position
	}
	return cluster
}

// BuildSimple makes one cluster per sane hit, for detectors without
// clustering.
func BuildSimple(d *Detector, hits []ClusterHit) []*Cluster {
	crystals := saneCrystals(d, hits)
	clusters := make([]*Cluster, 0, len(crystals))
	for _, c := range crystals {
		cluster := &Cluster{
			DetectorType:   d.Type,
			Position:       c.element.Position,
			Energy:         c.hit.Energy,
			Time:           c.hit.Time,
			CentralElement: c.element.Channel,
			ShortEnergy:    c.hit.ShortEnergy(),
			Hits:           []ClusterHit{*c.hit},
		}
		cluster.SetFlag(TouchesHoleCentral, c.element.TouchesHole)
		cluster.SetFlag(TouchesHoleCrystal, c.element.TouchesHole)
		clusters = append(clusters, cluster)
	}
	return clusters
}
