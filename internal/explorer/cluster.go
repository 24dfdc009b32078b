package explorer

import (
	"time"

	"github.com/jengzang/records-explorer-go/internal/spatial"
)

// AddClusterTile registers a newly visited tile with the cluster tracker.
//
// The tile bumps the neighbour count of itself and of every visited neighbour. Any of those
// cells that just became complete starts a singleton cluster, and adjacent complete cells in
// different clusters are merged. A record entry is returned when the largest cluster grew
// past the previous record.
func (s *EvolutionState) AddClusterTile(t time.Time, tile spatial.TileXY) (ClusterRecord, bool) {
	if _, seen := s.NeighborCount[tile]; seen {
		return ClusterRecord{}, false
	}

	neighbors := tile.Neighbors()
	s.NeighborCount[tile] = 0
	for _, n := range neighbors {
		if _, visited := s.NeighborCount[n]; visited {
			s.NeighborCount[tile]++
			s.NeighborCount[n]++
		}
	}

	candidates := append([]spatial.TileXY{tile}, neighbors[:]...)
	changed := false
	for _, c := range candidates {
		if s.NeighborCount[c] != 4 {
			continue
		}
		if _, member := s.Membership[c]; member {
			continue
		}
		s.Membership[c] = c
		s.Clusters[c] = []spatial.TileXY{c}
		changed = true
	}

	for _, c := range candidates {
		if _, member := s.Membership[c]; !member {
			continue
		}
		for _, other := range c.Neighbors() {
			if s.merge(c, other) {
				changed = true
			}
		}
	}

	if !changed {
		return ClusterRecord{}, false
	}

	// Only clusters around this tile can have grown; every other cluster is bounded by the record.
	largest := s.MaxClusterSize
	for _, c := range candidates {
		if rep, member := s.Membership[c]; member && len(s.Clusters[rep]) > largest {
			largest = len(s.Clusters[rep])
		}
	}
	if largest <= s.MaxClusterSize {
		return ClusterRecord{}, false
	}

	s.MaxClusterSize = largest
	record := ClusterRecord{Time: t, Size: largest}
	s.ClusterHistory = append(s.ClusterHistory, record)
	return record, true
}

// merge joins the clusters of two adjacent complete tiles. The smaller member list is moved
// into the larger one and its leader entry is dropped.
func (s *EvolutionState) merge(a, b spatial.TileXY) bool {
	repA, okA := s.Membership[a]
	repB, okB := s.Membership[b]
	if !okA || !okB || repA == repB {
		return false
	}

	keep, absorb := repA, repB
	if len(s.Clusters[repB]) > len(s.Clusters[repA]) {
		keep, absorb = repB, repA
	}

	moved := s.Clusters[absorb]
	s.Clusters[keep] = append(s.Clusters[keep], moved...)
	for _, member := range moved {
		s.Membership[member] = keep
	}
	delete(s.Clusters, absorb)
	return true
}
