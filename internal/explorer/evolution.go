package explorer

import (
	"time"

	"github.com/jengzang/records-explorer-go/internal/spatial"
)

// ClusterRecord is one record-breaking entry of the cluster history.
type ClusterRecord struct {
	Time time.Time `json:"time"`
	Size int       `json:"max_cluster_size"`
}

// SquareRecord is one record-breaking entry of the square history.
type SquareRecord struct {
	Time time.Time `json:"time"`
	Size int       `json:"max_square_size"`
	X    int       `json:"square_x"`
	Y    int       `json:"square_y"`
}

// EvolutionState holds both achievement trackers of one zoom level.
//
// NeighborCount has an entry for every tile the cluster tracker has consumed. Membership and
// Clusters only cover complete tiles (all 4 neighbours visited) and partition them.
//
// Cursor is the number of first-visit stream entries consumed, LastConsumed the entry at
// Cursor-1. Histories are non-decreasing in time only while the stream prefix they were built
// from stays unchanged; Resumable tells the caller when the state has to be rebuilt.
type EvolutionState struct {
	Zoom int

	NeighborCount  map[spatial.TileXY]int
	Membership     map[spatial.TileXY]spatial.TileXY
	Clusters       map[spatial.TileXY][]spatial.TileXY
	MaxClusterSize int
	ClusterHistory []ClusterRecord

	Visited       map[spatial.TileXY]struct{}
	MaxSquareSize int
	SquareAnchor  spatial.TileXY
	SquareHistory []SquareRecord

	Cursor       int
	LastConsumed spatial.TimedTile
}

// NewEvolutionState creates an empty state for zoom
func NewEvolutionState(zoom int) *EvolutionState {
	return &EvolutionState{
		Zoom:          zoom,
		NeighborCount: make(map[spatial.TileXY]int),
		Membership:    make(map[spatial.TileXY]spatial.TileXY),
		Clusters:      make(map[spatial.TileXY][]spatial.TileXY),
		Visited:       make(map[spatial.TileXY]struct{}),
	}
}

// Resumable reports whether stream still starts with the entries consumed so far, given the
// earliest entry the ledger added or moved since the last run. If it does not, the state must
// be rebuilt from the full stream.
func (s *EvolutionState) Resumable(stream []spatial.TimedTile, changedFrom spatial.TimedTile, changed bool) bool {
	if s.Cursor > len(stream) || s.Cursor != len(s.Visited) || s.Cursor != len(s.NeighborCount) {
		return false
	}
	if s.Cursor == 0 {
		return true
	}
	last := stream[s.Cursor-1]
	if last.Tile != s.LastConsumed.Tile || !last.Time.Equal(s.LastConsumed.Time) {
		return false
	}
	return !changed || timedTileLess(s.LastConsumed, changedFrom)
}

// Consume feeds the first-visit stream from the cursor on to both trackers and reports
// whether anything was consumed. The stream must come from VisitLedger.FirstVisitStream and
// be resumable.
func (s *EvolutionState) Consume(stream []spatial.TimedTile) bool {
	if s.Cursor >= len(stream) {
		return false
	}
	for _, entry := range stream[s.Cursor:] {
		s.AddClusterTile(entry.Time, entry.Tile)
		s.AddSquareTile(entry.Time, entry.Tile)
		s.Cursor++
		s.LastConsumed = entry
	}
	return true
}

// LargestCluster returns the representative and members of the biggest cluster.
// Ties go to the row-major smallest representative.
func (s *EvolutionState) LargestCluster() (spatial.TileXY, []spatial.TileXY, bool) {
	var (
		best    spatial.TileXY
		members []spatial.TileXY
		found   bool
	)
	for rep, m := range s.Clusters {
		if !found || len(m) > len(members) || (len(m) == len(members) && tileLess(rep, best)) {
			best, members, found = rep, m, true
		}
	}
	return best, members, found
}

// SquareTiles returns the tiles of the current record square.
func (s *EvolutionState) SquareTiles() []spatial.TileXY {
	tiles := make([]spatial.TileXY, 0, s.MaxSquareSize*s.MaxSquareSize)
	for dy := 0; dy < s.MaxSquareSize; dy++ {
		for dx := 0; dx < s.MaxSquareSize; dx++ {
			tiles = append(tiles, spatial.TileXY{X: s.SquareAnchor.X + dx, Y: s.SquareAnchor.Y + dy})
		}
	}
	return tiles
}
