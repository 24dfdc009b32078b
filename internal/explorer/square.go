package explorer

import (
	"time"

	"github.com/jengzang/records-explorer-go/internal/spatial"
)

// AddSquareTile registers a newly visited tile with the square tracker.
//
// Starting at one above the current record, every placement of an s×s window containing the
// tile is checked (offsets in raster order). Each size that fits becomes the new record and the
// search moves on to the next size; it stops at the first size with no placement.
// This is a local search: each check may cost O(s⁴).
func (s *EvolutionState) AddSquareTile(t time.Time, tile spatial.TileXY) []SquareRecord {
	if _, seen := s.Visited[tile]; seen {
		return nil
	}
	s.Visited[tile] = struct{}{}

	var records []SquareRecord
	for size := s.MaxSquareSize + 1; ; size++ {
		anchor, ok := s.findSquare(tile, size)
		if !ok {
			break
		}
		s.MaxSquareSize = size
		s.SquareAnchor = anchor
		record := SquareRecord{Time: t, Size: size, X: anchor.X, Y: anchor.Y}
		s.SquareHistory = append(s.SquareHistory, record)
		records = append(records, record)
	}
	return records
}

// findSquare looks for a fully visited size×size window containing tile. Anchors are tried
// in raster order, so the smallest fitting anchor wins.
func (s *EvolutionState) findSquare(tile spatial.TileXY, size int) (spatial.TileXY, bool) {
	for ay := tile.Y - size + 1; ay <= tile.Y; ay++ {
		for ax := tile.X - size + 1; ax <= tile.X; ax++ {
			anchor := spatial.TileXY{X: ax, Y: ay}
			if s.squareVisited(anchor, size) {
				return anchor, true
			}
		}
	}
	return spatial.TileXY{}, false
}

func (s *EvolutionState) squareVisited(anchor spatial.TileXY, size int) bool {
	for yy := 0; yy < size; yy++ {
		for xx := 0; xx < size; xx++ {
			if _, ok := s.Visited[spatial.TileXY{X: anchor.X + xx, Y: anchor.Y + yy}]; !ok {
				return false
			}
		}
	}
	return true
}
