package spatial

import (
	"math"
	"time"
)

// TrackPoint is one sample of an activity's point stream.
// A zero Time means the sample has no timestamp.
type TrackPoint struct {
	Time      time.Time
	Latitude  float64
	Longitude float64
	SegmentID int
}

// TimedTile is a tile visit with the time the tile was entered.
// A zero Time means the visit cannot be ordered.
type TimedTile struct {
	Time time.Time
	Tile TileXY
}

// Interpolate returns the corner tile crossed when moving diagonally from (x1, y1) to (x2, y2).
//
// Only steps of exactly one tile along both axes need a corner. The line crosses one vertical
// grid line at t_x and one horizontal grid line at t_y; whichever comes first decides which
// neighbouring tile is entered before the target.
func Interpolate(x1, y1, x2, y2 float64) (TileXY, bool) {
	tx1, ty1 := int(math.Floor(x1)), int(math.Floor(y1))
	tx2, ty2 := int(math.Floor(x2)), int(math.Floor(y2))

	if abs(tx2-tx1) != 1 || abs(ty2-ty1) != 1 {
		return TileXY{}, false
	}

	// The grid lines sit at the larger of the two floors.
	boundaryX := float64(max(tx1, tx2))
	boundaryY := float64(max(ty1, ty2))
	tX := (boundaryX - x1) / (x2 - x1)
	tY := (boundaryY - y1) / (y2 - y1)

	if tX < tY {
		return TileXY{X: tx2, Y: ty1}, true
	}
	return TileXY{X: tx1, Y: ty2}, true
}

// TileizeTrajectory converts a point stream into the ordered tiles it visits at zoom.
// Diagonal one-tile gaps within a segment get their corner tile, stamped with the
// earlier sample's time. Segment boundaries are never interpolated across.
func TileizeTrajectory(points []TrackPoint, zoom int) []TimedTile {
	if len(points) == 0 {
		return nil
	}

	tiles := make([]TimedTile, 0, len(points))
	var prevX, prevY float64
	for i, p := range points {
		x, y := Project(p.Latitude, p.Longitude, zoom)
		if i > 0 && points[i-1].SegmentID == p.SegmentID {
			if corner, ok := Interpolate(prevX, prevY, x, y); ok && InBounds(zoom, corner) {
				tiles = append(tiles, TimedTile{Time: points[i-1].Time, Tile: corner})
			}
		}
		tiles = append(tiles, TimedTile{Time: p.Time, Tile: Floor(x, y, zoom)})
		prevX, prevY = x, y
	}
	return tiles
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
