package spatial

import (
	"errors"
	"fmt"
	"math"
)

// MaxZoom is the finest zoom level tracked by the explorer.
const MaxZoom = 19

// ErrInvalidZoom is returned for zoom levels outside [0, MaxZoom].
var ErrInvalidZoom = errors.New("invalid zoom")

// TileXY identifies a tile inside one zoom level of the slippy-map grid.
// X grows eastward, Y grows southward, tile (0, 0) is the north-west corner.
type TileXY struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Tile is a TileXY qualified with its zoom level
type Tile struct {
	Zoom int `json:"zoom"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// XY drops the zoom level
func (t Tile) XY() TileXY {
	return TileXY{X: t.X, Y: t.Y}
}

// Parent returns the covering tile one zoom level up.
func (t Tile) Parent() Tile {
	if t.Zoom == 0 {
		return t
	}
	return Tile{Zoom: t.Zoom - 1, X: t.X / 2, Y: t.Y / 2}
}

// Children returns the four tiles covering t one zoom level down.
func (t Tile) Children() [4]Tile {
	x, y, z := t.X*2, t.Y*2, t.Zoom+1
	return [4]Tile{
		{Zoom: z, X: x, Y: y},
		{Zoom: z, X: x + 1, Y: y},
		{Zoom: z, X: x, Y: y + 1},
		{Zoom: z, X: x + 1, Y: y + 1},
	}
}

// Neighbors returns the 4 grid-adjacent tiles (west, east, north, south).
// Coordinates outside the grid are returned as-is; callers only use them for lookups.
func (t TileXY) Neighbors() [4]TileXY {
	return [4]TileXY{
		{X: t.X - 1, Y: t.Y},
		{X: t.X + 1, Y: t.Y},
		{X: t.X, Y: t.Y - 1},
		{X: t.X, Y: t.Y + 1},
	}
}

// GridSize returns the number of tiles along one axis at zoom.
func GridSize(zoom int) int {
	return 1 << zoom
}

// ValidateZoom checks that zoom is inside [0, MaxZoom].
func ValidateZoom(zoom int) error {
	if zoom < 0 || zoom > MaxZoom {
		return fmt.Errorf("zoom %d out of range [0, %d]: %w", zoom, MaxZoom, ErrInvalidZoom)
	}
	return nil
}

// InBounds reports whether t is a valid tile at zoom.
func InBounds(zoom int, t TileXY) bool {
	n := GridSize(zoom)
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// Project converts WGS84 degrees to fractional tile coordinates at zoom.
// Uses the slippy-map formula so the result matches external tile renderers.
func Project(lat, lon float64, zoom int) (x, y float64) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180.0
	x = (lon + 180.0) / 360.0 * n
	y = (1.0 - math.Asinh(math.Tan(latRad))/math.Pi) / 2.0 * n
	return x, y
}

// Unproject is the inverse of Project.
func Unproject(x, y float64, zoom int) (lat, lon float64) {
	n := math.Exp2(float64(zoom))
	lon = x/n*360.0 - 180.0
	lat = math.Atan(math.Sinh(math.Pi*(1.0-2.0*y/n))) * 180.0 / math.Pi
	return lat, lon
}

// Floor converts fractional tile coordinates to the containing tile, clamped to the grid.
func Floor(x, y float64, zoom int) TileXY {
	n := GridSize(zoom)
	return TileXY{X: floorClamp(x, n), Y: floorClamp(y, n)}
}

// floorClamp floors v into [0, n). Poles project to ±Inf, which int() would mangle.
func floorClamp(v float64, n int) int {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v >= float64(n):
		return n - 1
	}
	return clamp(int(math.Floor(v)), 0, n-1)
}

// TileOf returns the tile containing the given point at zoom.
func TileOf(lat, lon float64, zoom int) TileXY {
	x, y := Project(lat, lon, zoom)
	return Floor(x, y, zoom)
}

// TileBounds returns the WGS84 bounds of a tile (south, west, north, east).
func TileBounds(zoom int, t TileXY) (south, west, north, east float64) {
	north, west = Unproject(float64(t.X), float64(t.Y), zoom)
	south, east = Unproject(float64(t.X+1), float64(t.Y+1), zoom)
	return south, west, north, east
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
