package spatial

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestProject_KnownPoints(t *testing.T) {
	x, y := Project(0, 0, 1)
	assert.InDelta(t, 1.0, x, 1e-12)
	assert.InDelta(t, 1.0, y, 1e-12)

	x, y = Project(85.0511287798066, -180, 3)
	assert.InDelta(t, 0.0, x, 1e-12)
	assert.InDelta(t, 0.0, y, 1e-9)

	assert.Equal(t, TileXY{X: 1, Y: 1}, TileOf(0, 0, 1))
	assert.Equal(t, TileXY{X: 0, Y: 0}, TileOf(0, 0, 0))
}

func TestTileOf_ClampsPoles(t *testing.T) {
	assert.Equal(t, TileXY{X: 2, Y: 0}, TileOf(90, 0, 2))
	assert.Equal(t, TileXY{X: 2, Y: 3}, TileOf(-90, 0, 2))
	assert.Equal(t, TileXY{X: 3, Y: 2}, TileOf(-1, 180, 2))
}

func TestTileBounds(t *testing.T) {
	south, west, north, east := TileBounds(1, TileXY{X: 0, Y: 0})
	assert.InDelta(t, 0.0, south, 1e-9)
	assert.InDelta(t, -180.0, west, 1e-9)
	assert.InDelta(t, 85.0511287798066, north, 1e-9)
	assert.InDelta(t, 0.0, east, 1e-9)
}

func TestTileRelations(t *testing.T) {
	tile := Tile{Zoom: 5, X: 13, Y: 22}
	assert.Equal(t, Tile{Zoom: 4, X: 6, Y: 11}, tile.Parent())
	for _, child := range tile.Children() {
		assert.Equal(t, tile, child.Parent())
	}
	assert.Equal(t, Tile{}, Tile{}.Parent())
	assert.Equal(t, TileXY{X: 13, Y: 22}, tile.XY())
}

func TestValidateZoom(t *testing.T) {
	assert.NoError(t, ValidateZoom(0))
	assert.NoError(t, ValidateZoom(MaxZoom))
	assert.Error(t, ValidateZoom(-1))
	assert.Error(t, ValidateZoom(MaxZoom+1))
}

func TestProperty_ProjectorRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	// The defining (north-west) corner of a tile projects back onto its own coordinates.
	properties.Property("tile corner round-trips through the projector", prop.ForAll(
		func(zoom int, fx, fy float64) bool {
			n := GridSize(zoom)
			x, y := int(fx*float64(n)), int(fy*float64(n))

			lat, lon := Unproject(float64(x), float64(y), zoom)
			px, py := Project(lat, lon, zoom)
			return math.Abs(px-float64(x)) < 1e-6 && math.Abs(py-float64(y)) < 1e-6
		},
		gen.IntRange(0, MaxZoom),
		gen.Float64Range(0, 0.999999),
		gen.Float64Range(0, 0.999999),
	))

	properties.Property("tile center falls inside the tile", prop.ForAll(
		func(zoom int, fx, fy float64) bool {
			n := GridSize(zoom)
			tile := TileXY{X: int(fx * float64(n)), Y: int(fy * float64(n))}

			lat, lon := Unproject(float64(tile.X)+0.5, float64(tile.Y)+0.5, zoom)
			return TileOf(lat, lon, zoom) == tile
		},
		gen.IntRange(0, MaxZoom),
		gen.Float64Range(0, 0.999999),
		gen.Float64Range(0, 0.999999),
	))

	properties.TestingRun(t)
}
