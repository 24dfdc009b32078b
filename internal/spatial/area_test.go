package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTileAreaKm2_WholeWorld(t *testing.T) {
	// Zoom 0 covers the sphere between ±85.05°.
	sphere := 4 * math.Pi * EarthRadiusKm * EarthRadiusKm
	area := TileAreaKm2(0, TileXY{})
	assert.Greater(t, area, 0.99*sphere)
	assert.Less(t, area, sphere)
}

func TestTileAreaKm2_ShrinksTowardsPoles(t *testing.T) {
	n := GridSize(10)
	equator := TileAreaKm2(10, TileXY{X: 0, Y: n / 2})
	polar := TileAreaKm2(10, TileXY{X: 0, Y: 0})
	assert.Greater(t, equator, polar)
}

func TestExploredAreaKm2_Sums(t *testing.T) {
	tiles := []TileXY{{X: 1, Y: 1}, {X: 2, Y: 1}}
	want := TileAreaKm2(5, tiles[0]) + TileAreaKm2(5, tiles[1])
	assert.InDelta(t, want, ExploredAreaKm2(5, tiles), 1e-9)
	assert.Zero(t, ExploredAreaKm2(5, nil))
}

func TestTileEdgeMeters_Equator(t *testing.T) {
	// At zoom 1 the equatorial edge spans 180° of longitude.
	edge := TileEdgeMeters(1, TileXY{X: 0, Y: 1})
	assert.InDelta(t, math.Pi*EarthRadiusMeters, edge, 1)
}
