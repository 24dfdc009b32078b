package spatial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupFirst_KeepsFirstOccurrence(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	tiles := []TimedTile{
		{Time: t0, Tile: TileXY{X: 1, Y: 1}},
		{Time: t0.Add(1 * time.Second), Tile: TileXY{X: 1, Y: 1}},
		{Time: t0.Add(2 * time.Second), Tile: TileXY{X: 2, Y: 1}},
		{Time: t0.Add(3 * time.Second), Tile: TileXY{X: 1, Y: 1}},
	}

	got := DedupFirst(tiles)
	require.Len(t, got, 2)
	assert.Equal(t, TileXY{X: 1, Y: 1}, got[0].Tile)
	assert.True(t, got[0].Time.Equal(t0))
	assert.Equal(t, TileXY{X: 2, Y: 1}, got[1].Tile)
}

func TestAggregateZooms_HalvesCoordinates(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	finest := []TimedTile{
		{Time: t0, Tile: TileXY{X: 8, Y: 8}},
		{Time: t0.Add(time.Second), Tile: TileXY{X: 9, Y: 8}},
		{Time: t0.Add(2 * time.Second), Tile: TileXY{X: 10, Y: 8}},
	}

	perZoom := AggregateZooms(finest, 4)
	require.Len(t, perZoom, 5)

	assert.Len(t, perZoom[4], 3)
	require.Len(t, perZoom[3], 2)
	assert.Equal(t, TileXY{X: 4, Y: 4}, perZoom[3][0].Tile)
	assert.True(t, perZoom[3][0].Time.Equal(t0))
	assert.Equal(t, TileXY{X: 5, Y: 4}, perZoom[3][1].Tile)
	assert.True(t, perZoom[3][1].Time.Equal(t0.Add(2*time.Second)))

	require.Len(t, perZoom[2], 1)
	assert.Equal(t, TileXY{X: 2, Y: 2}, perZoom[2][0].Tile)
	require.Len(t, perZoom[0], 1)
	assert.Equal(t, TileXY{}, perZoom[0][0].Tile)
}

func TestAggregateZooms_Empty(t *testing.T) {
	perZoom := AggregateZooms(nil, MaxZoom)
	require.Len(t, perZoom, MaxZoom+1)
	for _, tiles := range perZoom {
		assert.Empty(t, tiles)
	}
}
