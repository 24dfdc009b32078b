package explorer

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/records-explorer-go/internal/spatial"
)

func TestAddSquareTile_GrowsRecord(t *testing.T) {
	state := NewEvolutionState(14)

	records := state.AddSquareTile(at(0), xy(5, 5))
	require.Len(t, records, 1)
	assert.Equal(t, SquareRecord{Time: at(0), Size: 1, X: 5, Y: 5}, records[0])

	assert.Empty(t, state.AddSquareTile(at(1), xy(6, 5)))
	assert.Empty(t, state.AddSquareTile(at(2), xy(5, 6)))

	records = state.AddSquareTile(at(3), xy(6, 6))
	require.Len(t, records, 1)
	assert.Equal(t, SquareRecord{Time: at(3), Size: 2, X: 5, Y: 5}, records[0])
	assert.Equal(t, 2, state.MaxSquareSize)
	assert.Equal(t, xy(5, 5), state.SquareAnchor)
	assert.ElementsMatch(t, []spatial.TileXY{xy(5, 5), xy(6, 5), xy(5, 6), xy(6, 6)}, state.SquareTiles())
}

func TestAddSquareTile_CenterLastJumpsTwoSizes(t *testing.T) {
	state := NewEvolutionState(14)
	minute := 0
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if x == 1 && y == 1 {
				continue
			}
			state.AddSquareTile(at(minute), xy(10+x, 20+y))
			minute++
		}
	}
	assert.Equal(t, 1, state.MaxSquareSize)

	records := state.AddSquareTile(at(30), xy(11, 21))
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Size)
	assert.Equal(t, SquareRecord{Time: at(30), Size: 3, X: 10, Y: 20}, records[1])
}

func TestAddSquareTile_IgnoresRepeats(t *testing.T) {
	state := NewEvolutionState(14)
	state.AddSquareTile(at(0), xy(1, 1))
	assert.Nil(t, state.AddSquareTile(at(5), xy(1, 1)))
	assert.Len(t, state.SquareHistory, 1)
	assert.Len(t, state.Visited, 1)
}

func TestProperty_SquareOrderIndependence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("any visiting order of a 3x3 block ends at size 3 on its minimum corner", prop.ForAll(
		func(keys []int64) bool {
			block := make([]spatial.TileXY, 0, 9)
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					block = append(block, xy(40+x, 70+y))
				}
			}
			order := make([]int, 9)
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(i, j int) bool { return keys[order[i]] < keys[order[j]] })

			state := NewEvolutionState(15)
			for i, idx := range order {
				state.AddSquareTile(at(i), block[idx])
			}

			for i := 1; i < len(state.SquareHistory); i++ {
				prev, cur := state.SquareHistory[i-1], state.SquareHistory[i]
				if cur.Size <= prev.Size || cur.Time.Before(prev.Time) {
					return false
				}
			}
			return state.MaxSquareSize == 3 && state.SquareAnchor == xy(40, 70)
		},
		gen.SliceOfN(9, gen.Int64()),
	))

	properties.TestingRun(t)
}

func TestConsume_FeedsBothTrackers(t *testing.T) {
	state := NewEvolutionState(14)
	center := xy(100, 100)
	var stream []spatial.TimedTile
	for i, n := range center.Neighbors() {
		stream = append(stream, spatial.TimedTile{Time: at(i), Tile: n})
	}
	stream = append(stream, spatial.TimedTile{Time: at(9), Tile: center})

	assert.True(t, state.Consume(stream))
	assert.Equal(t, 5, state.Cursor)
	assert.Equal(t, stream[4], state.LastConsumed)
	assert.Equal(t, []ClusterRecord{{Time: at(9), Size: 1}}, state.ClusterHistory)
	assert.Equal(t, 1, state.MaxSquareSize)

	// Feeding the same stream again changes nothing.
	assert.False(t, state.Consume(stream))
	assert.Len(t, state.ClusterHistory, 1)

	// A longer stream is consumed from the cursor on.
	stream = append(stream, spatial.TimedTile{Time: at(10), Tile: xy(102, 100)})
	require.True(t, state.Resumable(stream, stream[5], true))
	assert.True(t, state.Consume(stream))
	assert.Equal(t, 6, state.Cursor)
	assert.Len(t, state.Visited, 6)
}

func TestAddSquareTile_PicksRasterFirstAnchor(t *testing.T) {
	state := NewEvolutionState(14)
	for i, tile := range []spatial.TileXY{xy(0, 0), xy(1, 0), xy(2, 0), xy(0, 1), xy(2, 1)} {
		state.AddSquareTile(at(i), tile)
	}
	assert.Equal(t, 1, state.MaxSquareSize)

	// Both (0,0) and (1,0) anchor a 2x2 window once (1,1) is visited.
	records := state.AddSquareTile(at(9), xy(1, 1))
	require.Len(t, records, 1)
	assert.Equal(t, SquareRecord{Time: at(9), Size: 2, X: 0, Y: 0}, records[0])
	assert.Equal(t, xy(0, 0), state.SquareAnchor)
}

func TestResumable(t *testing.T) {
	stream := []spatial.TimedTile{
		{Time: at(0), Tile: xy(1, 1)},
		{Time: at(1), Tile: xy(2, 1)},
		{Time: at(2), Tile: xy(3, 1)},
	}
	state := NewEvolutionState(14)
	assert.True(t, state.Resumable(stream, stream[0], true), "an empty state resumes from anywhere")

	require.True(t, state.Consume(stream[:2]))
	require.Equal(t, 2, state.Cursor)

	tests := []struct {
		name        string
		stream      []spatial.TimedTile
		changedFrom spatial.TimedTile
		changed     bool
		want        bool
	}{
		{"unchanged", stream[:2], spatial.TimedTile{}, false, true},
		{"appended after the cursor", stream, stream[2], true, true},
		{"stream shorter than the cursor", stream[:1], spatial.TimedTile{}, false, false},
		{"older entry inserted before the cursor",
			[]spatial.TimedTile{{Time: at(-5), Tile: xy(9, 9)}, stream[0], stream[1]},
			spatial.TimedTile{Time: at(-5), Tile: xy(9, 9)}, true, false},
		{"consumed tile moved earlier",
			[]spatial.TimedTile{{Time: at(-1), Tile: xy(2, 1)}, stream[0]},
			spatial.TimedTile{Time: at(-1), Tile: xy(2, 1)}, true, false},
		{"same time, smaller tile",
			[]spatial.TimedTile{stream[0], stream[1], {Time: at(1), Tile: xy(9, 9)}},
			spatial.TimedTile{Time: at(1), Tile: xy(0, 0)}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, state.Resumable(tt.stream, tt.changedFrom, tt.changed))
		})
	}
}
