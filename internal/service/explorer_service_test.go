package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/records-explorer-go/internal/database"
	"github.com/jengzang/records-explorer-go/internal/explorer"
	"github.com/jengzang/records-explorer-go/internal/models"
	"github.com/jengzang/records-explorer-go/internal/repository"
	"github.com/jengzang/records-explorer-go/internal/spatial"
)

type testEnv struct {
	activities *ActivityService
	explorer   *ExplorerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := database.Open(database.Config{Path: filepath.Join(dir, "records.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	repo := repository.NewActivityRepository(conn)
	store, err := explorer.NewStore(filepath.Join(dir, "explorer"), []int{14}, nil)
	require.NoError(t, err)
	store.Load()

	return &testEnv{
		activities: NewActivityService(repo),
		explorer:   NewExplorerService(store, repo, nil),
	}
}

// blockRequest visits every zoom-14 tile of a size×size block, one segment per tile.
func blockRequest(x0, y0, size int, start time.Time) *models.CreateActivityRequest {
	req := &models.CreateActivityRequest{Name: "block"}
	i := 0
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			lat, lon := spatial.Unproject(float64(x)+0.5, float64(y)+0.5, 14)
			ts := start.Add(time.Duration(i) * time.Minute)
			req.Points = append(req.Points, models.PointInput{Time: &ts, Latitude: lat, Longitude: lon, SegmentID: i})
			i++
		}
	}
	return req
}

func TestExplorerService_ComputeAndQuery(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)

	_, err := env.activities.CreateActivity(ctx, blockRequest(100, 100, 3, start))
	require.NoError(t, err)

	report, err := env.explorer.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 9, report.NewTiles[14])

	summary, err := env.explorer.Summary(14)
	require.NoError(t, err)
	assert.True(t, summary.Achievement)
	assert.Equal(t, 9, summary.ExploredTiles)
	assert.Equal(t, 1, summary.MaxClusterSize)
	assert.Equal(t, 3, summary.MaxSquareSize)
	assert.Equal(t, 100, summary.SquareX)
	assert.Greater(t, summary.ExploredAreaKm2, 0.0)

	coarse, err := env.explorer.Summary(10)
	require.NoError(t, err)
	assert.False(t, coarse.Achievement)
	assert.Equal(t, 1, coarse.ExploredTiles)

	tiles, err := env.explorer.Tiles(14, models.TileFilter{Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 9, tiles.Total)
	assert.True(t, tiles.Truncated)
	require.Len(t, tiles.Tiles, 4)
	assert.Equal(t, 100, tiles.Tiles[0].X)

	detail, err := env.explorer.Tile(14, 101, 101)
	require.NoError(t, err)
	assert.Len(t, detail.ActivityIDs, 1)
	assert.Less(t, detail.South, detail.North)

	_, err = env.explorer.Tile(14, 0, 0)
	assert.True(t, errors.Is(err, ErrTileNotExplored))

	clusters, err := env.explorer.Clusters(14, true, 0)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []models.TileXY{{X: 101, Y: 101}}, clusters[0].Members)

	square, err := env.explorer.Square(14, true)
	require.NoError(t, err)
	assert.Len(t, square.Tiles, 9)

	history, err := env.explorer.SquareHistory(14)
	require.NoError(t, err)
	assert.Equal(t, 3, history[len(history)-1].Size)

	_, err = env.explorer.ClusterHistory(13)
	assert.True(t, errors.Is(err, explorer.ErrUnknownZoom))

	fc, err := env.explorer.GeoJSON(14, models.TileFilter{})
	require.NoError(t, err)
	require.Len(t, fc.Features, 9)
	flagged := 0
	for _, f := range fc.Features {
		assert.Equal(t, true, f.Properties["square"])
		if f.Properties["cluster"] == true {
			flagged++
		}
	}
	assert.Equal(t, 1, flagged)

	zooms := env.explorer.Zooms()
	assert.Equal(t, []int{14}, zooms.AchievementZooms)
	assert.Equal(t, 9, zooms.TileCounts[14])
}

func TestExplorerService_DeletionTriggersReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)

	first, err := env.activities.CreateActivity(ctx, blockRequest(100, 100, 2, start))
	require.NoError(t, err)
	_, err = env.activities.CreateActivity(ctx, blockRequest(300, 300, 1, start.Add(time.Hour)))
	require.NoError(t, err)
	_, err = env.explorer.Compute(ctx)
	require.NoError(t, err)

	require.NoError(t, env.activities.DeleteActivity(ctx, first.ID))
	report, err := env.explorer.Compute(ctx)
	require.NoError(t, err)
	assert.True(t, report.Reset)

	summary, err := env.explorer.Summary(14)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExploredTiles)
	assert.Equal(t, 1, summary.MaxSquareSize)
	assert.Equal(t, 300, summary.SquareX)
}

func TestExplorerService_Reset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.activities.CreateActivity(ctx, blockRequest(5, 5, 2, time.Now().UTC()))
	require.NoError(t, err)
	_, err = env.explorer.Compute(ctx)
	require.NoError(t, err)

	require.NoError(t, env.explorer.Reset())
	summary, err := env.explorer.Summary(14)
	require.NoError(t, err)
	assert.Zero(t, summary.ExploredTiles)
	assert.Zero(t, summary.ProcessedActivities)

	// The next run folds everything in again.
	report, err := env.explorer.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
}

func TestExplorerService_InvalidZoom(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.explorer.Tiles(20, models.TileFilter{})
	assert.True(t, errors.Is(err, spatial.ErrInvalidZoom))
	_, err = env.explorer.Summary(-1)
	assert.True(t, errors.Is(err, spatial.ErrInvalidZoom))
}
