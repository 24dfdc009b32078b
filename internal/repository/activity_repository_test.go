package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/records-explorer-go/internal/database"
	"github.com/jengzang/records-explorer-go/internal/models"
)

func newTestRepository(t *testing.T) *ActivityRepository {
	t.Helper()
	conn, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "records.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewActivityRepository(conn)
}

func TestActivityRepository_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	start := time.Date(2024, 6, 1, 7, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	id, err := repo.CreateActivity(ctx, &models.Activity{Name: "Morning ride", Kind: "ride", ConsideredForAchievements: true}, []models.ActivityPoint{
		{Latitude: 52.5, Longitude: 13.4, SegmentID: 0},
		{Time: start, Latitude: 52.51, Longitude: 13.41, SegmentID: 0},
		{Time: start.Add(time.Minute), Latitude: 52.52, Longitude: 13.42, SegmentID: 1},
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	activity, err := repo.GetActivity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Morning ride", activity.Name)
	assert.Equal(t, "ride", activity.Kind)
	assert.True(t, activity.ConsideredForAchievements)
	assert.Equal(t, 3, activity.PointCount)
	assert.True(t, activity.StartTime.Equal(start))

	points, err := repo.GetTimeSeries(ctx, id)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.True(t, points[0].Time.IsZero())
	assert.True(t, points[1].Time.Equal(start))
	assert.False(t, models.IsNaive(points[1].Time))
	assert.Equal(t, 1, points[2].SegmentID)
	assert.InDelta(t, 13.42, points[2].Longitude, 1e-12)

	ids, err := repo.ActivityIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)
}

func TestActivityRepository_NaiveRowsKeepNaiveLocation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	id, err := repo.CreateActivity(ctx, &models.Activity{Name: "import", ConsideredForAchievements: true}, nil)
	require.NoError(t, err)
	_, err = repo.db.Exec(`INSERT INTO activity_points (activity_id, seq, time, latitude, longitude, segment_id)
		VALUES (?, 0, '2019-03-04 10:11:12', 1, 2, 0)`, id)
	require.NoError(t, err)

	points, err := repo.GetTimeSeries(ctx, id)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, models.IsNaive(points[0].Time))
	assert.Equal(t, 10, points[0].Time.Hour())
}

func TestActivityRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	id, err := repo.CreateActivity(ctx, &models.Activity{Name: "walk"}, []models.ActivityPoint{{Latitude: 1, Longitude: 1}})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteActivity(ctx, id))

	_, err = repo.GetActivity(ctx, id)
	assert.True(t, errors.Is(err, models.ErrActivityNotFound))
	points, err := repo.GetTimeSeries(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, points)

	err = repo.DeleteActivity(ctx, id)
	assert.True(t, errors.Is(err, models.ErrActivityNotFound))
}

func TestActivityRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	for i, kind := range []string{"run", "ride", "run"} {
		_, err := repo.CreateActivity(ctx, &models.Activity{Name: kind, Kind: kind, ConsideredForAchievements: i != 1}, nil)
		require.NoError(t, err)
	}

	all, total, err := repo.ListActivities(ctx, models.ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
	assert.False(t, all[1].ConsideredForAchievements)

	runs, total, err := repo.ListActivities(ctx, models.ActivityFilter{Kind: "run", PageSize: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, runs, 1)
	assert.Equal(t, all[2].ID, runs[0].ID)
}
