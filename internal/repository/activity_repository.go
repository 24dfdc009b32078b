package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/records-explorer-go/internal/database"
	"github.com/jengzang/records-explorer-go/internal/models"
)

// naiveLayouts are accepted for rows written without a zone offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

const naiveFormat = "2006-01-02T15:04:05.999999999"

// ActivityRepository handles database operations for activities and their time series
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// ActivityIDs returns the ids of every stored activity, ascending
func (r *ActivityRepository) ActivityIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM activities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan activity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetActivity retrieves a single activity by ID
func (r *ActivityRepository) GetActivity(ctx context.Context, id int64) (*models.Activity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, kind, start_time, considered_for_achievements, point_count, created_at
		FROM activities WHERE id = ?`, id)

	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("activity %d: %w", id, models.ErrActivityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

// GetTimeSeries returns the point rows of an activity in recording order
func (r *ActivityRepository) GetTimeSeries(ctx context.Context, id int64) ([]models.ActivityPoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT time, latitude, longitude, segment_id
		FROM activity_points WHERE activity_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query time series: %w", err)
	}
	defer rows.Close()

	var points []models.ActivityPoint
	for rows.Next() {
		var (
			p  models.ActivityPoint
			ts sql.NullString
		)
		if err := rows.Scan(&ts, &p.Latitude, &p.Longitude, &p.SegmentID); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		if p.Time, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("activity %d: %w", id, err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// CreateActivity stores an activity together with its points and returns its ID
func (r *ActivityRepository) CreateActivity(ctx context.Context, a *models.Activity, points []models.ActivityPoint) (int64, error) {
	a.PointCount = len(points)
	a.CreatedAt = time.Now().UTC()
	a.StartTime = time.Time{}
	for _, p := range points {
		if !p.Time.IsZero() {
			a.StartTime = p.Time
			break
		}
	}

	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO activities (name, kind, start_time, considered_for_achievements, point_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.Name, a.Kind, formatTime(a.StartTime), a.ConsideredForAchievements, a.PointCount, a.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert activity: %w", err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get activity id: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO activity_points (activity_id, seq, time, latitude, longitude, segment_id)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare point insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range points {
			if _, err := stmt.ExecContext(ctx, a.ID, i, formatTime(p.Time), p.Latitude, p.Longitude, p.SegmentID); err != nil {
				return fmt.Errorf("failed to insert point %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

// DeleteActivity removes an activity and its points
func (r *ActivityRepository) DeleteActivity(ctx context.Context, id int64) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM activity_points WHERE activity_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete points: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete activity: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete activity: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("activity %d: %w", id, models.ErrActivityNotFound)
		}
		return nil
	})
}

// ListActivities retrieves activities with filtering and pagination
func (r *ActivityRepository) ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	if filter.PageSize > 500 {
		filter.PageSize = 500
	}

	query := `SELECT id, name, kind, start_time, considered_for_achievements, point_count, created_at FROM activities` +
		where + " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*models.Activity, error) {
	var (
		a         models.Activity
		startTime sql.NullString
		createdAt string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Kind, &startTime, &a.ConsideredForAchievements, &a.PointCount, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if a.StartTime, err = parseTime(startTime); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	return &a, nil
}

// formatTime stores zone-aware times as RFC 3339 and naive ones without an offset.
func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	if models.IsNaive(t) {
		return sql.NullString{String: t.Format(naiveFormat), Valid: true}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// parseTime is the inverse of formatTime. NULL yields the zero time; values without an
// offset come back in models.NaiveLocation.
func parseTime(v sql.NullString) (time.Time, error) {
	if !v.Valid || v.String == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v.String); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v.String, models.NaiveLocation); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", v.String)
}
