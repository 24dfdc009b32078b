package models

import (
	"errors"
	"time"
)

// ErrActivityNotFound is returned when an activity id is unknown to the repository.
var ErrActivityNotFound = errors.New("activity not found")

// NaiveLocation marks timestamps that were stored without zone information.
// The explorer refuses to order them against zone-aware timestamps.
var NaiveLocation = time.FixedZone("naive", 0)

// IsNaive reports whether t carries no zone information. Zero times are "missing", not naive.
func IsNaive(t time.Time) bool {
	return !t.IsZero() && t.Location() == NaiveLocation
}

// Activity represents one recorded activity as delivered by the ingestion side
type Activity struct {
	ID                        int64     `json:"id" db:"id"`
	Name                      string    `json:"name" db:"name"`
	Kind                      string    `json:"kind,omitempty" db:"kind"`
	StartTime                 time.Time `json:"start_time,omitempty" db:"start_time"`
	ConsideredForAchievements bool      `json:"considered_for_achievements" db:"considered_for_achievements"`
	PointCount                int       `json:"point_count" db:"point_count"`
	CreatedAt                 time.Time `json:"created_at" db:"created_at"`
}

// ActivityPoint is one row of an activity's time series.
// A zero Time means the row has no timestamp.
type ActivityPoint struct {
	Time      time.Time `json:"time" db:"time"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	SegmentID int       `json:"segment_id" db:"segment_id"`
}

// PointInput is the wire form of an ActivityPoint; time may be null
type PointInput struct {
	Time      *time.Time `json:"time"`
	Latitude  float64    `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64    `json:"longitude" binding:"min=-180,max=180"`
	SegmentID int        `json:"segment_id"`
}

// CreateActivityRequest is the body of POST /api/v1/activities
type CreateActivityRequest struct {
	Name                      string       `json:"name" binding:"required"`
	Kind                      string       `json:"kind"`
	ConsideredForAchievements *bool        `json:"considered_for_achievements"`
	Points                    []PointInput `json:"points" binding:"required,min=1,dive"`
}

// ToPoints converts the wire rows into time series rows
func (r *CreateActivityRequest) ToPoints() []ActivityPoint {
	points := make([]ActivityPoint, len(r.Points))
	for i, p := range r.Points {
		points[i] = ActivityPoint{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			SegmentID: p.SegmentID,
		}
		if p.Time != nil {
			points[i].Time = *p.Time
		}
	}
	return points
}

// Considered defaults to true when the flag is omitted
func (r *CreateActivityRequest) Considered() bool {
	return r.ConsideredForAchievements == nil || *r.ConsideredForAchievements
}

// ActivityFilter represents filter parameters for listing activities
type ActivityFilter struct {
	Kind     string `form:"kind"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// ActivitiesResponse represents a paginated list of activities
type ActivitiesResponse struct {
	Data       []Activity `json:"data"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
}
