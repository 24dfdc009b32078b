package models

import "time"

// TileFilter restricts tile listings to a tile-coordinate bounding box
type TileFilter struct {
	MinX  *int `form:"min_x"`
	MinY  *int `form:"min_y"`
	MaxX  *int `form:"max_x"`
	MaxY  *int `form:"max_y"`
	Limit int  `form:"limit"`
}

// Contains reports whether tile (x, y) passes the filter
func (f TileFilter) Contains(x, y int) bool {
	if f.MinX != nil && x < *f.MinX {
		return false
	}
	if f.MinY != nil && y < *f.MinY {
		return false
	}
	if f.MaxX != nil && x > *f.MaxX {
		return false
	}
	if f.MaxY != nil && y > *f.MaxY {
		return false
	}
	return true
}

// ExploredTile is one visited tile of the ledger
type ExploredTile struct {
	X               int        `json:"x"`
	Y               int        `json:"y"`
	VisitCount      int        `json:"visit_count"`
	FirstActivityID int64      `json:"first_activity_id"`
	FirstTime       *time.Time `json:"first_time,omitempty"`
	LastActivityID  int64      `json:"last_activity_id"`
	LastTime        *time.Time `json:"last_time,omitempty"`
}

// TileDetail is an explored tile with every activity that touched it
type TileDetail struct {
	ExploredTile
	Zoom        int     `json:"zoom"`
	ActivityIDs []int64 `json:"activity_ids"`
	South       float64 `json:"south"`
	West        float64 `json:"west"`
	North       float64 `json:"north"`
	East        float64 `json:"east"`
}

// TilesResponse is the ledger of one zoom level
type TilesResponse struct {
	Zoom      int            `json:"zoom"`
	Total     int            `json:"total"`
	Truncated bool           `json:"truncated"`
	Tiles     []ExploredTile `json:"tiles"`
}

// ZoomsResponse lists the zoom levels the explorer knows about
type ZoomsResponse struct {
	MaxZoom          int         `json:"max_zoom"`
	AchievementZooms []int       `json:"achievement_zooms"`
	TileCounts       map[int]int `json:"tile_counts"`
	Activities       int         `json:"activities"`
}

// TileXY is a bare tile coordinate
type TileXY struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ClusterView is one cluster of complete tiles
type ClusterView struct {
	Representative TileXY   `json:"representative"`
	Size           int      `json:"size"`
	Members        []TileXY `json:"members,omitempty"`
}

// SquareView is the current square record
type SquareView struct {
	Zoom  int      `json:"zoom"`
	Size  int      `json:"size"`
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Tiles []TileXY `json:"tiles,omitempty"`
}

// ZoomSummary summarises one zoom level. Evolution fields are only set for achievement zooms.
type ZoomSummary struct {
	Zoom                int     `json:"zoom"`
	ExploredTiles       int     `json:"explored_tiles"`
	ExploredAreaKm2     float64 `json:"explored_area_km2"`
	Achievement         bool    `json:"achievement"`
	MaxClusterSize      int     `json:"max_cluster_size,omitempty"`
	Clusters            int     `json:"clusters,omitempty"`
	MaxSquareSize       int     `json:"max_square_size,omitempty"`
	SquareX             int     `json:"square_x,omitempty"`
	SquareY             int     `json:"square_y,omitempty"`
	StreamCursor        int     `json:"stream_cursor,omitempty"`
	ProcessedActivities int     `json:"processed_activities"`
}
