package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/jengzang/records-explorer-go/internal/explorer"
	"github.com/jengzang/records-explorer-go/internal/models"
	"github.com/jengzang/records-explorer-go/internal/spatial"
)

// ErrTileNotExplored is returned when a tile has never been visited
var ErrTileNotExplored = errors.New("tile not explored")

const (
	defaultTileLimit = 10000
	maxTileLimit     = 100000
)

// ExplorerService serialises access to the explorer store. Compute and Reset take the
// write lock; every query takes the read lock.
type ExplorerService struct {
	mu     sync.RWMutex
	store  *explorer.Store
	source explorer.ActivitySource
	logger *slog.Logger
}

// NewExplorerService creates a new explorer service
func NewExplorerService(store *explorer.Store, source explorer.ActivitySource, logger *slog.Logger) *ExplorerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExplorerService{
		store:  store,
		source: source,
		logger: logger.With("component", "explorer_service"),
	}
}

// Compute folds every activity of the repository that has not been processed yet
func (s *ExplorerService) Compute(ctx context.Context) (*explorer.ComputeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.store.Compute(ctx, s.source, nil)
	if err != nil {
		return report, fmt.Errorf("failed to compute explorer state: %w", err)
	}
	s.logger.Info("compute finished",
		"processed", report.Processed, "excluded", report.Excluded, "skipped", report.Skipped,
		"reset", report.Reset, "duration_ms", report.DurationMs)
	return report, nil
}

// Reset discards the explorer state and persists the empty state
func (s *ExplorerService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Reset()
	if err := s.store.Save(); err != nil {
		return fmt.Errorf("failed to save reset state: %w", err)
	}
	return nil
}

// Zooms lists the tracked zoom levels and the tile count of every zoom
func (s *ExplorerService) Zooms() *models.ZoomsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int, spatial.MaxZoom+1)
	for zoom := 0; zoom <= spatial.MaxZoom; zoom++ {
		counts[zoom] = s.store.Ledger().TileCount(zoom)
	}
	return &models.ZoomsResponse{
		MaxZoom:          spatial.MaxZoom,
		AchievementZooms: s.store.AchievementZooms(),
		TileCounts:       counts,
		Activities:       s.store.ProcessedActivities(),
	}
}

// Tiles lists the explored tiles of one zoom level in row-major order
func (s *ExplorerService) Tiles(zoom int, filter models.TileFilter) (*models.TilesResponse, error) {
	if err := spatial.ValidateZoom(zoom); err != nil {
		return nil, err
	}
	limit := clampLimit(filter.Limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger := s.store.Ledger()
	resp := &models.TilesResponse{Zoom: zoom, Tiles: []models.ExploredTile{}}
	for _, tile := range ledger.Tiles(zoom) {
		if !filter.Contains(tile.X, tile.Y) {
			continue
		}
		resp.Total++
		if len(resp.Tiles) >= limit {
			resp.Truncated = true
			continue
		}
		visit, _ := ledger.Visit(zoom, tile)
		resp.Tiles = append(resp.Tiles, exploredTile(tile, visit))
	}
	return resp, nil
}

// Tile returns one explored tile with the activities that touched it
func (s *ExplorerService) Tile(zoom, x, y int) (*models.TileDetail, error) {
	if err := spatial.ValidateZoom(zoom); err != nil {
		return nil, err
	}
	tile := spatial.TileXY{X: x, Y: y}

	s.mu.RLock()
	defer s.mu.RUnlock()

	visit, ok := s.store.Ledger().Visit(zoom, tile)
	if !ok {
		return nil, fmt.Errorf("tile %d/%d/%d: %w", zoom, x, y, ErrTileNotExplored)
	}
	south, west, north, east := spatial.TileBounds(zoom, tile)
	return &models.TileDetail{
		ExploredTile: exploredTile(tile, visit),
		Zoom:         zoom,
		ActivityIDs:  s.store.Ledger().ActivitiesAt(zoom, tile),
		South:        south,
		West:         west,
		North:        north,
		East:         east,
	}, nil
}

// Clusters lists the clusters of an achievement zoom, largest first
func (s *ExplorerService) Clusters(zoom int, withMembers bool, limit int) ([]models.ClusterView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.store.State(zoom)
	if err != nil {
		return nil, err
	}

	views := make([]models.ClusterView, 0, len(state.Clusters))
	for rep, members := range state.Clusters {
		view := models.ClusterView{Representative: toXY(rep), Size: len(members)}
		if withMembers {
			sorted := append([]spatial.TileXY(nil), members...)
			sortRowMajor(sorted)
			view.Members = make([]models.TileXY, len(sorted))
			for i, m := range sorted {
				view.Members[i] = toXY(m)
			}
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Size != views[j].Size {
			return views[i].Size > views[j].Size
		}
		a, b := views[i].Representative, views[j].Representative
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

// Square returns the square record of an achievement zoom
func (s *ExplorerService) Square(zoom int, withTiles bool) (*models.SquareView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.store.State(zoom)
	if err != nil {
		return nil, err
	}
	view := &models.SquareView{Zoom: zoom, Size: state.MaxSquareSize, X: state.SquareAnchor.X, Y: state.SquareAnchor.Y}
	if withTiles {
		for _, tile := range state.SquareTiles() {
			view.Tiles = append(view.Tiles, toXY(tile))
		}
	}
	return view, nil
}

// ClusterHistory returns the record-breaking cluster sizes of an achievement zoom
func (s *ExplorerService) ClusterHistory(zoom int) ([]explorer.ClusterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.store.State(zoom)
	if err != nil {
		return nil, err
	}
	return append([]explorer.ClusterRecord{}, state.ClusterHistory...), nil
}

// SquareHistory returns the record-breaking square sizes of an achievement zoom
func (s *ExplorerService) SquareHistory(zoom int) ([]explorer.SquareRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.store.State(zoom)
	if err != nil {
		return nil, err
	}
	return append([]explorer.SquareRecord{}, state.SquareHistory...), nil
}

// Summary summarises one zoom level, including the achievement trackers when tracked
func (s *ExplorerService) Summary(zoom int) (*models.ZoomSummary, error) {
	if err := spatial.ValidateZoom(zoom); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tiles := s.store.Ledger().Tiles(zoom)
	summary := &models.ZoomSummary{
		Zoom:                zoom,
		ExploredTiles:       len(tiles),
		ExploredAreaKm2:     spatial.ExploredAreaKm2(zoom, tiles),
		ProcessedActivities: s.store.ProcessedActivities(),
	}
	if state, err := s.store.State(zoom); err == nil {
		summary.Achievement = true
		summary.MaxClusterSize = state.MaxClusterSize
		summary.Clusters = len(state.Clusters)
		summary.MaxSquareSize = state.MaxSquareSize
		summary.SquareX = state.SquareAnchor.X
		summary.SquareY = state.SquareAnchor.Y
		summary.StreamCursor = state.Cursor
	}
	return summary, nil
}

// GeoJSON renders the explored tiles of a zoom level as polygons. On achievement zooms the
// members of the largest cluster and the record square are flagged for renderers.
func (s *ExplorerService) GeoJSON(zoom int, filter models.TileFilter) (*geojson.FeatureCollection, error) {
	if err := spatial.ValidateZoom(zoom); err != nil {
		return nil, err
	}
	limit := clampLimit(filter.Limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	inCluster := make(map[spatial.TileXY]struct{})
	inSquare := make(map[spatial.TileXY]struct{})
	if state, err := s.store.State(zoom); err == nil {
		if _, members, ok := state.LargestCluster(); ok {
			for _, m := range members {
				inCluster[m] = struct{}{}
			}
		}
		for _, tile := range state.SquareTiles() {
			inSquare[tile] = struct{}{}
		}
	}

	ledger := s.store.Ledger()
	fc := geojson.NewFeatureCollection()
	for _, tile := range ledger.Tiles(zoom) {
		if !filter.Contains(tile.X, tile.Y) {
			continue
		}
		if len(fc.Features) >= limit {
			break
		}
		visit, _ := ledger.Visit(zoom, tile)
		mt := maptile.New(uint32(tile.X), uint32(tile.Y), maptile.Zoom(zoom))

		feature := geojson.NewFeature(mt.Bound().ToPolygon())
		feature.Properties["x"] = tile.X
		feature.Properties["y"] = tile.Y
		feature.Properties["zoom"] = zoom
		feature.Properties["visit_count"] = visit.Count
		if !visit.FirstTime.IsZero() {
			feature.Properties["first_time"] = visit.FirstTime.Format(time.RFC3339)
		}
		_, clustered := inCluster[tile]
		_, squared := inSquare[tile]
		feature.Properties["cluster"] = clustered
		feature.Properties["square"] = squared
		fc.Append(feature)
	}
	return fc, nil
}

func exploredTile(tile spatial.TileXY, visit explorer.TileVisit) models.ExploredTile {
	t := models.ExploredTile{
		X:               tile.X,
		Y:               tile.Y,
		VisitCount:      visit.Count,
		FirstActivityID: visit.FirstActivityID,
		LastActivityID:  visit.LastActivityID,
	}
	if !visit.FirstTime.IsZero() {
		first := visit.FirstTime
		t.FirstTime = &first
	}
	if !visit.LastTime.IsZero() {
		last := visit.LastTime
		t.LastTime = &last
	}
	return t
}

func toXY(t spatial.TileXY) models.TileXY {
	return models.TileXY{X: t.X, Y: t.Y}
}

func sortRowMajor(tiles []spatial.TileXY) {
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Y != tiles[j].Y {
			return tiles[i].Y < tiles[j].Y
		}
		return tiles[i].X < tiles[j].X
	})
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultTileLimit
	}
	if limit > maxTileLimit {
		return maxTileLimit
	}
	return limit
}
