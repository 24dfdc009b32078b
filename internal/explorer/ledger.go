package explorer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jengzang/records-explorer-go/internal/models"
	"github.com/jengzang/records-explorer-go/internal/spatial"
)

// ErrNaiveTimestamp is returned when a timestamp without zone information reaches the ledger.
var ErrNaiveTimestamp = errors.New("timestamp without time zone")

// TileVisit holds the visit statistics of one tile at one zoom level.
// Zero times mean the visit could not be dated.
type TileVisit struct {
	Count           int
	FirstActivityID int64
	FirstTime       time.Time
	LastActivityID  int64
	LastTime        time.Time
}

// ZoomLedger is the ledger of a single zoom level.
type ZoomLedger struct {
	Visits     map[spatial.TileXY]*TileVisit
	Activities map[spatial.TileXY]map[int64]struct{}

	// earliest first-visit entry added or moved since the last ClearChanges
	changedFrom spatial.TimedTile
	changed     bool
}

func newZoomLedger() *ZoomLedger {
	return &ZoomLedger{
		Visits:     make(map[spatial.TileXY]*TileVisit),
		Activities: make(map[spatial.TileXY]map[int64]struct{}),
	}
}

// activitySet returns the reverse-index entry for tile, creating it on first use.
func (z *ZoomLedger) activitySet(tile spatial.TileXY) map[int64]struct{} {
	set, ok := z.Activities[tile]
	if !ok {
		set = make(map[int64]struct{})
		z.Activities[tile] = set
	}
	return set
}

// markChanged lowers the change mark to entry if entry sorts before it.
func (z *ZoomLedger) markChanged(entry spatial.TimedTile) {
	if !z.changed || timedTileLess(entry, z.changedFrom) {
		z.changedFrom = entry
		z.changed = true
	}
}

// VisitLedger records which tiles have been visited, at every zoom level from 0 to spatial.MaxZoom.
// It is the only place where a tile visit is registered.
type VisitLedger struct {
	zooms [spatial.MaxZoom + 1]*ZoomLedger
}

// NewVisitLedger creates an empty ledger
func NewVisitLedger() *VisitLedger {
	l := &VisitLedger{}
	for z := range l.zooms {
		l.zooms[z] = newZoomLedger()
	}
	return l
}

// Zoom returns the ledger of one zoom level. zoom must be valid.
func (l *VisitLedger) Zoom(zoom int) *ZoomLedger {
	return l.zooms[zoom]
}

// RecordActivity folds one activity's per-zoom tile sequences into the ledger.
//
// perZoom is indexed by zoom, as produced by spatial.AggregateZooms. Activities that are not
// considered for achievements record nothing. Timestamps are validated before any mutation,
// so a naive timestamp leaves the ledger untouched.
//
// The returned slice holds the number of newly explored tiles per zoom.
func (l *VisitLedger) RecordActivity(activityID int64, perZoom [][]spatial.TimedTile, considered bool) ([]int, error) {
	if !considered {
		return nil, nil
	}
	if len(perZoom) > len(l.zooms) {
		return nil, fmt.Errorf("activity %d: %d zoom levels exceed maximum zoom %d", activityID, len(perZoom), spatial.MaxZoom)
	}

	for zoom, tiles := range perZoom {
		for _, t := range tiles {
			if models.IsNaive(t.Time) {
				return nil, fmt.Errorf("activity %d at zoom %d: %w", activityID, zoom, ErrNaiveTimestamp)
			}
			if !spatial.InBounds(zoom, t.Tile) {
				return nil, fmt.Errorf("activity %d: tile %v outside zoom %d grid", activityID, t.Tile, zoom)
			}
		}
	}

	newTiles := make([]int, len(perZoom))
	for zoom, tiles := range perZoom {
		zl := l.zooms[zoom]
		for _, t := range tiles {
			visit, ok := zl.Visits[t.Tile]
			if !ok {
				zl.Visits[t.Tile] = &TileVisit{
					Count:           1,
					FirstActivityID: activityID,
					FirstTime:       t.Time,
					LastActivityID:  activityID,
					LastTime:        t.Time,
				}
				newTiles[zoom]++
				if !t.Time.IsZero() {
					zl.markChanged(t)
				}
			} else {
				visit.Count++
				if !t.Time.IsZero() {
					if visit.FirstTime.IsZero() || t.Time.Before(visit.FirstTime) {
						visit.FirstActivityID = activityID
						visit.FirstTime = t.Time
						zl.markChanged(t)
					}
					if visit.LastTime.IsZero() || t.Time.After(visit.LastTime) {
						visit.LastActivityID = activityID
						visit.LastTime = t.Time
					}
				}
			}
			zl.activitySet(t.Tile)[activityID] = struct{}{}
		}
	}
	return newTiles, nil
}

// ConsistencyCheck reports whether every activity referenced by the ledger is still valid
// and every stored timestamp carries a zone.
func (l *VisitLedger) ConsistencyCheck(valid map[int64]struct{}) bool {
	for _, zl := range l.zooms {
		for _, visit := range zl.Visits {
			if _, ok := valid[visit.FirstActivityID]; !ok {
				return false
			}
			if _, ok := valid[visit.LastActivityID]; !ok {
				return false
			}
			if models.IsNaive(visit.FirstTime) || models.IsNaive(visit.LastTime) {
				return false
			}
		}
		for _, ids := range zl.Activities {
			for id := range ids {
				if _, ok := valid[id]; !ok {
					return false
				}
			}
		}
	}
	return true
}

// Visit returns the visit statistics of a tile, if it has been visited.
func (l *VisitLedger) Visit(zoom int, tile spatial.TileXY) (TileVisit, bool) {
	visit, ok := l.zooms[zoom].Visits[tile]
	if !ok {
		return TileVisit{}, false
	}
	return *visit, true
}

// ActivitiesAt returns the ids of the activities that touched tile, ascending.
func (l *VisitLedger) ActivitiesAt(zoom int, tile spatial.TileXY) []int64 {
	set := l.zooms[zoom].Activities[tile]
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TileCount returns the number of explored tiles at zoom.
func (l *VisitLedger) TileCount(zoom int) int {
	return len(l.zooms[zoom].Visits)
}

// Tiles returns the explored tiles at zoom in row-major order.
func (l *VisitLedger) Tiles(zoom int) []spatial.TileXY {
	tiles := make([]spatial.TileXY, 0, len(l.zooms[zoom].Visits))
	for tile := range l.zooms[zoom].Visits {
		tiles = append(tiles, tile)
	}
	sortTiles(tiles)
	return tiles
}

// FirstVisitStream returns the dated tiles of one zoom ordered by first visit time.
// Ties are broken by row-major tile order so the stream is deterministic.
// Undated tiles are left out since they cannot be ordered.
func (l *VisitLedger) FirstVisitStream(zoom int) []spatial.TimedTile {
	stream := make([]spatial.TimedTile, 0, len(l.zooms[zoom].Visits))
	for tile, visit := range l.zooms[zoom].Visits {
		if visit.FirstTime.IsZero() {
			continue
		}
		stream = append(stream, spatial.TimedTile{Time: visit.FirstTime, Tile: tile})
	}
	sort.Slice(stream, func(i, j int) bool { return timedTileLess(stream[i], stream[j]) })
	return stream
}

// EarliestChange returns the earliest first-visit stream entry of zoom that was added, or
// moved to an earlier time, since the last ClearChanges.
func (l *VisitLedger) EarliestChange(zoom int) (spatial.TimedTile, bool) {
	zl := l.zooms[zoom]
	return zl.changedFrom, zl.changed
}

// ClearChanges forgets the change marks of every zoom.
func (l *VisitLedger) ClearChanges() {
	for _, zl := range l.zooms {
		zl.changedFrom = spatial.TimedTile{}
		zl.changed = false
	}
}

// timedTileLess is the order of the first-visit stream.
func timedTileLess(a, b spatial.TimedTile) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return tileLess(a.Tile, b.Tile)
}

func tileLess(a, b spatial.TileXY) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func sortTiles(tiles []spatial.TileXY) {
	sort.Slice(tiles, func(i, j int) bool { return tileLess(tiles[i], tiles[j]) })
}
