package explorer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"time"

	"github.com/golang/snappy"

	"github.com/jengzang/records-explorer-go/internal/spatial"
)

// SchemaVersion is the version written by Save.
const SchemaVersion = 3

// legacyVisitLogVersion stored only a flat log of zoom-19 visits, without evolution state.
const legacyVisitLogVersion = 2

// envelope is the outer frame of the state blob: snappy(gob(envelope)).
type envelope struct {
	Version    int
	Generation uint64
	Payload    []byte
}

// snapshot is the version 3 payload. Maps are flattened into sorted slices so that the same
// state always encodes to the same bytes.
type snapshot struct {
	Ledger    []zoomSnapshot
	Evolution []evolutionSnapshot
}

type zoomSnapshot struct {
	Zoom   int
	Visits []visitSnapshot
}

type visitSnapshot struct {
	Tile            spatial.TileXY
	Count           int
	FirstActivityID int64
	FirstTime       time.Time
	LastActivityID  int64
	LastTime        time.Time
	Activities      []int64
}

type evolutionSnapshot struct {
	Zoom           int
	NeighborCounts []neighborSnapshot
	Clusters       []clusterSnapshot
	MaxClusterSize int
	ClusterHistory []ClusterRecord
	Visited        []spatial.TileXY
	MaxSquareSize  int
	SquareAnchor   spatial.TileXY
	SquareHistory  []SquareRecord
	Cursor         int
	LastConsumed   spatial.TimedTile
}

type neighborSnapshot struct {
	Tile  spatial.TileXY
	Count int
}

type clusterSnapshot struct {
	Representative spatial.TileXY
	Members        []spatial.TileXY
}

// legacyVisit is one row of the version 2 visit log.
type legacyVisit struct {
	ActivityID int64
	Time       time.Time
	X          int
	Y          int
	Considered bool
}

type legacySnapshot struct {
	Visits []legacyVisit
}

func encodeEnvelope(version int, generation uint64, payload any) ([]byte, error) {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	var frame bytes.Buffer
	env := envelope{Version: version, Generation: generation, Payload: body.Bytes()}
	if err := gob.NewEncoder(&frame).Encode(env); err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return snappy.Encode(nil, frame.Bytes()), nil
}

func decodeEnvelope(blob []byte) (*envelope, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress state: %w", err)
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &env, nil
}

func decodePayload(payload []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// takeSnapshot flattens the ledger and the evolution states.
func takeSnapshot(ledger *VisitLedger, states map[int]*EvolutionState) *snapshot {
	snap := &snapshot{}
	for zoom := 0; zoom <= spatial.MaxZoom; zoom++ {
		zl := ledger.Zoom(zoom)
		if len(zl.Visits) == 0 {
			continue
		}
		zs := zoomSnapshot{Zoom: zoom, Visits: make([]visitSnapshot, 0, len(zl.Visits))}
		for _, tile := range ledger.Tiles(zoom) {
			v := zl.Visits[tile]
			zs.Visits = append(zs.Visits, visitSnapshot{
				Tile:            tile,
				Count:           v.Count,
				FirstActivityID: v.FirstActivityID,
				FirstTime:       v.FirstTime,
				LastActivityID:  v.LastActivityID,
				LastTime:        v.LastTime,
				Activities:      ledger.ActivitiesAt(zoom, tile),
			})
		}
		snap.Ledger = append(snap.Ledger, zs)
	}

	zooms := make([]int, 0, len(states))
	for zoom := range states {
		zooms = append(zooms, zoom)
	}
	sort.Ints(zooms)
	for _, zoom := range zooms {
		snap.Evolution = append(snap.Evolution, snapshotEvolution(states[zoom]))
	}
	return snap
}

func snapshotEvolution(s *EvolutionState) evolutionSnapshot {
	es := evolutionSnapshot{
		Zoom:           s.Zoom,
		MaxClusterSize: s.MaxClusterSize,
		ClusterHistory: s.ClusterHistory,
		MaxSquareSize:  s.MaxSquareSize,
		SquareAnchor:   s.SquareAnchor,
		SquareHistory:  s.SquareHistory,
		Cursor:         s.Cursor,
		LastConsumed:   s.LastConsumed,
	}

	counted := make([]spatial.TileXY, 0, len(s.NeighborCount))
	for tile := range s.NeighborCount {
		counted = append(counted, tile)
	}
	sortTiles(counted)
	for _, tile := range counted {
		es.NeighborCounts = append(es.NeighborCounts, neighborSnapshot{Tile: tile, Count: s.NeighborCount[tile]})
	}

	reps := make([]spatial.TileXY, 0, len(s.Clusters))
	for rep := range s.Clusters {
		reps = append(reps, rep)
	}
	sortTiles(reps)
	for _, rep := range reps {
		members := append([]spatial.TileXY(nil), s.Clusters[rep]...)
		sortTiles(members)
		es.Clusters = append(es.Clusters, clusterSnapshot{Representative: rep, Members: members})
	}

	for tile := range s.Visited {
		es.Visited = append(es.Visited, tile)
	}
	sortTiles(es.Visited)
	return es
}

// restoreSnapshot rebuilds the in-memory structures, deriving Membership from Clusters.
func restoreSnapshot(snap *snapshot) (*VisitLedger, map[int]*EvolutionState, error) {
	ledger := NewVisitLedger()
	for _, zs := range snap.Ledger {
		if err := spatial.ValidateZoom(zs.Zoom); err != nil {
			return nil, nil, err
		}
		zl := ledger.Zoom(zs.Zoom)
		for _, v := range zs.Visits {
			zl.Visits[v.Tile] = &TileVisit{
				Count:           v.Count,
				FirstActivityID: v.FirstActivityID,
				FirstTime:       v.FirstTime,
				LastActivityID:  v.LastActivityID,
				LastTime:        v.LastTime,
			}
			set := zl.activitySet(v.Tile)
			for _, id := range v.Activities {
				set[id] = struct{}{}
			}
		}
	}

	states := make(map[int]*EvolutionState, len(snap.Evolution))
	for _, es := range snap.Evolution {
		if err := spatial.ValidateZoom(es.Zoom); err != nil {
			return nil, nil, err
		}
		s := NewEvolutionState(es.Zoom)
		s.MaxClusterSize = es.MaxClusterSize
		s.ClusterHistory = es.ClusterHistory
		s.MaxSquareSize = es.MaxSquareSize
		s.SquareAnchor = es.SquareAnchor
		s.SquareHistory = es.SquareHistory
		s.Cursor = es.Cursor
		s.LastConsumed = es.LastConsumed
		for _, n := range es.NeighborCounts {
			s.NeighborCount[n.Tile] = n.Count
		}
		for _, c := range es.Clusters {
			s.Clusters[c.Representative] = c.Members
			for _, m := range c.Members {
				s.Membership[m] = c.Representative
			}
		}
		for _, tile := range es.Visited {
			s.Visited[tile] = struct{}{}
		}
		states[es.Zoom] = s
	}
	return ledger, states, nil
}
