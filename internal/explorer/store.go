package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jengzang/records-explorer-go/internal/models"
	"github.com/jengzang/records-explorer-go/internal/spatial"
)

const (
	StateFileName = "explorer_state.bin"
	WorkFileName  = "explorer_work.json"
)

// ErrUnknownZoom is returned when a zoom level is not an achievement zoom of the store.
var ErrUnknownZoom = errors.New("zoom is not tracked")

// ActivitySource is the authoritative activity repository the store is checked against.
type ActivitySource interface {
	ActivityIDs(ctx context.Context) ([]int64, error)
	GetActivity(ctx context.Context, id int64) (*models.Activity, error)
	GetTimeSeries(ctx context.Context, id int64) ([]models.ActivityPoint, error)
}

// ComputeReport summarises one Compute run
type ComputeReport struct {
	Processed  int         `json:"processed"`
	Excluded   int         `json:"excluded"`
	Skipped    int         `json:"skipped"`
	Reset      bool        `json:"reset"`
	NewTiles   map[int]int `json:"new_tiles"`
	DurationMs int64       `json:"duration_ms"`
}

// Store owns the visit ledger, one EvolutionState per achievement zoom and the work ledger,
// and persists them under a state directory.
//
// A Store is not safe for concurrent use; callers serialise access.
type Store struct {
	path     string
	workPath string
	zooms    []int

	ledger     *VisitLedger
	states     map[int]*EvolutionState
	work       *WorkLedger
	generation uint64
	dirty      bool

	logger *slog.Logger
}

// NewStore creates an empty store persisting to dir. Call Load to read existing state.
func NewStore(dir string, zooms []int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tracked := make([]int, 0, len(zooms))
	seen := make(map[int]struct{}, len(zooms))
	for _, zoom := range zooms {
		if err := spatial.ValidateZoom(zoom); err != nil {
			return nil, err
		}
		if _, dup := seen[zoom]; dup {
			continue
		}
		seen[zoom] = struct{}{}
		tracked = append(tracked, zoom)
	}
	sort.Ints(tracked)

	s := &Store{
		path:     filepath.Join(dir, StateFileName),
		workPath: filepath.Join(dir, WorkFileName),
		zooms:    tracked,
		logger:   logger.With("component", "explorer"),
	}
	s.clear()
	return s, nil
}

func (s *Store) clear() {
	s.ledger = NewVisitLedger()
	s.states = make(map[int]*EvolutionState, len(s.zooms))
	for _, zoom := range s.zooms {
		s.states[zoom] = NewEvolutionState(zoom)
	}
	s.work = NewWorkLedger()
}

// Reset discards the ledger, every evolution state and the work ledger.
// The emptied state is written by the next Save.
func (s *Store) Reset() {
	s.clear()
	s.dirty = true
	resetsTotal.Inc()
	s.logger.Info("explorer state reset")
}

// Load reads the persisted state. It never fails: unreadable, corrupt or unknown state is
// logged and the store starts empty. Version 2 visit logs are migrated.
func (s *Store) Load() {
	s.clear()
	s.dirty = false
	s.generation = 0

	work, err := loadWorkLedger(s.workPath)
	if err != nil {
		s.logger.Warn("work ledger unreadable, ignoring it", "path", s.workPath, "error", err)
		work = nil
	}

	blob, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if work != nil && work.Len() > 0 {
			s.logger.Warn("work ledger without state file, starting empty", "done", work.Len())
			s.dirty = true
		}
		return
	}
	if err != nil {
		s.startEmpty("failed to read state file", err)
		return
	}

	env, err := decodeEnvelope(blob)
	if err != nil {
		s.startEmpty("state file corrupt", err)
		return
	}
	s.generation = env.Generation

	switch env.Version {
	case SchemaVersion:
		var snap snapshot
		if err := decodePayload(env.Payload, &snap); err != nil {
			s.startEmpty("state payload corrupt", err)
			return
		}
		ledger, states, err := restoreSnapshot(&snap)
		if err != nil {
			s.startEmpty("state payload invalid", err)
			return
		}
		if work == nil || work.Generation != env.Generation {
			s.startEmpty("work ledger does not match state file", fmt.Errorf("generation %d", env.Generation))
			return
		}
		s.ledger = ledger
		s.work = work
		for _, zoom := range s.zooms {
			if st, ok := states[zoom]; ok {
				s.states[zoom] = st
			}
		}
		s.logger.Info("explorer state loaded",
			"generation", s.generation, "activities", s.work.Len(), "zoom19_tiles", s.ledger.TileCount(spatial.MaxZoom))

	case legacyVisitLogVersion:
		var legacy legacySnapshot
		if err := decodePayload(env.Payload, &legacy); err != nil {
			s.startEmpty("legacy state payload corrupt", err)
			return
		}
		s.migrateVisitLog(legacy.Visits)

	default:
		s.startEmpty("unsupported state version", fmt.Errorf("version %d", env.Version))
	}
}

func (s *Store) startEmpty(msg string, err error) {
	s.logger.Warn(msg+", starting empty", "path", s.path, "error", err)
	s.clear()
	s.dirty = true
	resetsTotal.Inc()
}

// migrateVisitLog replays a version 2 visit log. Visits are grouped per activity and the
// activities are replayed in order of their earliest visit.
func (s *Store) migrateVisitLog(visits []legacyVisit) {
	type replay struct {
		id         int64
		considered bool
		earliest   time.Time
		visits     []legacyVisit
	}
	byID := make(map[int64]*replay)
	for _, v := range visits {
		r, ok := byID[v.ActivityID]
		if !ok {
			r = &replay{id: v.ActivityID, considered: v.Considered}
			byID[v.ActivityID] = r
		}
		r.visits = append(r.visits, v)
		if !v.Time.IsZero() && (r.earliest.IsZero() || v.Time.Before(r.earliest)) {
			r.earliest = v.Time
		}
	}

	replays := make([]*replay, 0, len(byID))
	for _, r := range byID {
		replays = append(replays, r)
	}
	sort.Slice(replays, func(i, j int) bool {
		a, b := replays[i], replays[j]
		if a.earliest.IsZero() != b.earliest.IsZero() {
			return !a.earliest.IsZero()
		}
		if !a.earliest.Equal(b.earliest) {
			return a.earliest.Before(b.earliest)
		}
		return a.id < b.id
	})

	migrated := 0
	for _, r := range replays {
		sort.SliceStable(r.visits, func(i, j int) bool {
			ti, tj := r.visits[i].Time, r.visits[j].Time
			if ti.IsZero() || tj.IsZero() {
				return !ti.IsZero() && tj.IsZero()
			}
			return ti.Before(tj)
		})
		finest := make([]spatial.TimedTile, len(r.visits))
		for i, v := range r.visits {
			finest[i] = spatial.TimedTile{Time: v.Time, Tile: spatial.TileXY{X: v.X, Y: v.Y}}
		}
		if _, err := s.ledger.RecordActivity(r.id, spatial.AggregateZooms(finest, spatial.MaxZoom), r.considered); err != nil {
			s.logger.Warn("dropping unrecoverable legacy activity", "activity_id", r.id, "error", err)
			continue
		}
		s.work.MarkDone(r.id)
		migrated++
	}
	s.advance()
	s.dirty = true
	s.logger.Info("migrated legacy visit log", "from_version", legacyVisitLogVersion, "activities", migrated, "visits", len(visits))
}

// Save writes the state blob and then the work ledger, both through a temporary file and a
// rename. Both carry the same new generation number.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	generation := s.generation + 1
	blob, err := encodeEnvelope(SchemaVersion, generation, takeSnapshot(s.ledger, s.states))
	if err != nil {
		return fmt.Errorf("failed to encode explorer state: %w", err)
	}
	if err := writeFileAtomic(s.path, blob); err != nil {
		return fmt.Errorf("failed to save explorer state: %w", err)
	}
	if err := s.work.save(s.workPath, generation); err != nil {
		return fmt.Errorf("failed to save work ledger: %w", err)
	}

	s.generation = generation
	s.dirty = false
	s.logger.Debug("explorer state saved", "generation", generation, "bytes", len(blob))
	return nil
}

// Compute folds the given activity ids into the state and saves it if anything changed.
// A nil ids slice means every activity of the source.
//
// The ledger is first checked against the source; if any referenced activity is gone the
// state is reset and every activity is recomputed. Ids are processed in ascending order and
// marked done one by one. On cancellation the processed prefix is saved and ctx.Err() returned.
func (s *Store) Compute(ctx context.Context, src ActivitySource, ids []int64) (*ComputeReport, error) {
	start := time.Now()
	report := &ComputeReport{NewTiles: make(map[int]int)}
	defer func() {
		report.DurationMs = time.Since(start).Milliseconds()
		computeDuration.Observe(time.Since(start).Seconds())
	}()

	all, err := src.ActivityIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list activities: %w", err)
	}
	valid := make(map[int64]struct{}, len(all))
	for _, id := range all {
		valid[id] = struct{}{}
	}
	if ids == nil {
		ids = all
	}

	if !s.ledger.ConsistencyCheck(valid) {
		s.logger.Warn("consistency check failed, recomputing from all activities", "activities", len(all))
		s.Reset()
		report.Reset = true
		ids = all
	}
	if s.work.Retain(valid) {
		s.dirty = true
	}

	for _, id := range s.work.Pending(ids) {
		if err := ctx.Err(); err != nil {
			return report, s.finish(err)
		}
		if err := s.foldActivity(ctx, src, id, report); err != nil {
			return report, s.finish(err)
		}
	}
	return report, s.finish(nil)
}

// finish advances the trackers over whatever was folded in and saves a dirty state.
func (s *Store) finish(cause error) error {
	s.advance()
	if s.dirty {
		if err := s.Save(); err != nil {
			return errors.Join(cause, err)
		}
	}
	return cause
}

func (s *Store) foldActivity(ctx context.Context, src ActivitySource, id int64, report *ComputeReport) error {
	activity, err := src.GetActivity(ctx, id)
	if errors.Is(err, models.ErrActivityNotFound) {
		s.logger.Warn("activity disappeared before it was processed", "activity_id", id)
		activitiesProcessed.WithLabelValues("missing").Inc()
		report.Skipped++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get activity %d: %w", id, err)
	}

	if !activity.ConsideredForAchievements {
		s.logger.Info("activity not considered for achievements, recording no tiles", "activity_id", id, "name", activity.Name)
		activitiesProcessed.WithLabelValues("excluded").Inc()
		report.Excluded++
		s.work.MarkDone(id)
		s.dirty = true
		return nil
	}

	rows, err := src.GetTimeSeries(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get time series of activity %d: %w", id, err)
	}
	points := make([]spatial.TrackPoint, len(rows))
	for i, r := range rows {
		points[i] = spatial.TrackPoint{Time: r.Time, Latitude: r.Latitude, Longitude: r.Longitude, SegmentID: r.SegmentID}
	}

	perZoom := spatial.AggregateZooms(spatial.TileizeTrajectory(points, spatial.MaxZoom), spatial.MaxZoom)
	newTiles, err := s.ledger.RecordActivity(id, perZoom, true)
	if err != nil {
		return fmt.Errorf("failed to record activity %d: %w", id, err)
	}

	for zoom, n := range newTiles {
		if n == 0 {
			continue
		}
		report.NewTiles[zoom] += n
		newTilesTotal.WithLabelValues(strconv.Itoa(zoom)).Add(float64(n))
	}
	activitiesProcessed.WithLabelValues("recorded").Inc()
	report.Processed++
	s.work.MarkDone(id)
	s.dirty = true
	s.logger.Debug("activity recorded", "activity_id", id, "points", len(rows), "new_tiles_z19", newTiles[spatial.MaxZoom])
	return nil
}

// advance feeds every achievement zoom's first-visit stream to its trackers. When the ledger
// changed the part of the stream a state was built from (an activity older than the tracked
// ones, or an earlier visit of a consumed tile), the state is rebuilt from the full stream so
// both histories stay ordered by time.
func (s *Store) advance() {
	for _, zoom := range s.zooms {
		stream := s.ledger.FirstVisitStream(zoom)
		from, changed := s.ledger.EarliestChange(zoom)
		state := s.states[zoom]
		if !state.Resumable(stream, from, changed) {
			s.logger.Info("rebuilding achievement state", "zoom", zoom, "consumed", state.Cursor, "stream", len(stream))
			rebuildsTotal.WithLabelValues(strconv.Itoa(zoom)).Inc()
			state = NewEvolutionState(zoom)
			s.states[zoom] = state
			s.dirty = true
		}
		if state.Consume(stream) {
			s.dirty = true
		}
		label := strconv.Itoa(zoom)
		maxClusterSize.WithLabelValues(label).Set(float64(state.MaxClusterSize))
		maxSquareSize.WithLabelValues(label).Set(float64(state.MaxSquareSize))
	}
	s.ledger.ClearChanges()
}

// Ledger returns the visit ledger. Callers must not mutate it.
func (s *Store) Ledger() *VisitLedger {
	return s.ledger
}

// State returns the evolution state of an achievement zoom.
func (s *Store) State(zoom int) (*EvolutionState, error) {
	state, ok := s.states[zoom]
	if !ok {
		return nil, fmt.Errorf("zoom %d: %w", zoom, ErrUnknownZoom)
	}
	return state, nil
}

// AchievementZooms returns the tracked zoom levels, ascending.
func (s *Store) AchievementZooms() []int {
	return append([]int(nil), s.zooms...)
}

// Generation returns the generation of the last saved or loaded state.
func (s *Store) Generation() uint64 {
	return s.generation
}

// ProcessedActivities returns the number of activities marked done.
func (s *Store) ProcessedActivities() int {
	return s.work.Len()
}

// Dirty reports whether the in-memory state differs from the saved one.
func (s *Store) Dirty() bool {
	return s.dirty
}
