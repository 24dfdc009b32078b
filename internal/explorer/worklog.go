package explorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

const workLedgerVersion = 1

// WorkLedger tracks which activity ids have been folded into the explorer state.
// It is stored next to the state blob and shares its generation number.
type WorkLedger struct {
	Version    int     `json:"version"`
	Generation uint64  `json:"generation"`
	Done       []int64 `json:"done"`

	done map[int64]struct{}
}

// NewWorkLedger creates an empty work ledger
func NewWorkLedger() *WorkLedger {
	return &WorkLedger{Version: workLedgerVersion, done: make(map[int64]struct{})}
}

// IsDone reports whether id has been processed
func (w *WorkLedger) IsDone(id int64) bool {
	_, ok := w.done[id]
	return ok
}

// MarkDone records id as processed
func (w *WorkLedger) MarkDone(id int64) {
	w.done[id] = struct{}{}
}

// Pending returns the ids not yet processed, deduplicated and ascending.
func (w *WorkLedger) Pending(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	pending := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || w.IsDone(id) {
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, id)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	return pending
}

// Retain forgets ids that are no longer valid and reports whether any were dropped.
func (w *WorkLedger) Retain(valid map[int64]struct{}) bool {
	dropped := false
	for id := range w.done {
		if _, ok := valid[id]; !ok {
			delete(w.done, id)
			dropped = true
		}
	}
	return dropped
}

// Len returns the number of processed ids
func (w *WorkLedger) Len() int {
	return len(w.done)
}

// Reset forgets every processed id
func (w *WorkLedger) Reset() {
	w.done = make(map[int64]struct{})
}

// loadWorkLedger reads the work ledger; a missing file yields (nil, nil).
func loadWorkLedger(path string) (*WorkLedger, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read work ledger: %w", err)
	}

	var w WorkLedger
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode work ledger: %w", err)
	}
	if w.Version != workLedgerVersion {
		return nil, fmt.Errorf("unsupported work ledger version %d", w.Version)
	}
	w.done = make(map[int64]struct{}, len(w.Done))
	for _, id := range w.Done {
		w.done[id] = struct{}{}
	}
	return &w, nil
}

// save writes the work ledger through a temporary file and a rename.
func (w *WorkLedger) save(path string, generation uint64) error {
	w.Version = workLedgerVersion
	w.Generation = generation
	w.Done = make([]int64, 0, len(w.done))
	for id := range w.done {
		w.Done = append(w.Done, id)
	}
	sort.Slice(w.Done, func(i, j int) bool { return w.Done[i] < w.Done[j] })

	payload, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode work ledger: %w", err)
	}
	return writeFileAtomic(path, payload)
}

// writeFileAtomic writes data to path + ".tmp" and renames it over path,
// so readers never observe a partially written file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}
