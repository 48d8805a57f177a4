// Package report persists the end-of-session inventory snapshot. The file it
// writes is the sole contract the downstream report renderer depends on, so
// the JSON shape must stay stable.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/movedesk/consult-agent/pkg/core/types"
)

// DefaultPath is where the snapshot lands when no path is configured.
const DefaultPath = "inventory.json"

// Emitter writes snapshots to a fixed path.
type Emitter struct {
	path string
}

// NewEmitter builds an emitter. An empty path means DefaultPath.
func NewEmitter(path string) *Emitter {
	if path == "" {
		path = DefaultPath
	}
	return &Emitter{path: path}
}

// Path returns the snapshot destination.
func (e *Emitter) Path() string {
	return e.path
}

// Persist writes the snapshot as indented JSON. The write goes through a
// temp file plus rename so a crash mid-write never leaves a torn snapshot.
func (e *Emitter) Persist(snap types.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(e.path)
	tmp, err := os.CreateTemp(dir, ".inventory-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, e.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// Load reads a previously persisted snapshot.
func Load(path string) (types.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("read snapshot %q: %w", path, err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return types.Snapshot{}, fmt.Errorf("parse snapshot %q: %w", path, err)
	}
	return snap, nil
}
