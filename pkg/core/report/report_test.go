package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/movedesk/consult-agent/pkg/core/types"
)

func TestPersistAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	e := NewEmitter(path)

	snap := types.Snapshot{
		Timestamp: 1700000123.25,
		Inventory: types.Inventory{
			"bedroom": {"lamp": &types.InventoryRecord{Qty: 3, Size: types.SizeSmall}},
		},
		Notes:       []string{"bedroom: crowded"},
		CurrentRoom: "bedroom",
	}
	if err := e.Persist(snap); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Timestamp != snap.Timestamp || loaded.CurrentRoom != "bedroom" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Inventory["bedroom"]["lamp"].Qty != 3 {
		t.Errorf("lamp qty = %d", loaded.Inventory["bedroom"]["lamp"].Qty)
	}

	// The on-disk shape is a contract: spot-check the raw field names.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	for _, key := range []string{`"timestamp"`, `"inventory"`, `"notes"`, `"current_room"`, `"qty"`, `"fragile"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("snapshot file missing %s", key)
		}
	}
}

func TestPersistOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	e := NewEmitter(path)

	if err := e.Persist(types.Snapshot{CurrentRoom: "kitchen", Inventory: types.Inventory{}}); err != nil {
		t.Fatalf("Persist 1: %v", err)
	}
	if err := e.Persist(types.Snapshot{CurrentRoom: "garage", Inventory: types.Inventory{}}); err != nil {
		t.Fatalf("Persist 2: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.CurrentRoom != "garage" {
		t.Errorf("CurrentRoom = %q, want garage", loaded.CurrentRoom)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("not json"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed snapshot")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing snapshot")
	}
}

func TestEmitterDefaults(t *testing.T) {
	if got := NewEmitter("").Path(); got != DefaultPath {
		t.Errorf("Path = %q, want %q", got, DefaultPath)
	}
	var snap types.Snapshot
	if err := json.Unmarshal([]byte(`{"timestamp":1,"inventory":{},"notes":[],"current_room":"unknown"}`), &snap); err != nil {
		t.Fatalf("contract shape does not decode: %v", err)
	}
}
