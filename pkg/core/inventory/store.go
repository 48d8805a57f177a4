// Package inventory holds the running room-by-room inventory for one
// consultation. The store is the only stateful piece between frames: every
// detection merges into it, and the final summary and snapshot are read
// from it when the session ends.
package inventory

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/movedesk/consult-agent/pkg/core/types"
)

// EmptyPrompt is returned by Summarize when nothing has been catalogued yet.
const EmptyPrompt = "No items detected yet. Please show me around the room."

var titleCaser = cases.Title(language.English)

// Store accumulates detections into a per-room inventory.
//
// Merge, Summarize and Snapshot are mutually exclusive; the classifier call
// that produces a detection must happen outside the store so network latency
// never holds the lock.
type Store struct {
	mu sync.Mutex

	inventory types.Inventory
	roomOrder []string
	itemOrder map[string][]string
	notes     []string
	current   string
}

// NewStore returns an empty store positioned in the unknown room.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.inventory = make(types.Inventory)
	s.roomOrder = nil
	s.itemOrder = make(map[string][]string)
	s.notes = nil
	s.current = types.UnknownRoom
}

// Reset clears all inventory state for a fresh consultation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Merge folds one detection into the inventory.
//
// The current room always follows the detection, even when it carries no
// items. Item attributes other than quantity are fixed at first observation:
// later sightings of the same normalized name in the same room only add
// quantity. Non-empty notes are appended verbatim, prefixed with the room.
func (s *Store) Merge(det types.DetectionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := det.RoomType
	if strings.TrimSpace(room) == "" {
		room = types.UnknownRoom
	}
	s.current = room

	if _, ok := s.inventory[room]; !ok {
		s.inventory[room] = make(map[string]*types.InventoryRecord)
		s.roomOrder = append(s.roomOrder, room)
	}

	for _, item := range det.Items {
		name := types.NormalizeItemName(item.Name)
		if name == "" {
			continue
		}
		qty := item.Qty
		if qty < 1 {
			qty = 1
		}
		if rec, ok := s.inventory[room][name]; ok {
			rec.Qty += qty
			continue
		}
		s.inventory[room][name] = &types.InventoryRecord{
			Qty:     qty,
			Size:    types.NormalizeSize(string(item.Size)),
			Fragile: item.Fragile,
		}
		s.itemOrder[room] = append(s.itemOrder[room], name)
	}

	if det.Notes != "" {
		s.notes = append(s.notes, fmt.Sprintf("%s: %s", room, det.Notes))
	}
}

// Summarize renders the inventory as a deterministic multi-line string, one
// line per room with at least one item, rooms and items in first-observation
// order. An empty inventory yields EmptyPrompt.
func (s *Store) Summarize() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lines []string
	for _, room := range s.roomOrder {
		names := s.itemOrder[room]
		if len(names) == 0 {
			continue
		}
		parts := make([]string, 0, len(names))
		for _, name := range names {
			rec := s.inventory[room][name]
			suffix := ""
			if rec.Fragile {
				suffix = " (fragile)"
			}
			parts = append(parts, fmt.Sprintf("%s x%d (%s)%s", name, rec.Qty, rec.Size, suffix))
		}
		lines = append(lines, fmt.Sprintf("**%s**: %s", titleCaser.String(room), strings.Join(parts, ", ")))
	}

	if len(lines) == 0 {
		return EmptyPrompt
	}
	return strings.Join(lines, "\n")
}

// Snapshot returns a deep copy of the current state stamped with ts, in the
// exact shape the report renderer consumes.
func (s *Store) Snapshot(ts float64) types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv := make(types.Inventory, len(s.inventory))
	for room, items := range s.inventory {
		copied := make(map[string]*types.InventoryRecord, len(items))
		for name, rec := range items {
			r := *rec
			copied[name] = &r
		}
		inv[room] = copied
	}
	notes := make([]string, len(s.notes))
	copy(notes, s.notes)

	return types.Snapshot{
		Timestamp:   ts,
		Inventory:   inv,
		Notes:       notes,
		CurrentRoom: s.current,
	}
}

// CurrentRoom reports the room of the most recent detection.
func (s *Store) CurrentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ItemCount reports the number of distinct item records across all rooms.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, items := range s.inventory {
		n += len(items)
	}
	return n
}
