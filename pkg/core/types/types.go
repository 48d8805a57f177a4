// Package types defines the shared data model for the consultation agent:
// per-frame detection records, the accumulated inventory, and the persisted
// snapshot contract consumed by the report renderer.
package types

import "strings"

// Size classifies an item for the relocation estimate.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// NormalizeSize maps free-form classifier output onto the size enum.
// Anything unrecognized becomes medium.
func NormalizeSize(raw string) Size {
	switch Size(strings.ToLower(strings.TrimSpace(raw))) {
	case SizeSmall:
		return SizeSmall
	case SizeLarge:
		return SizeLarge
	default:
		return SizeMedium
	}
}

// UnknownRoom is the room label used when the classifier cannot tell
// where the camera is pointing.
const UnknownRoom = "unknown"

// ItemDetection is one item as reported by the classifier for a single frame.
type ItemDetection struct {
	Name    string `json:"name"`
	Qty     int    `json:"qty"`
	Size    Size   `json:"size"`
	Fragile bool   `json:"fragile"`
}

// DetectionRecord is the structured output of one classifier invocation.
// It is transient: only its merged effect on the inventory survives.
type DetectionRecord struct {
	RoomType string          `json:"room_type"`
	Items    []ItemDetection `json:"items"`
	Notes    string          `json:"notes"`
}

// Normalize coerces a freshly decoded record into its canonical shape:
// empty room becomes "unknown", quantities are at least 1, sizes are
// folded onto the enum and item names are trimmed.
func (d *DetectionRecord) Normalize() {
	d.RoomType = strings.TrimSpace(d.RoomType)
	if d.RoomType == "" {
		d.RoomType = UnknownRoom
	}
	for i := range d.Items {
		it := &d.Items[i]
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			it.Name = "item"
		}
		if it.Qty < 1 {
			it.Qty = 1
		}
		it.Size = NormalizeSize(string(it.Size))
	}
}

// NormalizeItemName produces the identity key component for an item within
// a room. Repeated sightings of the same normalized name in the same room
// merge into one record.
func NormalizeItemName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// InventoryRecord is one physical item type within one room. Qty accumulates
// across detections; Size and Fragile are fixed at first observation.
type InventoryRecord struct {
	Qty     int  `json:"qty"`
	Size    Size `json:"size"`
	Fragile bool `json:"fragile"`
}

// Inventory maps room name to item name to record. The JSON nesting and
// field names are the contract the report renderer depends on.
type Inventory map[string]map[string]*InventoryRecord

// Snapshot is the durable, point-in-time serialization written at session
// end. Field names must not change.
type Snapshot struct {
	Timestamp   float64   `json:"timestamp"`
	Inventory   Inventory `json:"inventory"`
	Notes       []string  `json:"notes"`
	CurrentRoom string    `json:"current_room"`
}
