package types

import (
	"encoding/json"
	"testing"
)

func TestNormalizeSize(t *testing.T) {
	tests := []struct {
		in   string
		want Size
	}{
		{"small", SizeSmall},
		{" Large ", SizeLarge},
		{"MEDIUM", SizeMedium},
		{"enormous", SizeMedium},
		{"", SizeMedium},
	}
	for _, tt := range tests {
		if got := NormalizeSize(tt.in); got != tt.want {
			t.Errorf("NormalizeSize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeItemName(t *testing.T) {
	if got := NormalizeItemName("  Lamp "); got != "lamp" {
		t.Errorf("NormalizeItemName = %q, want %q", got, "lamp")
	}
}

func TestDetectionRecordNormalize(t *testing.T) {
	d := DetectionRecord{
		Items: []ItemDetection{
			{Name: " Sofa ", Qty: 0, Size: "huge"},
			{Name: "", Qty: -3},
		},
	}
	d.Normalize()

	if d.RoomType != UnknownRoom {
		t.Errorf("RoomType = %q, want %q", d.RoomType, UnknownRoom)
	}
	if d.Items[0].Name != "Sofa" || d.Items[0].Qty != 1 || d.Items[0].Size != SizeMedium {
		t.Errorf("item 0 not normalized: %+v", d.Items[0])
	}
	if d.Items[1].Name != "item" || d.Items[1].Qty != 1 {
		t.Errorf("item 1 not normalized: %+v", d.Items[1])
	}
}

func TestSnapshotFieldNames(t *testing.T) {
	snap := Snapshot{
		Timestamp: 1700000000.5,
		Inventory: Inventory{
			"bedroom": {
				"lamp": &InventoryRecord{Qty: 2, Size: SizeSmall, Fragile: true},
			},
		},
		Notes:       []string{"bedroom: crowded"},
		CurrentRoom: "bedroom",
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"timestamp", "inventory", "notes", "current_room"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("snapshot JSON missing key %q", key)
		}
	}

	var record map[string]map[string]map[string]json.RawMessage
	if err := json.Unmarshal(decoded["inventory"], &record); err != nil {
		t.Fatalf("unmarshal inventory: %v", err)
	}
	for _, key := range []string{"qty", "size", "fragile"} {
		if _, ok := record["bedroom"]["lamp"][key]; !ok {
			t.Errorf("inventory record JSON missing key %q", key)
		}
	}
}
