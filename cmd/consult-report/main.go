// Command consult-report renders a persisted inventory snapshot as text:
// one table per room plus the consultation notes. It consumes only the
// snapshot file the agent writes at session end.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/movedesk/consult-agent/pkg/core/report"
	"github.com/movedesk/consult-agent/pkg/core/types"
)

func main() {
	path := flag.String("snapshot", report.DefaultPath, "path to the inventory snapshot")
	flag.Parse()

	if err := render(os.Stdout, *path); err != nil {
		fmt.Fprintln(os.Stderr, "consult-report:", err)
		os.Exit(1)
	}
}

func render(out io.Writer, path string) error {
	snap, err := report.Load(path)
	if err != nil {
		return err
	}

	ts := time.Unix(0, int64(snap.Timestamp*float64(time.Second))).UTC()
	fmt.Fprintf(out, "Consultation ended %s, last room: %s\n\n", ts.Format(time.RFC1123), snap.CurrentRoom)

	if len(snap.Inventory) == 0 {
		fmt.Fprintln(out, "No items were catalogued.")
	}
	for _, room := range sortedRooms(snap.Inventory) {
		items := snap.Inventory[room]
		if len(items) == 0 {
			continue
		}
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetTitle(room)
		t.AppendHeader(table.Row{"Item", "Qty", "Size", "Fragile"})
		for _, name := range sortedItems(items) {
			rec := items[name]
			fragile := ""
			if rec.Fragile {
				fragile = "yes"
			}
			t.AppendRow(table.Row{name, rec.Qty, rec.Size, fragile})
		}
		t.Render()
		fmt.Fprintln(out)
	}

	if len(snap.Notes) > 0 {
		fmt.Fprintln(out, "Notes:")
		for _, note := range snap.Notes {
			fmt.Fprintf(out, "  - %s\n", note)
		}
	}
	return nil
}

func sortedRooms(inv types.Inventory) []string {
	rooms := make([]string, 0, len(inv))
	for room := range inv {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

func sortedItems(items map[string]*types.InventoryRecord) []string {
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
