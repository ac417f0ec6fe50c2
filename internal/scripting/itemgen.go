package scripting

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ItemEntry is one row of the structured item-behavior data. An entry
// carries either an inline Lua snippet (aggregated into the synthetic unit)
// or a reference to a standalone script file; with neither, the loader
// falls back to items/<id>.lua.
type ItemEntry struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	OnUse  string `yaml:"on_use"` // inline handler body
	Script string `yaml:"script"` // explicit file reference, relative path
}

type itemDataFile struct {
	Items []ItemEntry `yaml:"items"`
}

// LoadItemData reads the item-behavior data file and returns its entries
// plus the file's modification time, which keys the synthetic unit's
// staleness.
func LoadItemData(path string) ([]ItemEntry, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat item data: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read item data: %w", err)
	}
	var f itemDataFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse item data %s: %w", path, err)
	}
	return f.Items, info.ModTime(), nil
}

// GenerateItemAggregate renders the synthetic source that aggregates every
// inline snippet as a uniquely-named sub-unit. Names derive from the owning
// item's id, and entries are emitted in id order so regeneration is
// deterministic.
func GenerateItemAggregate(items []ItemEntry) []byte {
	inline := make([]ItemEntry, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.OnUse) != "" {
			inline = append(inline, it)
		}
	}
	sort.Slice(inline, func(i, j int) bool { return inline[i].ID < inline[j].ID })

	var b strings.Builder
	b.WriteString("-- Generated from item data; do not edit. Regenerated when the data file changes.\n\n")
	for _, it := range inline {
		fmt.Fprintf(&b, "local function item_use_%d(ctx)\n", it.ID)
		for _, line := range strings.Split(strings.TrimRight(it.OnUse, "\n"), "\n") {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("end\n")
		fmt.Fprintf(&b, "register_item{ id = %d, on_use = item_use_%d }\n\n", it.ID, it.ID)
	}
	return []byte(b.String())
}
