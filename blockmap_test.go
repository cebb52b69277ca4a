package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeBlockTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocks.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return path
}

func TestLoadBlockMap(t *testing.T) {
	path := writeBlockTable(t, `{
		"blocks": {
			"0:0": "minecraft:air",
			"1:0": "minecraft:stone",
			"5:2": "minecraft:planks[variant=birch]",
			"17:13": "minecraft:log[axis=y,variant=jungle]"
		}
	}`)
	m, err := LoadBlockMap(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Len() != 4 {
		t.Fatalf("loaded %d mappings, want 4", m.Len())
	}

	stone, ok := m.Lookup(BlockID{ID: 1})
	if !ok {
		t.Fatal("1:0 missing")
	}
	if stone.FullName() != "minecraft:stone" || len(stone.Properties) != 0 {
		t.Fatalf("unexpected stone: %+v", stone)
	}

	planks, ok := m.Lookup(BlockID{ID: 5, Data: 2})
	if !ok {
		t.Fatal("5:2 missing")
	}
	if planks.Name != "planks" || planks.Properties["variant"] != "birch" {
		t.Fatalf("unexpected planks: %+v", planks)
	}

	log, _ := m.Lookup(BlockID{ID: 17, Data: 13})
	if log.Properties["axis"] != "y" || log.Properties["variant"] != "jungle" {
		t.Fatalf("unexpected log: %+v", log)
	}
}

func TestLoadBlockMapRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"key without data", `{"blocks": {"1": "minecraft:stone"}}`},
		{"key with three parts", `{"blocks": {"1:2:3": "minecraft:stone"}}`},
		{"id out of range", `{"blocks": {"256:0": "minecraft:stone"}}`},
		{"data out of range", `{"blocks": {"1:16": "minecraft:stone"}}`},
		{"non-numeric id", `{"blocks": {"x:0": "minecraft:stone"}}`},
		{"name without namespace", `{"blocks": {"1:0": "stone"}}`},
		{"name with extra colon", `{"blocks": {"1:0": "a:b:c"}}`},
		{"unclosed bracket", `{"blocks": {"1:0": "minecraft:log[axis"}}`},
		{"property without value", `{"blocks": {"1:0": "minecraft:log[axis]"}}`},
		{"property with two equals", `{"blocks": {"1:0": "minecraft:log[a=b=c]"}}`},
		{"empty property key", `{"blocks": {"1:0": "minecraft:log[=y]"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadBlockMap(writeBlockTable(t, tc.body))
			if !errors.Is(err, ErrBlockTable) {
				t.Fatalf("expect ErrBlockTable, got %v", err)
			}
		})
	}
}

func TestLoadBlockMapBadJSON(t *testing.T) {
	if _, err := LoadBlockMap(writeBlockTable(t, `{"blocks":`)); err == nil {
		t.Fatal("expect error for truncated JSON")
	}
	if _, err := LoadBlockMap(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expect error for missing file")
	}
}

func TestBundledTableLoads(t *testing.T) {
	m, err := LoadBlockMap("blocks.json")
	if err != nil {
		t.Fatalf("loading bundled table: %v", err)
	}
	if m.Len() == 0 {
		t.Fatal("bundled table is empty")
	}
	air, ok := m.Lookup(BlockID{})
	if !ok || air.Name != "air" {
		t.Fatalf("id 0:0 = %+v, want air", air)
	}
	log, ok := m.Lookup(BlockID{ID: 17, Data: 5})
	if !ok || log.Name != "spruce_log" || log.Properties["axis"] != "x" {
		t.Fatalf("id 17:5 = %+v, want spruce_log[axis=x]", log)
	}
}

func TestTranslateFallsBackToSentinel(t *testing.T) {
	m := &BlockMap{blocks: map[BlockID]Block{
		{ID: 1}: {Namespace: "minecraft", Name: "stone"},
	}}
	pos := Position{X: 0, Z: 0}
	if got := m.Translate(BlockID{ID: 1}, pos, 0, 0, 0); got.Name != "stone" {
		t.Fatalf("mapped block: got %+v", got)
	}
	if got := m.Translate(BlockID{ID: 200, Data: 3}, pos, 1, 2, 3); got.FullName() != unknownBlock.FullName() {
		t.Fatalf("unmapped block: got %+v, want sentinel", got)
	}
}

func TestStateKey(t *testing.T) {
	plain := Block{Namespace: "minecraft", Name: "stone"}
	if plain.stateKey() != "minecraft:stone" {
		t.Fatalf("plain key %q", plain.stateKey())
	}
	withProps := Block{
		Namespace:  "minecraft",
		Name:       "log",
		Properties: map[string]string{"variant": "oak", "axis": "z"},
	}
	if withProps.stateKey() != "minecraft:log[axis=z,variant=oak]" {
		t.Fatalf("sorted key %q", withProps.stateKey())
	}
}
