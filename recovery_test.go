package main

import (
	"testing"
)

func TestScanRecoveryFindsCandidates(t *testing.T) {
	tw := newTestWorld(t)
	fine := Position{X: 1, Z: 1}
	h := tw.addRecord(t, 0, 0, fine)
	tw.addEntry(fine, 0, 0, h.Params())

	broken := Position{X: 5, Z: 5}
	tw.addGarbage(0, 1)
	tw.addEntry(broken, 0, 1, defaultParams())
	tw.addRecord(t, 2, 9, broken)

	world, err := OpenCDBWorld(tw.write(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer world.Close()

	recovered := ScanRecovery(world)
	if recovered.Len() != 1 {
		t.Fatalf("recovered %d positions, want 1", recovered.Len())
	}
	refs, ok := recovered.Get(broken)
	if !ok {
		t.Fatalf("position %v not recovered", broken)
	}
	if len(refs) != 1 || refs[0] != (RecordRef{Slot: 2, Subfile: 9}) {
		t.Fatalf("candidates %v, want [(2, 9)]", refs)
	}
	if _, ok := recovered.Get(fine); ok {
		t.Fatal("intact position should not be recovered")
	}
}

func TestScanRecoveryCandidateOrder(t *testing.T) {
	tw := newTestWorld(t)
	pos := Position{X: -2, Z: 3}
	tw.addGarbage(0, 0)
	tw.addEntry(pos, 0, 0, defaultParams())
	tw.addRecord(t, 2, 0, pos)
	tw.addRecord(t, 0, 1, pos)
	tw.addRecord(t, 2, 4, pos)

	world, err := OpenCDBWorld(tw.write(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer world.Close()

	refs, ok := ScanRecovery(world).Get(pos)
	if !ok {
		t.Fatalf("position %v not recovered", pos)
	}
	want := []RecordRef{{Slot: 0, Subfile: 1}, {Slot: 2, Subfile: 0}, {Slot: 2, Subfile: 4}}
	if len(refs) != len(want) {
		t.Fatalf("candidates %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("candidate %d: got %v, want %v", i, refs[i], want[i])
		}
	}
}

func TestScanRecoveryStaleCopyIgnoredWhenEntryIntact(t *testing.T) {
	tw := newTestWorld(t)
	pos := Position{X: 4, Z: 4}
	h := tw.addRecord(t, 0, 0, pos)
	tw.addEntry(pos, 0, 0, h.Params())
	// An older copy of the same chunk elsewhere in the database.
	tw.addRecord(t, 1, 2, pos)

	world, err := OpenCDBWorld(tw.write(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer world.Close()

	if recovered := ScanRecovery(world); recovered.Len() != 0 {
		t.Fatalf("recovered %d positions, want 0", recovered.Len())
	}
}

func TestRepairIndex(t *testing.T) {
	tw := newTestWorld(t)
	broken := Position{X: 5, Z: 5}
	tw.addGarbage(0, 0)
	tw.addEntry(broken, 0, 0, defaultParams())
	tw.addRecord(t, 2, 9, broken)

	root := tw.write(t)
	world, err := OpenCDBWorld(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	recovered := ScanRecovery(world)
	fixed, err := RepairIndex(world, recovered)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if fixed != 1 {
		t.Fatalf("fixed %d entries, want 1", fixed)
	}
	e, _ := world.EntryAt(broken)
	if e.Slot != 2 || e.Subfile != 9 || e.Corrupted {
		t.Fatalf("entry not repaired: %+v", e)
	}
	world.Close()

	// The repaired index must already be on disk, and a second pass over
	// it has nothing left to do.
	world, err = OpenCDBWorld(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer world.Close()
	e, ok := world.EntryAt(broken)
	if !ok || e.Slot != 2 || e.Subfile != 9 {
		t.Fatalf("repair not persisted: %+v", e)
	}
	if e.Corrupted {
		t.Fatalf("repaired entry still classified corrupted: %+v", e)
	}
	fixed, err = RepairIndex(world, ScanRecovery(world))
	if err != nil {
		t.Fatalf("second repair: %v", err)
	}
	if fixed != 0 {
		t.Fatalf("second run fixed %d entries, want 0", fixed)
	}
}

func TestRepairPrefersFirstCandidate(t *testing.T) {
	tw := newTestWorld(t)
	pos := Position{X: 7, Z: -1, Dimension: Nether}
	tw.addGarbage(3, 0)
	tw.addEntry(pos, 3, 0, defaultParams())
	tw.addRecord(t, 1, 1, pos)
	tw.addRecord(t, 2, 2, pos)

	world, err := OpenCDBWorld(tw.write(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer world.Close()

	if _, err := RepairIndex(world, ScanRecovery(world)); err != nil {
		t.Fatalf("repair: %v", err)
	}
	e, _ := world.EntryAt(pos)
	if e.Slot != 1 || e.Subfile != 1 {
		t.Fatalf("repair should pick the first candidate, got %+v", e)
	}
}

func TestRepairNeverAddsEntries(t *testing.T) {
	tw := newTestWorld(t)
	indexed := Position{X: 0, Z: 0}
	h := tw.addRecord(t, 0, 0, indexed)
	tw.addEntry(indexed, 0, 0, h.Params())
	// A chunk copy the index never mentions.
	orphan := Position{X: 30, Z: 30}
	tw.addRecord(t, 0, 1, orphan)

	world, err := OpenCDBWorld(tw.write(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer world.Close()

	recovered := ScanRecovery(world)
	if _, ok := recovered.Get(orphan); !ok {
		t.Fatalf("orphan position %v should be recovered", orphan)
	}
	fixed, err := RepairIndex(world, recovered)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if fixed != 0 {
		t.Fatalf("fixed %d entries, want 0", fixed)
	}
	if len(world.Entries) != 1 {
		t.Fatalf("index grew to %d entries", len(world.Entries))
	}
}
