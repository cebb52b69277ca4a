package main

import (
	"github.com/willf/bitset"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RecordRef addresses one record inside the chunk database.
type RecordRef struct {
	Slot    int
	Subfile int
}

// RecoveredSet maps chunk positions to the alternate record copies found for
// them during the raw scan, in discovery order. The first candidate of each
// list is the preferred copy: index repair points the entry at it and the
// converter decodes it. Position iteration order is discovery order too,
// which keeps the recovery report and the conversion of index-absent
// positions deterministic across runs.
type RecoveredSet = orderedmap.OrderedMap[Position, []RecordRef]

// ScanRecovery walks every (slot, subfile) pair in the database, slot files
// in ascending slot order, and collects candidate copies for every position
// whose index entry is corrupted, absent, or not pointing at a record the
// scan could validate. Subfiles that do not parse as records are skipped;
// the scan never fails and mutates nothing.
func ScanRecovery(w *CDBWorld) *RecoveredSet {
	candidates := orderedmap.New[Position, []RecordRef]()
	readable := make(map[int]*bitset.BitSet)
	for _, slot := range w.Slots() {
		n := w.SubfileCount(slot)
		bits := bitset.New(uint(n))
		readable[slot] = bits
		for sub := 0; sub < n; sub++ {
			h, err := w.ReadRecordHeader(slot, sub)
			if err != nil {
				continue
			}
			bits.Set(uint(sub))
			refs, _ := candidates.Get(h.Position)
			candidates.Set(h.Position, append(refs, RecordRef{Slot: slot, Subfile: sub}))
		}
		logger.Debug().Int("slot", slot).Uint("readable", uint(bits.Count())).Int("subfiles", n).
			Msg("scanned slot file")
	}

	recovered := orderedmap.New[Position, []RecordRef]()
	for pair := candidates.Oldest(); pair != nil; pair = pair.Next() {
		entry, ok := w.EntryAt(pair.Key)
		if ok && !entry.Corrupted && pointsAtReadable(readable, entry) {
			continue
		}
		recovered.Set(pair.Key, pair.Value)
	}
	return recovered
}

func pointsAtReadable(readable map[int]*bitset.BitSet, e *IndexEntry) bool {
	bits, ok := readable[e.Slot]
	return ok && bits.Test(uint(e.Subfile))
}

// RepairIndex points the index entry of every recovered position at the
// first candidate copy found for it, copying that record's parameter block
// into the entry verbatim. An entry already pointing at its first candidate
// with matching parameters is left alone, which is what makes a second
// repair run over an unchanged database report zero changes. Positions the
// index has no entry for are skipped; they are converted straight from
// their candidate instead. The index file is rewritten only when at least
// one entry changed.
func RepairIndex(w *CDBWorld, recovered *RecoveredSet) (int, error) {
	changed := 0
	for pair := recovered.Oldest(); pair != nil; pair = pair.Next() {
		entry, ok := w.EntryAt(pair.Key)
		if !ok {
			continue
		}
		ref := pair.Value[0]
		h, err := w.ReadRecordHeader(ref.Slot, ref.Subfile)
		if err != nil {
			logger.Warn().Err(err).Int("slot", ref.Slot).Int("subfile", ref.Subfile).
				Stringer("position", pair.Key).Msg("recovery candidate no longer readable")
			continue
		}
		params := h.Params()
		if entry.Slot == ref.Slot && entry.Subfile == ref.Subfile && entry.Params == params {
			continue
		}
		entry.Slot = ref.Slot
		entry.Subfile = ref.Subfile
		entry.Params = params
		entry.Corrupted = false
		changed++
	}
	if changed > 0 {
		if err := w.SaveIndex(); err != nil {
			return changed, err
		}
	}
	return changed, nil
}
