package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Dimension ids as stored in index and record headers.
const (
	Overworld = 0
	Nether    = 1
	End       = 2
)

const indexEntrySize = 18

var ErrIndexSize = errors.New("cdb: index size is not a multiple of the entry size")

// Position identifies a chunk column: chunk coordinates plus dimension. It is
// used as a map key throughout; two positions are equal iff all three fields
// match.
type Position struct {
	X, Z      int
	Dimension int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, dim %d)", p.X, p.Z, p.Dimension)
}

// RecordParams is the 8-byte parameter block shared by index entries and
// record headers. The index side treats it as an opaque unit, compared and
// copied verbatim during repair; only the record codec looks inside.
type RecordParams [8]byte

// IndexEntry is one fixed-size slot of the index file: a chunk position and
// the (slot, subfile) address of its record. Corrupted is not stored on
// disk; the world loader sets it when the referenced record does not check
// out.
type IndexEntry struct {
	Position  Position
	Slot      int
	Subfile   int
	Params    RecordParams
	Corrupted bool
}

// rawIndexEntry is the exact little-endian wire layout of one index entry.
type rawIndexEntry struct {
	X         int16
	Z         int16
	Dimension uint16
	Slot      uint16
	Subfile   uint16
	Params    RecordParams
}

// loadIndex reads newindex.cdb as a flat sequence of fixed-size entries.
// Entry order is significant and is preserved through dumpIndex, so a
// load/dump round trip of an unmodified index is byte-identical.
func loadIndex(path string) ([]IndexEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw)%indexEntrySize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrIndexSize, len(raw))
	}

	entries := make([]IndexEntry, 0, len(raw)/indexEntrySize)
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		var e rawIndexEntry
		if err := binary.Read(r, binary.LittleEndian, &e); err != nil {
			return nil, err
		}
		entries = append(entries, IndexEntry{
			Position: Position{X: int(e.X), Z: int(e.Z), Dimension: int(e.Dimension)},
			Slot:     int(e.Slot),
			Subfile:  int(e.Subfile),
			Params:   e.Params,
		})
	}
	return entries, nil
}

// dumpIndex is the exact inverse of loadIndex.
func dumpIndex(entries []IndexEntry) []byte {
	var buf bytes.Buffer
	buf.Grow(len(entries) * indexEntrySize)
	for i := range entries {
		e := &entries[i]
		_ = binary.Write(&buf, binary.LittleEndian, rawIndexEntry{
			X:         int16(e.Position.X),
			Z:         int16(e.Position.Z),
			Dimension: uint16(e.Position.Dimension),
			Slot:      uint16(e.Slot),
			Subfile:   uint16(e.Subfile),
			Params:    e.Params,
		})
	}
	return buf.Bytes()
}

// saveIndex rewrites the index in one atomic step: the new contents go to a
// temporary file in the same directory which is then renamed over the
// original, so an aborted run never leaves a partially written index behind.
// Callers are expected to skip the save entirely when no entry changed.
func saveIndex(path string, entries []IndexEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".newindex-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(dumpIndex(entries)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
