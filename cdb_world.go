package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	cdbDirName    = "cdb"
	indexFileName = "newindex.cdb"
)

var ErrNoRecord = errors.New("cdb: no such slot/subfile")

var slotFilePattern = regexp.MustCompile(`^slt(\d+)\.cdb$`)

// CDBWorld is an opened console-edition world save: the loaded index plus a
// handle to every slot file of the chunk database. Records are read on
// demand with ReadAt, so one world may serve several decoding goroutines.
type CDBWorld struct {
	Name    string
	Entries []IndexEntry

	indexPath string
	byPos     map[Position]int // position -> index into Entries
	slots     map[int]*slotFile
}

type slotFile struct {
	file     *os.File
	subfiles int
}

// OpenCDBWorld opens the world directory, loads the index and discovers the
// slot files. An unreadable index is fatal here, before anything else is
// touched; missing or short slot files only mark the entries pointing into
// them as corrupted.
func OpenCDBWorld(root string) (world *CDBWorld, err error) {
	cdbDir := filepath.Join(root, cdbDirName)
	indexPath := filepath.Join(cdbDir, indexFileName)
	entries, err := loadIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	files, err := os.ReadDir(cdbDir)
	if err != nil {
		return nil, err
	}
	slots := make(map[int]*slotFile)
	for _, f := range files {
		m := slotFilePattern.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		fh, err := os.Open(filepath.Join(cdbDir, f.Name()))
		if err != nil {
			closeSlots(slots)
			return nil, err
		}
		st, err := fh.Stat()
		if err != nil {
			_ = fh.Close()
			closeSlots(slots)
			return nil, err
		}
		slots[n] = &slotFile{file: fh, subfiles: int(st.Size() / recordStride)}
	}

	world = &CDBWorld{
		Name:      worldName(root),
		Entries:   entries,
		indexPath: indexPath,
		slots:     slots,
	}
	world.classify()
	return world, nil
}

// classify marks every index entry intact or corrupted by locating its
// record and checking that the record's header still matches what the entry
// claims: same position, same parameter blob.
func (w *CDBWorld) classify() {
	w.byPos = make(map[Position]int, len(w.Entries))
	for i := range w.Entries {
		e := &w.Entries[i]
		w.byPos[e.Position] = i
		h, err := w.ReadRecordHeader(e.Slot, e.Subfile)
		if err != nil || h.Position != e.Position || h.Params() != e.Params {
			e.Corrupted = true
		}
	}
}

// EntryAt returns a pointer to the index entry for pos, if the index has
// one. The pointer stays valid for the lifetime of the world; index repair
// patches entries through it.
func (w *CDBWorld) EntryAt(pos Position) (*IndexEntry, bool) {
	i, ok := w.byPos[pos]
	if !ok {
		return nil, false
	}
	return &w.Entries[i], true
}

// Slots returns the slot numbers present in the database, ascending. The
// recovery scan depends on this order being stable.
func (w *CDBWorld) Slots() []int {
	nums := make([]int, 0, len(w.slots))
	for n := range w.slots {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// SubfileCount returns how many record strides slot n holds.
func (w *CDBWorld) SubfileCount(slot int) int {
	sf, ok := w.slots[slot]
	if !ok {
		return 0
	}
	return sf.subfiles
}

func (w *CDBWorld) slotAt(slot, subfile int) (*slotFile, error) {
	sf, ok := w.slots[slot]
	if !ok || subfile < 0 || subfile >= sf.subfiles {
		return nil, fmt.Errorf("%w: slot %d subfile %d", ErrNoRecord, slot, subfile)
	}
	return sf, nil
}

// ReadRecordHeader parses just the header of the record at (slot, subfile).
func (w *CDBWorld) ReadRecordHeader(slot, subfile int) (RecordHeader, error) {
	sf, err := w.slotAt(slot, subfile)
	if err != nil {
		return RecordHeader{}, err
	}
	buf := make([]byte, recordHeaderSize)
	if _, err := sf.file.ReadAt(buf, int64(subfile)*recordStride); err != nil {
		return RecordHeader{}, err
	}
	return parseRecordHeader(bytes.NewReader(buf))
}

// ReadRecord parses the full record at (slot, subfile), header and payload.
func (w *CDBWorld) ReadRecord(slot, subfile int) (*ChunkRecord, error) {
	sf, err := w.slotAt(slot, subfile)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, recordSize)
	if _, err := sf.file.ReadAt(buf, int64(subfile)*recordStride); err != nil {
		return nil, err
	}
	return parseRecord(buf)
}

// SaveIndex persists the (possibly patched) index entries back to the
// world's index file in one atomic rewrite.
func (w *CDBWorld) SaveIndex() error {
	return saveIndex(w.indexPath, w.Entries)
}

func (w *CDBWorld) Close() error {
	var firstErr error
	for _, sf := range w.slots {
		if err := sf.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func closeSlots(slots map[int]*slotFile) {
	for _, sf := range slots {
		_ = sf.file.Close()
	}
}

// worldName reads the world's display name, falling back to the directory
// name when the save carries no levelname file.
func worldName(root string) string {
	b, err := os.ReadFile(filepath.Join(root, "levelname.txt"))
	if err == nil {
		if name := strings.TrimSpace(string(b)); name != "" {
			return name
		}
	}
	return filepath.Base(filepath.Clean(root))
}
