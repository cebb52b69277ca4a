package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"
	"github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/zlib"
)

// zlib, the scheme vanilla itself writes.
const sectorCompressionZlib = 2

type regionKey struct {
	Dimension int
	X, Z      int
}

// regionDir returns the directory holding a dimension's region files.
func regionDir(root string, dim int) string {
	switch dim {
	case Nether:
		return filepath.Join(root, "DIM-1", "region")
	case End:
		return filepath.Join(root, "DIM1", "region")
	default:
		return filepath.Join(root, "region")
	}
}

func regionFileName(x, z int) string {
	return fmt.Sprintf("r.%d.%d.mca", x, z)
}

func regionPath(root string, key regionKey) string {
	return filepath.Join(regionDir(root, key.Dimension), regionFileName(key.X, key.Z))
}

// groupByRegion buckets chunk positions by the region file that holds them.
func groupByRegion(positions []Position) map[regionKey][]Position {
	groups := make(map[regionKey][]Position)
	for _, pos := range positions {
		rx, rz := region.At(pos.X, pos.Z)
		key := regionKey{Dimension: pos.Dimension, X: rx, Z: rz}
		groups[key] = append(groups[key], pos)
	}
	return groups
}

// encodeChunk produces a sector payload: one compression scheme byte
// followed by the zlib compressed chunk NBT.
func encodeChunk(c *save.Chunk) ([]byte, error) {
	var raw bytes.Buffer
	if err := nbt.NewEncoder(&raw).Encode(c, ""); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteByte(sectorCompressionZlib)
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// SaveChunks writes every converted chunk into the output world, visiting
// region files in (dimension, x, z) order and chunks within a region in
// (x, z) order, so repeated runs produce identical files. Each region file
// is created once and written in full before the next is opened. progress,
// when non-nil, is called after every chunk lands.
func SaveChunks(root string, chunks map[Position]*save.Chunk, progress func()) error {
	positions := make([]Position, 0, len(chunks))
	for pos := range chunks {
		positions = append(positions, pos)
	}
	groups := groupByRegion(positions)
	keys := make([]regionKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Dimension != b.Dimension {
			return a.Dimension < b.Dimension
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	for _, key := range keys {
		if err := writeRegion(root, key, groups[key], chunks, progress); err != nil {
			return err
		}
	}
	return nil
}

func writeRegion(root string, key regionKey, positions []Position, chunks map[Position]*save.Chunk, progress func()) error {
	if err := os.MkdirAll(regionDir(root, key.Dimension), 0755); err != nil {
		return err
	}
	path := regionPath(root, key)
	r, err := region.Create(path)
	if err != nil {
		return fmt.Errorf("creating region %s: %w", path, err)
	}
	sort.Slice(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	for _, pos := range positions {
		data, err := encodeChunk(chunks[pos])
		if err != nil {
			r.Close()
			return fmt.Errorf("encoding chunk %v: %w", pos, err)
		}
		x, z := region.In(pos.X, pos.Z)
		if err := r.WriteSector(x, z, data); err != nil {
			r.Close()
			return fmt.Errorf("writing chunk %v to %s: %w", pos, path, err)
		}
		if progress != nil {
			progress()
		}
	}
	if err := r.Close(); err != nil {
		return fmt.Errorf("closing region %s: %w", path, err)
	}
	return nil
}
