package main

import (
	"bytes"
	"math/bits"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"
)

// Modern worlds reach from section -4 up; the console worlds only ever
// populated block Y 0..127, so converted columns keep sections 0..7 and
// leave the rest empty.
const chunkYPos = -4

// sectionBuilder accumulates one 16x16x16 section as a palette plus a
// palette index per cell. Index 0 is always air, so an untouched builder
// is an all-air section.
type sectionBuilder struct {
	palette []Block
	indices map[string]int
	cells   [blocksPerSubchunk]int
}

func newSectionBuilder() *sectionBuilder {
	return &sectionBuilder{
		palette: []Block{airBlock},
		indices: map[string]int{airBlock.stateKey(): 0},
	}
}

func (sb *sectionBuilder) set(x, y, z int, b Block) {
	key := b.stateKey()
	pi, ok := sb.indices[key]
	if !ok {
		pi = len(sb.palette)
		sb.palette = append(sb.palette, b)
		sb.indices[key] = pi
	}
	// Anvil cell order is Y, then Z, then X.
	sb.cells[(y<<4|z)<<4|x] = pi
}

func (sb *sectionBuilder) empty() bool {
	return len(sb.palette) == 1
}

// build packs the accumulated cells into a section. A single-entry palette
// needs no data array; anything larger is packed at the vanilla minimum of
// four bits per cell.
func (sb *sectionBuilder) build(y int8, biome save.BiomeState) (save.Section, error) {
	var sec save.Section
	sec.Y = y
	sec.Biomes.Palette = []save.BiomeState{biome}
	states := &sec.BlockStates
	states.Palette = make([]save.BlockState, len(sb.palette))
	for i, b := range sb.palette {
		entry, err := stateEntry(b)
		if err != nil {
			return sec, err
		}
		states.Palette[i] = entry
	}
	if len(sb.palette) > 1 {
		width := bits.Len(uint(len(sb.palette) - 1))
		if width < 4 {
			width = 4
		}
		storage := level.NewBitStorage(width, len(sb.cells), nil)
		for i, pi := range sb.cells {
			storage.Set(i, pi)
		}
		states.Data = storage.Raw()
	}
	return sec, nil
}

// stateEntry converts a block into its palette form, round-tripping the
// property map through the NBT codec to produce the raw compound.
func stateEntry(b Block) (save.BlockState, error) {
	var s save.BlockState
	s.Name = b.FullName()
	props := b.Properties
	if props == nil {
		props = map[string]string{}
	}
	var buf bytes.Buffer
	if err := nbt.NewEncoder(&buf).Encode(props, ""); err != nil {
		return s, err
	}
	if _, err := nbt.NewDecoder(&buf).Decode(&s.Properties); err != nil {
		return s, err
	}
	return s, nil
}

func dimensionBiome(dim int) save.BiomeState {
	switch dim {
	case Nether:
		return "minecraft:nether_wastes"
	case End:
		return "minecraft:the_end"
	default:
		return "minecraft:plains"
	}
}

func newChunk(pos Position, dataVersion int) save.Chunk {
	// A zero RawMessage has tag type TagEnd, which the NBT encoder rejects
	// inside a compound; every raw field needs a well-formed empty payload.
	// Lists carry an element type byte and an int32 length.
	emptyCompound := nbt.RawMessage{Type: nbt.TagCompound, Data: []byte{nbt.TagEnd}}
	emptyList := nbt.RawMessage{Type: nbt.TagList, Data: []byte{nbt.TagEnd, 0, 0, 0, 0}}
	return save.Chunk{
		DataVersion:    int32(dataVersion),
		XPos:           int32(pos.X),
		YPos:           chunkYPos,
		ZPos:           int32(pos.Z),
		Structures:     emptyCompound,
		BlockTicks:     emptyList,
		FluidTicks:     emptyList,
		PostProcessing: emptyList,
		Status:         "full",
	}
}

// BuildChunk decodes one record into a modern chunk column. All-air
// subchunks produce no section.
func BuildChunk(rec *ChunkRecord, pos Position, blocks *BlockMap, dataVersion int) (save.Chunk, error) {
	c := newChunk(pos, dataVersion)
	biome := dimensionBiome(pos.Dimension)
	for sub := 0; sub < subchunksPerChunk; sub++ {
		sb := newSectionBuilder()
		for i := 0; i < blocksPerSubchunk; i++ {
			id := rec.BlockAt(sub, i)
			if id.IsAir() {
				continue
			}
			x, y, z := cellCoords(i)
			sb.set(x, y, z, blocks.Translate(id, pos, x, sub*16+y, z))
		}
		if sb.empty() {
			continue
		}
		sec, err := sb.build(int8(sub), biome)
		if err != nil {
			return c, err
		}
		c.Sections = append(c.Sections, sec)
	}
	return c, nil
}

// PlaceholderChunk stands in for a position whose record is lost. The
// default is an empty column; with fill enabled the whole legacy height
// range is glass instead, making the hole obvious in game.
func PlaceholderChunk(pos Position, fill bool, dataVersion int) (save.Chunk, error) {
	c := newChunk(pos, dataVersion)
	if !fill {
		return c, nil
	}
	biome := dimensionBiome(pos.Dimension)
	glass, err := stateEntry(glassBlock)
	if err != nil {
		return c, err
	}
	for sub := 0; sub < subchunksPerChunk; sub++ {
		var sec save.Section
		sec.Y = int8(sub)
		sec.Biomes.Palette = []save.BiomeState{biome}
		sec.BlockStates.Palette = []save.BlockState{glass}
		c.Sections = append(c.Sections, sec)
	}
	return c, nil
}
