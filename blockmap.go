package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// BlockID is a legacy numeric block identity: the block id byte plus the
// 4-bit data value that selects its variant.
type BlockID struct {
	ID   byte
	Data byte
}

func (b BlockID) IsAir() bool { return b.ID == 0 && b.Data == 0 }

func (b BlockID) String() string {
	return fmt.Sprintf("%d:%d", b.ID, b.Data)
}

// Block is one modern block state: a namespaced name plus its properties.
type Block struct {
	Namespace  string
	Name       string
	Properties map[string]string
}

func (b Block) FullName() string {
	return b.Namespace + ":" + b.Name
}

// stateKey is a canonical textual form of the state, properties sorted.
// Palette deduplication keys on it.
func (b Block) stateKey() string {
	if len(b.Properties) == 0 {
		return b.FullName()
	}
	keys := make([]string, 0, len(b.Properties))
	for k := range b.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(b.FullName())
	sb.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b.Properties[k])
	}
	sb.WriteByte(']')
	return sb.String()
}

var (
	airBlock     = Block{Namespace: "minecraft", Name: "air"}
	glassBlock   = Block{Namespace: "minecraft", Name: "glass"}
	unknownBlock = Block{Namespace: "minecraft", Name: "netherite_block"}
)

// ErrBlockTable is returned when the block translation table does not parse.
var ErrBlockTable = errors.New("blockmap: malformed block table")

var blockValuePattern = regexp.MustCompile(`^([^\[\]]+)(?:\[([^\[\]]*)\])?$`)

type blockTable struct {
	Blocks map[string]string `json:"blocks"`
}

// BlockMap translates legacy id:data pairs into modern block states. It is
// immutable once loaded and safe to share across conversion workers.
type BlockMap struct {
	blocks map[BlockID]Block
}

// LoadBlockMap reads a JSON block translation table. Any malformed key or
// state fails the whole load; converting with a partial table would bury
// the mistakes in the output world.
func LoadBlockMap(path string) (*BlockMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading block table: %w", err)
	}
	var table blockTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parsing block table: %w", err)
	}
	m := &BlockMap{blocks: make(map[BlockID]Block, len(table.Blocks))}
	for key, value := range table.Blocks {
		id, err := parseBlockKey(key)
		if err != nil {
			return nil, err
		}
		block, err := parseBlockState(value)
		if err != nil {
			return nil, err
		}
		m.blocks[id] = block
	}
	return m, nil
}

func parseBlockKey(key string) (BlockID, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 2 {
		return BlockID{}, fmt.Errorf("%w: key %q", ErrBlockTable, key)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil || id < 0 || id > 255 {
		return BlockID{}, fmt.Errorf("%w: block id in key %q", ErrBlockTable, key)
	}
	data, err := strconv.Atoi(parts[1])
	if err != nil || data < 0 || data > 15 {
		return BlockID{}, fmt.Errorf("%w: data value in key %q", ErrBlockTable, key)
	}
	return BlockID{ID: byte(id), Data: byte(data)}, nil
}

func parseBlockState(value string) (Block, error) {
	m := blockValuePattern.FindStringSubmatch(value)
	if m == nil {
		return Block{}, fmt.Errorf("%w: state %q", ErrBlockTable, value)
	}
	name := strings.Split(m[1], ":")
	if len(name) != 2 || name[0] == "" || name[1] == "" {
		return Block{}, fmt.Errorf("%w: block name %q", ErrBlockTable, m[1])
	}
	b := Block{Namespace: name[0], Name: name[1]}
	if m[2] != "" {
		b.Properties = make(map[string]string)
		for _, prop := range strings.Split(m[2], ",") {
			kv := strings.Split(prop, "=")
			if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
				return Block{}, fmt.Errorf("%w: property %q in state %q", ErrBlockTable, prop, value)
			}
			b.Properties[kv[0]] = kv[1]
		}
	}
	return b, nil
}

// Len reports how many id:data pairs the table covers.
func (m *BlockMap) Len() int {
	return len(m.blocks)
}

// Lookup returns the modern state for a legacy pair.
func (m *BlockMap) Lookup(id BlockID) (Block, bool) {
	b, ok := m.blocks[id]
	return b, ok
}

// Translate resolves a legacy block, substituting a netherite block for
// anything the table does not cover so the gap is easy to spot in game.
// Coordinates are block-local to the chunk at pos.
func (m *BlockMap) Translate(id BlockID, pos Position, x, y, z int) Block {
	if b, ok := m.blocks[id]; ok {
		return b
	}
	logger.Warn().Stringer("block", id).Int("x", x).Int("y", y).Int("z", z).
		Stringer("chunk", pos).Msg("no mapping for block")
	return unknownBlock
}
