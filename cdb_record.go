package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	subchunksPerChunk  = 8
	blocksPerSubchunk  = 0x1000 // 16×16×16 cells
	nibblesPerSubchunk = blocksPerSubchunk / 2
	subchunkDataSize   = blocksPerSubchunk + nibblesPerSubchunk

	recordHeaderSize  = 14
	recordPayloadSize = subchunksPerChunk * subchunkDataSize
	recordSize        = recordHeaderSize + recordPayloadSize

	// Records sit on 4 KiB sector boundaries inside a slot file; the stride
	// tail past recordSize is padding.
	recordStride = 0xD000

	recordVersion  = 0xA
	maxBlobSize    = 0x20FF
	recordFlagUsed = 0x1
)

var ErrRecordShort = errors.New("cdb: record truncated")
var ErrRecordHeader = errors.New("cdb: record header outside the database envelope")

// RecordHeader is the fixed parameter block at the start of every chunk
// record: the position the record claims to hold, plus the size/version
// fields the index mirrors as its opaque parameter blob.
type RecordHeader struct {
	Position Position
	BlobSize uint16
	Version  uint16
	Flags    uint16
	Mask     uint16
}

type rawRecordHeader struct {
	X         int16
	Z         int16
	Dimension uint16
	BlobSize  uint16
	Version   uint16
	Flags     uint16
	Mask      uint16
}

// Params serializes the header's parameter fields into the 8-byte blob form
// stored in index entries.
func (h RecordHeader) Params() (p RecordParams) {
	binary.LittleEndian.PutUint16(p[0:], h.BlobSize)
	binary.LittleEndian.PutUint16(p[2:], h.Version)
	binary.LittleEndian.PutUint16(p[4:], h.Flags)
	binary.LittleEndian.PutUint16(p[6:], h.Mask)
	return p
}

func (h RecordHeader) validate() error {
	switch {
	case h.Version != recordVersion:
		return fmt.Errorf("%w: version %#x", ErrRecordHeader, h.Version)
	case h.BlobSize == 0 || h.BlobSize > maxBlobSize:
		return fmt.Errorf("%w: blob size %#x", ErrRecordHeader, h.BlobSize)
	case h.Flags&recordFlagUsed == 0:
		return fmt.Errorf("%w: flags %#x", ErrRecordHeader, h.Flags)
	case h.Position.Dimension < Overworld || h.Position.Dimension > End:
		return fmt.Errorf("%w: dimension %d", ErrRecordHeader, h.Position.Dimension)
	}
	return nil
}

func parseRecordHeader(r io.Reader) (RecordHeader, error) {
	var raw rawRecordHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrRecordShort
		}
		return RecordHeader{}, err
	}
	h := RecordHeader{
		Position: Position{X: int(raw.X), Z: int(raw.Z), Dimension: int(raw.Dimension)},
		BlobSize: raw.BlobSize,
		Version:  raw.Version,
		Flags:    raw.Flags,
		Mask:     raw.Mask,
	}
	if err := h.validate(); err != nil {
		return h, err
	}
	return h, nil
}

// ChunkRecord is one parsed chunk record: the validated header plus the raw
// block payload of all eight vertical subchunks. The payload is owned by the
// record (copied out of the slot file buffer) and never mutated.
type ChunkRecord struct {
	Header  RecordHeader
	payload []byte
}

// parseRecord decodes a full record from a slot file buffer. The buffer must
// hold at least the declared layout or the parse fails.
func parseRecord(buf []byte) (*ChunkRecord, error) {
	if len(buf) < recordSize {
		return nil, ErrRecordShort
	}
	h, err := parseRecordHeader(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	payload := make([]byte, recordPayloadSize)
	copy(payload, buf[recordHeaderSize:recordSize])
	return &ChunkRecord{Header: h, payload: payload}, nil
}

// BlockAt returns the (id, data) pair of cell i within vertical subchunk
// sub. Data nibbles are packed two per byte after the id array: even cell
// indices take the low nibble, odd the high one.
func (rec *ChunkRecord) BlockAt(sub, i int) BlockID {
	base := sub * subchunkDataSize
	data := rec.payload[base+blocksPerSubchunk+i/2]
	if i%2 == 0 {
		data &= 0xF
	} else {
		data >>= 4
	}
	return BlockID{ID: rec.payload[base+i], Data: data}
}

// cellCoords decodes a payload cell index into subchunk-local coordinates.
// The vertical offset of the subchunk itself is added by the caller.
func cellCoords(i int) (x, y, z int) {
	return i >> 8, i & 0xF, (i & 0xF0) >> 4
}
