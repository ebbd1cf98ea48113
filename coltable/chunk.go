package coltable

import (
	"fmt"

	"github.com/dot5enko/colengine/rowid"
	"github.com/dot5enko/colengine/segment"
)

// ChunkCapacity is the fixed target row count per chunk.
const ChunkCapacity = 25_000

// Chunk is a fixed-capacity horizontal slice of a table: exactly one
// segment per column, plus per-row MVCC commit-id metadata that survives
// clustering reorganizations untouched.
type Chunk struct {
	id         rowid.ChunkID
	segments   []segment.Accessor
	finalized  bool
	beginCTID  []uint64
	endCTID    []uint64
	rowCount   int
}

// NewChunk builds a mutable chunk from its per-column segments. All
// segments must report the same Len(); that length becomes the chunk's row
// count.
func NewChunk(id rowid.ChunkID, segments []segment.Accessor) *Chunk {
	rows := 0
	if len(segments) > 0 {
		rows = segments[0].Len()
	}
	for i, s := range segments {
		if s.Len() != rows {
			panic(fmt.Sprintf("coltable: chunk %d column %d has %d rows, want %d", id, i, s.Len(), rows))
		}
	}
	return &Chunk{
		id:        id,
		segments:  segments,
		beginCTID: make([]uint64, rows),
		endCTID:   make([]uint64, rows),
		rowCount:  rows,
	}
}

func (c *Chunk) ID() rowid.ChunkID { return c.id }
func (c *Chunk) RowCount() int     { return c.rowCount }
func (c *Chunk) IsMutable() bool   { return !c.finalized }

// Finalize freezes the chunk; once finalized it may be encoded and must
// not be mutated further.
func (c *Chunk) Finalize() { c.finalized = true }

// Column returns the accessor for column idx. Panics (contract violation)
// on an out-of-range column rather than returning an error, since that
// can only happen from a programmer mistake, never from data.
func (c *Chunk) Column(idx int) segment.Accessor {
	return c.segments[idx]
}

// BeginCommitID and EndCommitID expose the per-row MVCC visibility window.
// They are preserved verbatim by clustering/reorganization jobs, which
// are external collaborators this package does not implement.
func (c *Chunk) BeginCommitID(row rowid.ChunkOffset) uint64 { return c.beginCTID[row] }
func (c *Chunk) EndCommitID(row rowid.ChunkOffset) uint64   { return c.endCTID[row] }
func (c *Chunk) SetCommitWindow(row rowid.ChunkOffset, begin, end uint64) {
	c.beginCTID[row] = begin
	c.endCTID[row] = end
}
