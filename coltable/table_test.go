package coltable

import (
	"testing"

	"github.com/dot5enko/colengine/poslist"
	"github.com/dot5enko/colengine/rowid"
	"github.com/dot5enko/colengine/segment"
)

func newIntChunk(id rowid.ChunkID, values []int64) *Chunk {
	seg := segment.NewValueSegment(segment.Int64, values, segment.NewBitmap(len(values)))
	c := NewChunk(id, []segment.Accessor{seg})
	c.Finalize()
	return c
}

func TestTableRowCount(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "v", Type: segment.Int64}}}
	tbl := New(schema, Data)

	tbl.AddChunk(newIntChunk(0, []int64{1, 2, 3}))
	tbl.AddChunk(newIntChunk(0, []int64{4, 5}))

	if got := tbl.RowCount(); got != 5 {
		t.Fatalf("expected 5 rows, got %d", got)
	}
	if got := tbl.ChunkCount(); got != 2 {
		t.Fatalf("expected 2 chunks, got %d", got)
	}
}

func TestDereferenceThroughReferenceSegment(t *testing.T) {
	baseSchema := Schema{Columns: []Column{{Name: "v", Type: segment.Int64}}}
	base := New(baseSchema, Data)
	base.AddChunk(newIntChunk(0, []int64{10, 20, 30}))

	basePositions := poslist.New(2)
	basePositions.Append(rowid.RowID{Chunk: 0, Offset: 2})
	basePositions.Append(rowid.RowID{Chunk: 0, Offset: 0})

	refSeg := segment.NewReferenceSegment(segment.Int64, base, 0, basePositions)
	refSchema := Schema{Columns: []Column{{Name: "v", Type: segment.Int64}}}
	refTable := New(refSchema, References)
	refTable.AddChunk(NewChunk(0, []segment.Accessor{refSeg}))

	selected := poslist.New(2)
	selected.Append(rowid.RowID{Chunk: 0, Offset: 1}) // -> base row 0 (value 10)
	selected.AppendNull()

	out := Dereference(refTable, 0, selected)

	if out.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.Len())
	}
	if got := out.At(0); got.Chunk != 0 || got.Offset != 0 {
		t.Errorf("expected dereference to base row (0,0), got %v", got)
	}
	if !out.At(1).IsNull() {
		t.Errorf("expected null passthrough")
	}
}
