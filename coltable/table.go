package coltable

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/dot5enko/colengine/poslist"
	"github.com/dot5enko/colengine/rowid"
	"github.com/dot5enko/colengine/segment"
)

// TableType distinguishes tables whose segments store values from tables
// whose segments are reference segments over another table.
type TableType uint8

const (
	Data TableType = iota
	References
)

// Table is an ordered sequence of chunks under one immutable schema.
// chunkLoadGroup dedupes concurrent RowCount walks from racing build/probe
// tasks; GetChunk does not go through it.
type Table struct {
	schema         Schema
	typ            TableType
	chunks         []*Chunk
	chunkLoadGroup singleflight.Group
}

func New(schema Schema, typ TableType) *Table {
	return &Table{schema: schema, typ: typ}
}

func (t *Table) Schema() Schema   { return t.schema }
func (t *Table) Type() TableType  { return t.typ }
func (t *Table) ChunkCount() int  { return len(t.chunks) }
func (t *Table) ColumnCount() int { return t.schema.ColumnCount() }

func (t *Table) ColumnDataType(id int) segment.DataType {
	return t.schema.Columns[id].Type
}

// AddChunk appends a chunk, contract-checking that its column count and
// each segment's data type match the schema (schema/runtime_data.go-style
// panic-on-mismatch, since this can only happen from programmer error
// upstream).
func (t *Table) AddChunk(c *Chunk) {
	if len(c.segments) != t.schema.ColumnCount() {
		panic(fmt.Sprintf("coltable: chunk has %d columns, schema has %d", len(c.segments), t.schema.ColumnCount()))
	}
	for i, s := range c.segments {
		if s.DataType() != t.schema.Columns[i].Type {
			panic(fmt.Sprintf("coltable: chunk column %d has type %s, schema has %s", i, s.DataType(), t.schema.Columns[i].Type))
		}
	}
	c.id = rowid.ChunkID(len(t.chunks))
	t.chunks = append(t.chunks, c)
}

func (t *Table) GetChunk(id rowid.ChunkID) *Chunk {
	if int(id) >= len(t.chunks) {
		return nil
	}
	return t.chunks[id]
}

// RowCount sums every chunk's row count. Deduped via singleflight so that
// concurrent callers on the hot join-swap-decision path don't redo the
// same O(chunks) walk simultaneously.
func (t *Table) RowCount() int {
	v, _, _ := t.chunkLoadGroup.Do("row_count", func() (any, error) {
		total := 0
		for _, c := range t.chunks {
			total += c.RowCount()
		}
		return total, nil
	})
	return v.(int)
}

// ColumnAccessor implements segment.TableRef so this table can sit behind
// a segment.ReferenceSegment.
func (t *Table) ColumnAccessor(chunk rowid.ChunkID, column int) segment.Accessor {
	return t.GetChunk(chunk).Column(column)
}

// PosListsBySegment caches output position lists keyed by (table, column):
// a list is reused only when the same (table, column) pair is assembled
// again within one pass. Two different columns never share an entry, even
// when their position lists would be identical.
type PosListsBySegment struct {
	cache map[posListCacheKey]*poslist.PositionList
}

type posListCacheKey struct {
	table  *Table
	column int
}

func NewPosListsBySegment() *PosListsBySegment {
	return &PosListsBySegment{cache: make(map[posListCacheKey]*poslist.PositionList)}
}

// GetOrBuild returns the cached list for (table, column) if a segment from
// that exact (table, column) pair was already assembled this pass;
// otherwise it calls build and remembers the result.
func (c *PosListsBySegment) GetOrBuild(table *Table, column int, build func() *poslist.PositionList) *poslist.PositionList {
	key := posListCacheKey{table: table, column: column}
	if existing, ok := c.cache[key]; ok {
		return existing
	}
	built := build()
	c.cache[key] = built
	return built
}

// BaseTableAndColumn resolves the table and column index that column's
// values ultimately live in: itself, if t is a Data table, or the table
// and column its reference segments point to, if t is a References table.
// Every chunk of a given References column is assumed to reference the
// same base table and column — the only way such a table is produced in
// practice is the clustering job re-pointing a whole column at once — so
// looking at the first non-empty chunk is sufficient.
func (t *Table) BaseTableAndColumn(column int) (*Table, int) {
	if t.typ == Data {
		return t, column
	}
	for _, c := range t.chunks {
		if c.RowCount() == 0 {
			continue
		}
		refSeg, ok := c.Column(column).(*segment.ReferenceSegment)
		if !ok {
			return t, column
		}
		base, ok := refSeg.ReferencedTable().(*Table)
		if !ok {
			return t, column
		}
		return base.BaseTableAndColumn(refSeg.ReferencedColumn())
	}
	return t, column
}

// Dereference builds a position list that points directly into the data
// table underlying column's storage, given a list of row selections into
// table. If table is itself a Data table, rows pass through unchanged. If
// column is a reference segment in the row's chunk, the row is resolved
// one hop through that segment's own position list before being appended.
// This enforces the invariant that a reference segment never references
// another reference segment: whenever an operator would otherwise build a
// reference segment out of a reference-typed input, it calls Dereference
// first.
func Dereference(table *Table, column int, selected *poslist.PositionList) *poslist.PositionList {
	out := poslist.New(selected.Len())
	for i := 0; i < selected.Len(); i++ {
		row := selected.At(i)
		if row.IsNull() {
			out.AppendNull()
			continue
		}
		acc := table.GetChunk(row.Chunk).Column(column)
		refSeg, ok := acc.(*segment.ReferenceSegment)
		if !ok {
			out.Append(row)
			continue
		}
		out.Append(refSeg.Positions().At(int(row.Offset)))
	}
	return out
}
