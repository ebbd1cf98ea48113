package segment

import (
	"github.com/dot5enko/colengine/poslist"
	"github.com/dot5enko/colengine/rowid"
)

// TableRef is the narrow slice of the table abstraction a reference
// segment needs in order to resolve values through its position list. A
// concrete *coltable.Table satisfies this structurally, without segment
// importing coltable (which itself imports segment).
type TableRef interface {
	ColumnAccessor(chunk rowid.ChunkID, column int) Accessor
}

// ReferenceSegment is a segment whose rows are indirections into another
// table via an ordered position list. Invariant: a reference segment
// never references another reference segment — constructors that build
// one from a reference input must dereference first (see
// coltable.Dereference).
type ReferenceSegment struct {
	typ              DataType
	referencedTable  TableRef
	referencedColumn int
	positions        *poslist.PositionList
}

func NewReferenceSegment(typ DataType, table TableRef, column int, positions *poslist.PositionList) *ReferenceSegment {
	return &ReferenceSegment{typ: typ, referencedTable: table, referencedColumn: column, positions: positions}
}

func (r *ReferenceSegment) DataType() DataType { return r.typ }
func (r *ReferenceSegment) Variant() Variant   { return ReferenceVariant }
func (r *ReferenceSegment) Len() int           { return r.positions.Len() }

func (r *ReferenceSegment) row(i int) rowid.RowID { return r.positions.At(i) }

func (r *ReferenceSegment) IsNull(i int) bool {
	row := r.row(i)
	if row.IsNull() {
		return true
	}
	return r.referencedTable.ColumnAccessor(row.Chunk, r.referencedColumn).IsNull(int(row.Offset))
}

func (r *ReferenceSegment) ValueAt(i int) any {
	row := r.row(i)
	if row.IsNull() {
		return nil
	}
	return r.referencedTable.ColumnAccessor(row.Chunk, r.referencedColumn).ValueAt(int(row.Offset))
}

// Positions exposes the backing position list, used by output assembly
// when it needs to dereference through this segment rather than read
// values out of it.
func (r *ReferenceSegment) Positions() *poslist.PositionList { return r.positions }

// ReferencedColumn returns the column id within the referenced table.
func (r *ReferenceSegment) ReferencedColumn() int { return r.referencedColumn }

// ReferencedTable returns the table this segment indirects through.
func (r *ReferenceSegment) ReferencedTable() TableRef { return r.referencedTable }
