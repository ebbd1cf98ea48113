// Package poslist implements the position list: an ordered sequence of
// RowIDs, possibly containing NullRowID entries for outer-join padding.
// Output row order within a partition is driven directly by list order.
package poslist

import "github.com/dot5enko/colengine/rowid"

// PositionList is an ordered, appendable sequence of row ids.
type PositionList struct {
	rows []rowid.RowID
}

// New allocates a position list with the given initial capacity hint.
func New(capacityHint int) *PositionList {
	return &PositionList{rows: make([]rowid.RowID, 0, capacityHint)}
}

// FromSlice wraps an existing row id slice without copying.
func FromSlice(rows []rowid.RowID) *PositionList {
	return &PositionList{rows: rows}
}

// Append adds a concrete row id to the end of the list.
func (p *PositionList) Append(r rowid.RowID) {
	p.rows = append(p.rows, r)
}

// AppendNull appends the reserved null-padding row id.
func (p *PositionList) AppendNull() {
	p.rows = append(p.rows, rowid.NullRowID)
}

// AppendAll appends every row of other, in order.
func (p *PositionList) AppendAll(other *PositionList) {
	if other == nil {
		return
	}
	p.rows = append(p.rows, other.rows...)
}

// Len returns the number of entries, including nulls.
func (p *PositionList) Len() int {
	if p == nil {
		return 0
	}
	return len(p.rows)
}

// At returns the row id at position i.
func (p *PositionList) At(i int) rowid.RowID {
	return p.rows[i]
}

// Set overwrites the row id at position i.
func (p *PositionList) Set(i int, r rowid.RowID) {
	p.rows[i] = r
}

// Rows exposes the backing slice for read-only iteration by callers within
// the engine (segment/coltable packages); it must not be mutated by
// consumers outside this module's own packages.
func (p *PositionList) Rows() []rowid.RowID {
	if p == nil {
		return nil
	}
	return p.rows
}

// Slice returns the sub-list [start, end), sharing the backing array.
func (p *PositionList) Slice(start, end int) *PositionList {
	return &PositionList{rows: p.rows[start:end]}
}

// Clone returns an independent copy of the list.
func (p *PositionList) Clone() *PositionList {
	if p == nil {
		return nil
	}
	out := make([]rowid.RowID, len(p.rows))
	copy(out, p.rows)
	return &PositionList{rows: out}
}
