// Package join holds the pieces both join operators need: the
// additional-predicate vocabulary, the input-swap decision, and
// reference-segment output assembly, shared rather than duplicated
// between the hash-join and merge-join execution paths.
package join

import (
	"errors"
	"fmt"

	"github.com/dot5enko/colengine/coltable"
	"github.com/dot5enko/colengine/operator"
	"github.com/dot5enko/colengine/poslist"
	"github.com/dot5enko/colengine/segment"
)

// ErrContractViolation is returned for programmer-error join configurations
// (unsupported mode/predicate combinations, mismatched column types).
var ErrContractViolation = errors.New("join: contract violation")

// Predicate is one AND-combined join condition beyond the primary column
// pair: compare LeftColumn of the left input against RightColumn of the
// right input using Condition.
type Predicate struct {
	LeftColumn  int
	RightColumn int
	Condition   operator.PredicateCondition
}

// FlipAll swaps each predicate's column pair and flips its condition,
// applied when a join's inputs are swapped.
func FlipAll(preds []Predicate) []Predicate {
	out := make([]Predicate, len(preds))
	for i, p := range preds {
		out[i] = Predicate{
			LeftColumn:  p.RightColumn,
			RightColumn: p.LeftColumn,
			Condition:   operator.Flip(p.Condition),
		}
	}
	return out
}

// ShouldSwap decides whether a join's inputs should be swapped: Left-outer,
// Semi and Anti unconditionally swap so the outer-kept/probe side is on
// the right; every other mode swaps only if that makes the smaller side
// the build side.
func ShouldSwap(mode operator.JoinMode, leftRows, rightRows int) bool {
	switch mode {
	case operator.LeftOuter, operator.Semi, operator.Anti:
		return true
	default:
		return leftRows > rightRows
	}
}

// OutputSide describes one side of an assembled join output: for every
// output row, Positions holds the selected row id from Table (NullRowID
// for outer padding), and Columns lists which of Table's schema columns
// contribute output columns, in order.
type OutputSide struct {
	Table     *coltable.Table
	Positions *poslist.PositionList
	Columns   []int
}

// AssembleOutput builds the reference-segment output table for a completed
// join. For every coltable.ChunkCapacity-sized row range, and for every
// column of every side in order, it constructs a segment.ReferenceSegment
// pointing directly at that column's base data table — dereferencing
// through any existing reference chain via coltable.Table.BaseTableAndColumn
// and coltable.Dereference so the output never stacks reference-on-
// reference. A PosListsBySegment cache, scoped to one output chunk, lets
// a repeated (table, column) pair reuse one dereferenced position list.
// Columns of a Data input all reference the same selected slice; columns
// of a References input are each dereferenced into their own list.
func AssembleOutput(outSchema coltable.Schema, sides []OutputSide) *coltable.Table {
	out := coltable.New(outSchema, coltable.References)

	rows := 0
	if len(sides) > 0 {
		rows = sides[0].Positions.Len()
	}
	for _, s := range sides {
		if s.Positions.Len() != rows {
			panic(fmt.Sprintf("join: output sides disagree on row count: %d vs %d", s.Positions.Len(), rows))
		}
	}
	if rows == 0 {
		return out
	}

	for start := 0; start < rows; start += coltable.ChunkCapacity {
		end := start + coltable.ChunkCapacity
		if end > rows {
			end = rows
		}
		out.AddChunk(coltable.NewChunk(0, buildChunkSegments(outSchema, sides, start, end)))
	}
	return out
}

func buildChunkSegments(outSchema coltable.Schema, sides []OutputSide, start, end int) []segment.Accessor {
	cache := coltable.NewPosListsBySegment()
	segs := make([]segment.Accessor, 0, outSchema.ColumnCount())

	for _, s := range sides {
		selected := s.Positions.Slice(start, end)
		for _, c := range s.Columns {
			baseTable, baseCol := s.Table.BaseTableAndColumn(c)
			col := c
			derefed := cache.GetOrBuild(s.Table, col, func() *poslist.PositionList {
				if s.Table.Type() == coltable.References {
					return coltable.Dereference(s.Table, col, selected)
				}
				return selected
			})
			segs = append(segs, segment.NewReferenceSegment(baseTable.ColumnDataType(baseCol), baseTable, baseCol, derefed))
		}
	}
	return segs
}
