// Package hashjoin implements the parallel radix-partitioned hash join:
// swap heuristics, a cache-size-driven radix-bits formula, a concurrent
// materialize/partition/build/probe pipeline run on the scheduler's task
// DAG, and reference-segment output assembly shared with join/sortmerge
// via the join package. Execution splits into a planning step (swap and
// radix-bits selection) followed by running the resulting task-DAG
// pipeline below.
package hashjoin

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dot5enko/colengine/coltable"
	"github.com/dot5enko/colengine/join"
	"github.com/dot5enko/colengine/operator"
	"github.com/dot5enko/colengine/poslist"
	"github.com/dot5enko/colengine/segment"
	"github.com/dot5enko/colengine/telemetry"
)

// HashJoin is a physical join operator over two child operators.
type HashJoin struct {
	left, right operator.Operator
	mode        operator.JoinMode

	leftCol, rightCol int
	condition         operator.PredicateCondition
	radixBitsOverride *int
	additional        []join.Predicate

	params map[string]any

	output *coltable.Table
}

// New constructs a hash join. condition and every additional predicate's
// condition must be operator.Equals; Cross is rejected outright since a
// hash join has no join column pair to hash on.
func New(left, right operator.Operator, mode operator.JoinMode, leftCol, rightCol int, condition operator.PredicateCondition, radixBits *int, additional []join.Predicate) (*HashJoin, error) {
	if mode == operator.Cross {
		return nil, fmt.Errorf("%w: hash join does not support Cross", join.ErrContractViolation)
	}
	if condition != operator.Equals {
		return nil, fmt.Errorf("%w: hash join primary predicate must be Equals, got %s", join.ErrContractViolation, condition)
	}
	for _, p := range additional {
		if p.Condition != operator.Equals {
			return nil, fmt.Errorf("%w: hash join additional predicates must be Equals, got %s", join.ErrContractViolation, p.Condition)
		}
	}
	return &HashJoin{
		left: left, right: right, mode: mode,
		leftCol: leftCol, rightCol: rightCol,
		condition: condition, radixBitsOverride: radixBits, additional: additional,
	}, nil
}

func (h *HashJoin) Name() string { return "HashJoin" }

func (h *HashJoin) Description(mode operator.JoinMode) string {
	return fmt.Sprintf("HashJoin (%s) on [%d]=[%d]", mode, h.leftCol, h.rightCol)
}

func (h *HashJoin) GetOutput() *coltable.Table { return h.output }

func (h *HashJoin) SetParameters(params map[string]any) { h.params = params }

// DeepCopy returns an independent operator tree sharing no mutable state,
// per the Operator contract — used for prepared-statement reuse.
func (h *HashJoin) DeepCopy() operator.Operator {
	additional := make([]join.Predicate, len(h.additional))
	copy(additional, h.additional)
	var radixBits *int
	if h.radixBitsOverride != nil {
		v := *h.radixBitsOverride
		radixBits = &v
	}
	return &HashJoin{
		left: h.left.DeepCopy(), right: h.right.DeepCopy(), mode: h.mode,
		leftCol: h.leftCol, rightCol: h.rightCol,
		condition: h.condition, radixBitsOverride: radixBits, additional: additional,
	}
}

// Execute runs both children, decides the build/probe assignment, selects
// a radix-bits partition count, runs the parallel pipeline, and assembles
// the output table.
func (h *HashJoin) Execute(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.left.Execute(gctx) })
	g.Go(func() error { return h.right.Execute(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	leftTable := h.left.GetOutput()
	rightTable := h.right.GetOutput()

	swap := join.ShouldSwap(h.mode, leftTable.RowCount(), rightTable.RowCount())

	var buildTable, probeTable *coltable.Table
	var buildCol, probeCol int
	additional := h.additional
	if swap {
		buildTable, probeTable = rightTable, leftTable
		buildCol, probeCol = h.rightCol, h.leftCol
		additional = join.FlipAll(h.additional)
	} else {
		buildTable, probeTable = leftTable, rightTable
		buildCol, probeCol = h.leftCol, h.rightCol
	}

	if buildTable.RowCount() > probeTable.RowCount() {
		telemetry.WarnPerformance("hash join: build side is larger than probe side after swap decision",
			"build_rows", buildTable.RowCount(), "probe_rows", probeTable.RowCount())
	}

	leftNeedsOuter := h.mode == operator.LeftOuter || h.mode == operator.FullOuter
	rightNeedsOuter := h.mode == operator.RightOuter || h.mode == operator.FullOuter
	buildOuter, probeOuter := rightNeedsOuter, leftNeedsOuter
	if !swap {
		buildOuter, probeOuter = leftNeedsOuter, rightNeedsOuter
	}

	radixBits := 0
	if h.radixBitsOverride != nil {
		radixBits = *h.radixBitsOverride
	} else {
		radixBits = radixBitsFor(buildTable.ColumnDataType(buildCol), buildTable.RowCount())
	}

	buildPos, probePos, err := dispatch(ctx, buildTable, probeTable, buildCol, probeCol, radixBits, h.mode, buildOuter, probeOuter, additional)
	if err != nil {
		return err
	}

	leftPos, rightPos := buildPos, probePos
	if swap {
		leftPos, rightPos = probePos, buildPos
	}

	h.output = h.assemble(leftTable, rightTable, leftPos, rightPos)
	return nil
}

func (h *HashJoin) assemble(leftTable, rightTable *coltable.Table, leftPos, rightPos *poslist.PositionList) *coltable.Table {
	outSchema := coltable.NewSchema(leftTable.Schema().Columns)
	sides := []join.OutputSide{
		{Table: leftTable, Positions: leftPos, Columns: allColumns(leftTable)},
	}
	if h.mode != operator.Semi && h.mode != operator.Anti {
		outSchema = concatSchemas(leftTable.Schema(), rightTable.Schema())
		sides = append(sides, join.OutputSide{Table: rightTable, Positions: rightPos, Columns: allColumns(rightTable)})
	}
	return join.AssembleOutput(outSchema, sides)
}

func allColumns(t *coltable.Table) []int {
	cols := make([]int, t.ColumnCount())
	for i := range cols {
		cols[i] = i
	}
	return cols
}

func concatSchemas(a, b coltable.Schema) coltable.Schema {
	cols := make([]coltable.Column, 0, len(a.Columns)+len(b.Columns))
	cols = append(cols, a.Columns...)
	cols = append(cols, b.Columns...)
	return coltable.NewSchema(cols)
}

// radixBitsFor picks the cache-size-driven radix-bits heuristic,
// dispatching on the build column's concrete Go type for an accurate
// per-entry size.
func radixBitsFor(dt segment.DataType, buildRows int) int {
	switch dt {
	case segment.Int8, segment.Uint8:
		return heuristic[int8](buildRows)
	case segment.Int16, segment.Uint16:
		return heuristic[int16](buildRows)
	case segment.Int32, segment.Uint32, segment.Float32:
		return heuristic[int32](buildRows)
	case segment.Int64, segment.Uint64, segment.Float64:
		return heuristic[int64](buildRows)
	case segment.String:
		return heuristic[string](buildRows)
	default:
		return heuristic[int64](buildRows)
	}
}
