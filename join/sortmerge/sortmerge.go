// Package sortmerge implements the parallel radix-cluster-sort merge join:
// a cache-size-driven cluster count for equality predicates, per-cluster
// run-based merging for Equals (the five non-equality predicates compare
// every left/right pair of their single cluster instead of walking runs),
// the semi-to-anti transform, and reference-segment output
// assembly shared with join/hashjoin via the join package. The
// plan/build-a-task-DAG-then-execute split mirrors join/hashjoin; the
// per-cluster merge jobs play the role hashjoin's per-partition build/probe
// tasks play there.
package sortmerge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dot5enko/colengine/coltable"
	"github.com/dot5enko/colengine/join"
	"github.com/dot5enko/colengine/operator"
	"github.com/dot5enko/colengine/poslist"
	"github.com/dot5enko/colengine/segment"
)

// SortMerge is a physical join operator over two child operators, over any
// of the six comparison predicates.
type SortMerge struct {
	left, right operator.Operator
	mode        operator.JoinMode

	leftCol, rightCol int
	condition         operator.PredicateCondition
	additional        []join.Predicate
	clustersOverride  *int

	params map[string]any
	output *coltable.Table
}

// New constructs a sort-merge join, validating the (mode, predicate)
// combination this operator allows: Cross is never supported here; only
// Equals supports Semi, Anti, and FullOuter; NotEquals supports only Inner.
// clusters overrides the cache-size-driven cluster-count heuristic for
// Equals when non-nil, the same manual-override escape hatch
// join/hashjoin.New offers for its radix-bits heuristic; it is rounded up
// to a power of two, and non-equality predicates ignore it.
func New(left, right operator.Operator, mode operator.JoinMode, leftCol, rightCol int, condition operator.PredicateCondition, additional []join.Predicate, clusters *int) (*SortMerge, error) {
	if mode == operator.Cross {
		return nil, fmt.Errorf("%w: sort-merge join does not support Cross", join.ErrContractViolation)
	}
	switch mode {
	case operator.Semi, operator.Anti, operator.FullOuter:
		if condition != operator.Equals {
			return nil, fmt.Errorf("%w: mode %s requires Equals, got %s", join.ErrContractViolation, mode, condition)
		}
	}
	if condition == operator.NotEquals && mode != operator.Inner {
		return nil, fmt.Errorf("%w: NotEquals supports only Inner, got %s", join.ErrContractViolation, mode)
	}
	return &SortMerge{
		left: left, right: right, mode: mode,
		leftCol: leftCol, rightCol: rightCol,
		condition: condition, additional: additional, clustersOverride: clusters,
	}, nil
}

func (s *SortMerge) Name() string { return "SortMergeJoin" }

func (s *SortMerge) Description(mode operator.JoinMode) string {
	return fmt.Sprintf("SortMergeJoin (%s) on [%d]%s[%d]", mode, s.leftCol, s.condition, s.rightCol)
}

func (s *SortMerge) GetOutput() *coltable.Table     { return s.output }
func (s *SortMerge) SetParameters(p map[string]any) { s.params = p }

func (s *SortMerge) DeepCopy() operator.Operator {
	additional := make([]join.Predicate, len(s.additional))
	copy(additional, s.additional)
	var clusters *int
	if s.clustersOverride != nil {
		v := *s.clustersOverride
		clusters = &v
	}
	return &SortMerge{
		left: s.left.DeepCopy(), right: s.right.DeepCopy(), mode: s.mode,
		leftCol: s.leftCol, rightCol: s.rightCol,
		condition: s.condition, additional: additional, clustersOverride: clusters,
	}
}

// Execute runs both children, then dispatches to the generic cluster/merge
// core on the join column's concrete Go type.
func (s *SortMerge) Execute(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.left.Execute(gctx) })
	g.Go(func() error { return s.right.Execute(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	leftTable := s.left.GetOutput()
	rightTable := s.right.GetOutput()

	if leftTable.ColumnDataType(s.leftCol) != rightTable.ColumnDataType(s.rightCol) {
		return fmt.Errorf("%w: join column data types differ (%s vs %s)",
			join.ErrContractViolation, leftTable.ColumnDataType(s.leftCol), rightTable.ColumnDataType(s.rightCol))
	}

	leftPos, rightPos, err := dispatch(ctx, leftTable, rightTable, s.leftCol, s.rightCol, s.mode, s.condition, s.additional, s.clustersOverride)
	if err != nil {
		return err
	}

	outSchema := coltable.NewSchema(leftTable.Schema().Columns)
	sides := []join.OutputSide{
		{Table: leftTable, Positions: leftPos, Columns: allColumns(leftTable)},
	}
	if s.mode != operator.Semi && s.mode != operator.Anti {
		outSchema = concatSchemas(leftTable.Schema(), rightTable.Schema())
		sides = append(sides, join.OutputSide{Table: rightTable, Positions: rightPos, Columns: allColumns(rightTable)})
	}
	s.output = join.AssembleOutput(outSchema, sides)
	return nil
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

func dispatch(ctx context.Context, left, right *coltable.Table, leftCol, rightCol int, mode operator.JoinMode, cond operator.PredicateCondition, additional []join.Predicate, clustersOverride *int) (lp, rp *poslist.PositionList, err error) {
	switch left.ColumnDataType(leftCol) {
	case segment.Int8:
		return run[int8](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Int16:
		return run[int16](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Int32:
		return run[int32](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Int64:
		return run[int64](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Uint8:
		return run[uint8](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Uint16:
		return run[uint16](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Uint32:
		return run[uint32](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Uint64:
		return run[uint64](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Float32:
		return run[float32](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.Float64:
		return run[float64](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	case segment.String:
		return run[string](ctx, left, right, leftCol, rightCol, mode, cond, additional, clustersOverride)
	default:
		return nil, nil, join.ErrContractViolation
	}
}
