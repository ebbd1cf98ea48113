package sortmerge

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"unsafe"

	"github.com/dot5enko/colengine/coltable"
	"github.com/dot5enko/colengine/join"
	"github.com/dot5enko/colengine/operator"
	"github.com/dot5enko/colengine/poslist"
	"github.com/dot5enko/colengine/rowid"
	"github.com/dot5enko/colengine/scheduler"
	"github.com/dot5enko/colengine/segment"
	"github.com/dot5enko/colengine/task"
	"github.com/dot5enko/colengine/telemetry"
)

const l2Bytes = 256_000

type materializedValue[T segment.Ordered] struct {
	value T
	row   rowid.RowID
}

// clusterCount picks a cache-size-driven cluster count for equality
// predicates. Non-equi predicates run single-cluster: exploiting the
// global sort to emit cross-partition ranges for a non-equi comparison
// needs cluster-boundary bookkeeping this implementation intentionally
// skips (see DESIGN.md), so giving a non-equi run exactly one cluster
// keeps every row in reach of the run-based merge without that extra
// machinery, at the cost of the cross-cluster parallelism equi-joins get.
func clusterCount[T segment.Ordered](rowsMax int, equi bool) int {
	if !equi {
		return 1
	}
	var zero T
	perCluster := l2Bytes / (float64(unsafe.Sizeof(zero)) + float64(unsafe.Sizeof(rowid.RowID{})))
	goal := float64(rowsMax) / perCluster
	capped := math.Min(16, goal) + math.Floor(math.Sqrt(math.Max(0, goal-16)))
	if capped < 1 {
		capped = 1
	}
	return roundToPow2(int(math.Ceil(capped)))
}

func roundToPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func hashOf[T segment.Ordered](v T) uint64 {
	var raw uint64
	switch k := any(v).(type) {
	case int8:
		raw = uint64(k)
	case int16:
		raw = uint64(k)
	case int32:
		raw = uint64(uint32(k))
	case int64:
		raw = uint64(k)
	case int:
		raw = uint64(k)
	case uint8:
		raw = uint64(k)
	case uint16:
		raw = uint64(k)
	case uint32:
		raw = uint64(k)
	case uint64:
		raw = k
	case uint:
		raw = uint64(k)
	case float32:
		raw = uint64(math.Float32bits(k))
	case float64:
		raw = math.Float64bits(k)
	case string:
		h := fnv.New64a()
		_, _ = h.Write([]byte(k))
		return h.Sum64()
	default:
		raw = 0
	}
	return mix64(raw)
}

func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func partitionOf[T segment.Ordered](v T, bits int) int {
	if bits == 0 {
		return 0
	}
	return int(hashOf(v) >> (64 - uint(bits)))
}

// forEachRow walks table's chunks, invoking fn with each row's id, typed
// value, and null flag for column.
func forEachRow[T segment.Ordered](table *coltable.Table, column int, fn func(rowid.RowID, T, bool)) {
	for c := 0; c < table.ChunkCount(); c++ {
		chunk := table.GetChunk(rowid.ChunkID(c))
		acc := segment.AsTyped[T](chunk.Column(column))
		for i := 0; i < chunk.RowCount(); i++ {
			r := rowid.RowID{Chunk: rowid.ChunkID(c), Offset: rowid.ChunkOffset(i)}
			if acc.IsNull(i) {
				var zero T
				fn(r, zero, true)
				continue
			}
			fn(r, acc.At(i), false)
		}
	}
}

// run executes the full radix-cluster-sort merge join for key type T:
// materialize both sides into clusters, sort each cluster by value, run
// the per-cluster merge concurrently via the scheduler, then append the
// null-row patch. It returns parallel left/right position lists in output
// row order; within a cluster, order is the merge's own emission order,
// and clusters are concatenated in cluster-index order.
func run[T segment.Ordered](ctx context.Context, left, right *coltable.Table, leftCol, rightCol int, mode operator.JoinMode, cond operator.PredicateCondition, additional []join.Predicate, clustersOverride *int) (*poslist.PositionList, *poslist.PositionList, error) {
	equi := cond == operator.Equals
	rowsMax := left.RowCount()
	if right.RowCount() > rowsMax {
		rowsMax = right.RowCount()
	}
	clusters := clusterCount[T](rowsMax, equi)
	if clustersOverride != nil && equi {
		clusters = *clustersOverride
		if rounded := roundToPow2(clusters); rounded != clusters {
			telemetry.WarnPerformance("sort-merge join: cluster count is not a power of two, rounding up",
				"requested", clusters, "used", rounded)
			clusters = rounded
		}
	}

	leftBuckets := make([][]materializedValue[T], clusters)
	rightBuckets := make([][]materializedValue[T], clusters)
	var leftNulls, rightNulls []rowid.RowID

	leftNeedsOuter := mode == operator.LeftOuter || mode == operator.FullOuter
	rightNeedsOuter := mode == operator.RightOuter || mode == operator.FullOuter

	materializeLeft := task.New("sortmerge.materializeLeft", func() error {
		forEachRow(left, leftCol, func(r rowid.RowID, v T, isNull bool) {
			if isNull {
				if leftNeedsOuter {
					leftNulls = append(leftNulls, r)
				}
				return
			}
			p := partitionOf(v, log2(clusters))
			leftBuckets[p] = append(leftBuckets[p], materializedValue[T]{value: v, row: r})
		})
		return nil
	})
	materializeRight := task.New("sortmerge.materializeRight", func() error {
		forEachRow(right, rightCol, func(r rowid.RowID, v T, isNull bool) {
			if isNull {
				if rightNeedsOuter {
					rightNulls = append(rightNulls, r)
				}
				return
			}
			p := partitionOf(v, log2(clusters))
			rightBuckets[p] = append(rightBuckets[p], materializedValue[T]{value: v, row: r})
		})
		return nil
	})

	sched := scheduler.Default()
	if err := sched.Schedule(materializeLeft); err != nil {
		return nil, nil, err
	}
	if err := sched.Schedule(materializeRight); err != nil {
		return nil, nil, err
	}
	if err := sched.WaitForTasks(ctx, materializeLeft, materializeRight); err != nil {
		return nil, nil, err
	}

	clusterResults := make([]mergeResult, clusters)
	mergeTasks := make([]*task.Task, clusters)
	for c := 0; c < clusters; c++ {
		c := c
		t := task.New("sortmerge.mergeCluster", func() error {
			sortByValue(leftBuckets[c])
			sortByValue(rightBuckets[c])
			clusterResults[c] = mergeCluster(left, right, additional, leftBuckets[c], rightBuckets[c], mode, cond, leftNeedsOuter, rightNeedsOuter)
			return nil
		})
		mergeTasks[c] = t
	}
	for _, t := range mergeTasks {
		if err := sched.Schedule(t); err != nil {
			return nil, nil, err
		}
	}
	if err := sched.WaitForTasks(ctx, mergeTasks...); err != nil {
		return nil, nil, err
	}

	leftPos := poslist.New(0)
	rightPos := poslist.New(0)
	for c := 0; c < clusters; c++ {
		for i := range clusterResults[c].left {
			leftPos.Append(clusterResults[c].left[i])
			rightPos.Append(clusterResults[c].right[i])
		}
	}

	for _, r := range leftNulls {
		leftPos.Append(r)
		rightPos.AppendNull()
	}
	for _, r := range rightNulls {
		rightPos.Append(r)
		leftPos.AppendNull()
	}

	if mode == operator.Semi || mode == operator.Anti {
		return semiAntiTransform(mode, left, leftPos)
	}
	return leftPos, rightPos, nil
}

func log2(n int) int {
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	return bits
}

func sortByValue[T segment.Ordered](b []materializedValue[T]) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].value != b[j].value {
			return b[i].value < b[j].value
		}
		if b[i].row.Chunk != b[j].row.Chunk {
			return b[i].row.Chunk < b[j].row.Chunk
		}
		return b[i].row.Offset < b[j].row.Offset
	})
}

type mergeResult struct {
	left, right []rowid.RowID
}

// semiAntiTransform computes Semi as Inner with only the left position
// list kept, deduplicated (an inner join can match a left row more than
// once). Anti is the complement of the deduplicated semi set against
// every row of the left table. Merging the left input against the semi
// result as a two-pointer walk would need a global value order the
// per-cluster sort here never establishes, so the complement is taken as
// a set difference instead — same result, since both are "every left row
// absent from semi" (see DESIGN.md).
func semiAntiTransform(mode operator.JoinMode, left *coltable.Table, innerLeft *poslist.PositionList) (*poslist.PositionList, *poslist.PositionList, error) {
	seen := make(map[rowid.RowID]bool, innerLeft.Len())
	semi := poslist.New(innerLeft.Len())
	for i := 0; i < innerLeft.Len(); i++ {
		r := innerLeft.At(i)
		if r.IsNull() || seen[r] {
			continue
		}
		seen[r] = true
		semi.Append(r)
	}
	if mode == operator.Semi {
		return semi, poslist.New(0), nil
	}

	anti := poslist.New(left.RowCount() - semi.Len())
	for c := 0; c < left.ChunkCount(); c++ {
		chunk := left.GetChunk(rowid.ChunkID(c))
		for i := 0; i < chunk.RowCount(); i++ {
			r := rowid.RowID{Chunk: rowid.ChunkID(c), Offset: rowid.ChunkOffset(i)}
			if !seen[r] {
				anti.Append(r)
			}
		}
	}
	return anti, poslist.New(0), nil
}
