package hashjoin

import (
	"context"
	"hash/fnv"
	"math"
	"unsafe"

	"github.com/dot5enko/colengine/coltable"
	"github.com/dot5enko/colengine/join"
	"github.com/dot5enko/colengine/operator"
	"github.com/dot5enko/colengine/poslist"
	"github.com/dot5enko/colengine/rowid"
	"github.com/dot5enko/colengine/scheduler"
	"github.com/dot5enko/colengine/segment"
	"github.com/dot5enko/colengine/task"
)

const l2Bytes = 256_000

// heuristic picks a cache-size-driven radix-bits count, instantiated on
// the concrete build-key type so sizeof(BuildKey) is the real Go type size
// rather than a guess.
func heuristic[T segment.Ordered](buildRows int) int {
	var zero T
	perEntry := float64(unsafe.Sizeof(zero)) + 2*float64(unsafe.Sizeof(rowid.RowID{})) + 1
	mapSize := float64(buildRows) * perEntry / 0.8
	clusters := math.Max(1, 2*mapSize/l2Bytes)
	bits := math.Ceil(math.Log2(clusters))
	if bits < 0 {
		bits = 0
	}
	return int(bits)
}

// hashOf maps any supported key type to a 64-bit hash with reasonable bit
// spread, used purely to decide a row's radix partition — not for
// correctness, since equal keys always land in the same bucket regardless
// of hash quality.
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

// mix64 is the splitmix64 finalizer, used to spread low-entropy integer
// keys across the high bits a radix partition function reads.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

type keyedRow[T segment.Ordered] struct {
	key T
	row rowid.RowID
}

// dispatch double-dispatches on the build column's data type, instantiating
// the generic pipeline for the matching Go type.
func dispatch(ctx context.Context, buildTable, probeTable *coltable.Table, buildCol, probeCol, radixBits int, mode operator.JoinMode, buildOuter, probeOuter bool, additional []join.Predicate) (*poslist.PositionList, *poslist.PositionList, error) {
	switch buildTable.ColumnDataType(buildCol) {
	case segment.Int8:
		return run[int8](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Int16:
		return run[int16](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Int32:
		return run[int32](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Int64:
		return run[int64](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Uint8:
		return run[uint8](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Uint16:
		return run[uint16](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Uint32:
		return run[uint32](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Uint64:
		return run[uint64](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Float32:
		return run[float32](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.Float64:
		return run[float64](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	case segment.String:
		return run[string](ctx, buildTable, probeTable, buildCol, probeCol, radixBits, mode, buildOuter, probeOuter, additional)
	default:
		return nil, nil, join.ErrContractViolation
	}
}

// run executes the full materialize/partition/build/probe pipeline for key
// type T. It returns parallel build-side and probe-side position lists:
// entry i of each pair describes one output row, with rowid.NullRowID
// standing in for outer padding.
func run[T segment.Ordered](ctx context.Context, buildTable, probeTable *coltable.Table, buildCol, probeCol, radixBits int, mode operator.JoinMode, buildOuter, probeOuter bool, additional []join.Predicate) (*poslist.PositionList, *poslist.PositionList, error) {
	partitions := 1 << radixBits

	buildBuckets := make([][]keyedRow[T], partitions)
	probeBuckets := make([][]keyedRow[T], partitions)
	var probeNulls []rowid.RowID

	materializeBuild := task.New("hashjoin.materializeBuild", func() error {
		forEachRow(buildTable, buildCol, func(r rowid.RowID, v T, isNull bool) {
			if isNull {
				return // build side never retains nulls
			}
			p := partitionOf(v, radixBits)
			buildBuckets[p] = append(buildBuckets[p], keyedRow[T]{key: v, row: r})
		})
		return nil
	})

	materializeProbe := task.New("hashjoin.materializeProbe", func() error {
		forEachRow(probeTable, probeCol, func(r rowid.RowID, v T, isNull bool) {
			if isNull {
				if probeOuter {
					probeNulls = append(probeNulls, r)
				}
				return
			}
			p := partitionOf(v, radixBits)
			probeBuckets[p] = append(probeBuckets[p], keyedRow[T]{key: v, row: r})
		})
		return nil
	})

	buildHashTables := make([]map[T][]rowid.RowID, partitions)
	buildTasks := make([]*task.Task, partitions)
	for p := 0; p < partitions; p++ {
		p := p
		t := task.New("hashjoin.buildPartition", func() error {
			ht := make(map[T][]rowid.RowID, len(buildBuckets[p]))
			for _, kr := range buildBuckets[p] {
				ht[kr.key] = append(ht[kr.key], kr.row)
			}
			buildHashTables[p] = ht
			return nil
		})
		if err := materializeBuild.SetAsPredecessorOf(t); err != nil {
			return nil, nil, err
		}
		buildTasks[p] = t
	}

	sched := scheduler.Default()
	if err := sched.Schedule(materializeBuild); err != nil {
		return nil, nil, err
	}
	if err := sched.Schedule(materializeProbe); err != nil {
		return nil, nil, err
	}
	for _, t := range buildTasks {
		if err := sched.Schedule(t); err != nil {
			return nil, nil, err
		}
	}

	waitAll := append([]*task.Task{materializeProbe}, buildTasks...)
	if err := sched.WaitForTasks(ctx, waitAll...); err != nil {
		return nil, nil, err
	}

	type partitionResult struct {
		build, probe []rowid.RowID
	}
	results := make([]partitionResult, partitions)
	matchedBuild := make([][]bool, partitions)

	probeTasks := make([]*task.Task, partitions)
	for p := 0; p < partitions; p++ {
		p := p
		t := task.New("hashjoin.probePartition", func() error {
			ht := buildHashTables[p]
			matched := make([]bool, len(buildBuckets[p]))
			indexOf := make(map[rowid.RowID]int, len(buildBuckets[p]))
			for i, kr := range buildBuckets[p] {
				indexOf[kr.row] = i
			}

			var outBuild, outProbe []rowid.RowID
			for _, kr := range probeBuckets[p] {
				candidates := ht[kr.key]
				anyMatch := false
				for _, br := range candidates {
					if !additionalPredicatesHold(buildTable, probeTable, additional, br, kr.row) {
						continue
					}
					anyMatch = true
					if mode != operator.Semi && mode != operator.Anti {
						outBuild = append(outBuild, br)
						outProbe = append(outProbe, kr.row)
					}
					if idx, ok := indexOf[br]; ok {
						matched[idx] = true
					}
				}
				switch mode {
				case operator.Semi:
					if anyMatch {
						outProbe = append(outProbe, kr.row)
						outBuild = append(outBuild, rowid.NullRowID)
					}
				case operator.Anti:
					if !anyMatch {
						outProbe = append(outProbe, kr.row)
						outBuild = append(outBuild, rowid.NullRowID)
					}
				default:
					if !anyMatch && probeOuter {
						outProbe = append(outProbe, kr.row)
						outBuild = append(outBuild, rowid.NullRowID)
					}
				}
			}
			results[p] = partitionResult{build: outBuild, probe: outProbe}
			matchedBuild[p] = matched
			return nil
		})
		probeTasks[p] = t
	}
	for _, t := range probeTasks {
		if err := sched.Schedule(t); err != nil {
			return nil, nil, err
		}
	}
	if err := sched.WaitForTasks(ctx, probeTasks...); err != nil {
		return nil, nil, err
	}

	buildPos := poslist.New(0)
	probePos := poslist.New(0)
	for p := 0; p < partitions; p++ {
		for i := range results[p].build {
			buildPos.Append(results[p].build[i])
			probePos.Append(results[p].probe[i])
		}
	}

	if buildOuter {
		for p := 0; p < partitions; p++ {
			for i, kr := range buildBuckets[p] {
				if !matchedBuild[p][i] {
					buildPos.Append(kr.row)
					probePos.AppendNull()
				}
			}
		}
	}

	for _, r := range probeNulls {
		probePos.Append(r)
		buildPos.AppendNull()
	}

	return buildPos, probePos, nil
}

func partitionOf[T segment.Ordered](v T, radixBits int) int {
	if radixBits == 0 {
		return 0
	}
	h := hashOf(v)
	return int(h >> (64 - uint(radixBits)))
}

// forEachRow walks every chunk of table, calling fn with each row's RowID,
// typed value, and null flag for the given column.
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

// additionalPredicatesHold evaluates every extra AND-combined equality
// predicate between a candidate build row and probe row, using the boxed
// Accessor.ValueAt path since additional predicate columns can be of any
// type. Each predicate requires both sides to compare equal under strict
// equality; null never equals null.
func additionalPredicatesHold(buildTable, probeTable *coltable.Table, preds []join.Predicate, buildRow, probeRow rowid.RowID) bool {
	for _, p := range preds {
		bAcc := buildTable.GetChunk(buildRow.Chunk).Column(p.LeftColumn)
		pAcc := probeTable.GetChunk(probeRow.Chunk).Column(p.RightColumn)
		if bAcc.IsNull(int(buildRow.Offset)) || pAcc.IsNull(int(probeRow.Offset)) {
			return false
		}
		if bAcc.ValueAt(int(buildRow.Offset)) != pAcc.ValueAt(int(probeRow.Offset)) {
			return false
		}
	}
	return true
}
