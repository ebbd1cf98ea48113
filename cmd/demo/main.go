package main

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/dot5enko/colengine/coltable"
	"github.com/dot5enko/colengine/join"
	"github.com/dot5enko/colengine/join/hashjoin"
	"github.com/dot5enko/colengine/join/sortmerge"
	"github.com/dot5enko/colengine/operator"
	"github.com/dot5enko/colengine/rowid"
	"github.com/dot5enko/colengine/scheduler"
	"github.com/dot5enko/colengine/segment"
)

func testCycles(n int, label string, testSize int, cb func()) {
	before := time.Now()
	for i := 0; i < n; i++ {
		cb()
	}
	after := time.Since(before)
	perCycle := after.Nanoseconds() / int64(testSize)
	log.Printf(" %s per element : %d ns", label, perCycle)
}

func genKeyTable(size int, mod int64) *coltable.Table {
	keys := make([]int64, size)
	for i := range keys {
		keys[i] = rand.Int63n(mod)
	}

	schema := coltable.NewSchema([]coltable.Column{{Name: "k", Type: segment.Int64}})
	tbl := coltable.New(schema, coltable.Data)

	for start := 0; start < size; start += coltable.ChunkCapacity {
		end := start + coltable.ChunkCapacity
		if end > size {
			end = size
		}
		chunkKeys := keys[start:end]
		seg := segment.NewValueSegment(segment.Int64, chunkKeys, segment.NewBitmap(len(chunkKeys)))
		tbl.AddChunk(coltable.NewChunk(rowid.ChunkID(tbl.ChunkCount()), []segment.Accessor{seg}))
	}
	return tbl
}

// leafOperator wraps a pre-built table as a scan leaf beneath a join,
// standing in for the storage-manager scan this engine's core does not
// implement.
type leafOperator struct {
	table *coltable.Table
}

func (l *leafOperator) Name() string                         { return "Scan" }
func (l *leafOperator) Description(operator.JoinMode) string { return "Scan" }
func (l *leafOperator) Execute(context.Context) error        { return nil }
func (l *leafOperator) GetOutput() *coltable.Table            { return l.table }
func (l *leafOperator) DeepCopy() operator.Operator           { return &leafOperator{table: l.table} }
func (l *leafOperator) SetParameters(map[string]any)          {}

func main() {
	sched := scheduler.Default()
	defer scheduler.ResetDefault()

	log.Printf("scheduler started with %d workers", sched.WorkerCount())

	const leftSize = 120_000
	const rightSize = 90_000
	left := genKeyTable(leftSize, 50_000)
	right := genKeyTable(rightSize, 50_000)

	log.Printf("materialized left=%d rows, right=%d rows", left.RowCount(), right.RowCount())

	testCycles(1, "hash join", leftSize+rightSize, func() {
		hj, err := hashjoin.New(&leafOperator{table: left}, &leafOperator{table: right}, operator.Inner, 0, 0, operator.Equals, nil, nil)
		if err != nil {
			panic(err)
		}
		if err := hj.Execute(context.Background()); err != nil {
			panic(err)
		}
		log.Printf("hash join: %d rows, %d output chunks", hj.GetOutput().RowCount(), hj.GetOutput().ChunkCount())
	})

	testCycles(1, "sort-merge join", leftSize+rightSize, func() {
		sm, err := sortmerge.New(&leafOperator{table: left}, &leafOperator{table: right}, operator.Inner, 0, 0, operator.Equals, nil, nil)
		if err != nil {
			panic(err)
		}
		if err := sm.Execute(context.Background()); err != nil {
			panic(err)
		}
		log.Printf("sort-merge join: %d rows, %d output chunks", sm.GetOutput().RowCount(), sm.GetOutput().ChunkCount())
	})

	smallLeft := genKeyTable(2_000, 500)
	smallRight := genKeyTable(1_500, 500)
	anti, err := hashjoin.New(&leafOperator{table: smallLeft}, &leafOperator{table: smallRight}, operator.Anti, 0, 0, operator.Equals, nil, []join.Predicate{})
	if err != nil {
		panic(err)
	}
	if err := anti.Execute(context.Background()); err != nil {
		panic(err)
	}
	log.Printf("anti join: %d of %d left rows have no match on the right", anti.GetOutput().RowCount(), smallLeft.RowCount())
}
