package hashjoin

import (
	"context"
	"testing"

	"github.com/dot5enko/colengine/coltable"
	"github.com/dot5enko/colengine/join"
	"github.com/dot5enko/colengine/operator"
	"github.com/dot5enko/colengine/rowid"
	"github.com/dot5enko/colengine/segment"
)

// staticOperator wraps a pre-built table as a leaf operator, standing in
// for a scan/filter operator beneath a join in these tests.
type staticOperator struct {
	table *coltable.Table
}

func lit(t *coltable.Table) operator.Operator { return &staticOperator{table: t} }

func (s *staticOperator) Name() string                         { return "Static" }
func (s *staticOperator) Description(operator.JoinMode) string { return "Static" }
func (s *staticOperator) Execute(context.Context) error        { return nil }
func (s *staticOperator) GetOutput() *coltable.Table            { return s.table }
func (s *staticOperator) DeepCopy() operator.Operator           { return &staticOperator{table: s.table} }
func (s *staticOperator) SetParameters(map[string]any)          {}

func keyLabelTable(keys []int64, labels []string) *coltable.Table {
	schema := coltable.NewSchema([]coltable.Column{
		{Name: "k", Type: segment.Int64},
		{Name: "label", Type: segment.String},
	})
	tbl := coltable.New(schema, coltable.Data)
	kSeg := segment.NewValueSegment(segment.Int64, keys, segment.NewBitmap(len(keys)))
	lSeg := segment.NewValueSegment(segment.String, labels, segment.NewBitmap(len(labels)))
	tbl.AddChunk(coltable.NewChunk(0, []segment.Accessor{kSeg, lSeg}))
	return tbl
}

func keyOnlyTable(keys []int64) *coltable.Table {
	schema := coltable.NewSchema([]coltable.Column{{Name: "k", Type: segment.Int64}})
	tbl := coltable.New(schema, coltable.Data)
	kSeg := segment.NewValueSegment(segment.Int64, keys, segment.NewBitmap(len(keys)))
	tbl.AddChunk(coltable.NewChunk(0, []segment.Accessor{kSeg}))
	return tbl
}

func valueAt(t *coltable.Table, chunk rowid.ChunkID, col, row int) any {
	return t.GetChunk(chunk).Column(col).ValueAt(row)
}

// collectRows reads every row of a join's output table as a slice of
// per-column values, in row order, for assertions against expected
// scenario output.
func collectRows(out *coltable.Table) [][]any {
	var rows [][]any
	for c := 0; c < out.ChunkCount(); c++ {
		chunk := out.GetChunk(rowid.ChunkID(c))
		for r := 0; r < chunk.RowCount(); r++ {
			row := make([]any, out.ColumnCount())
			for col := 0; col < out.ColumnCount(); col++ {
				row[col] = chunk.Column(col).ValueAt(r)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func TestInnerEquiSwapSuppressed(t *testing.T) {
	l := keyLabelTable([]int64{1, 2}, []string{"a", "b"})
	r := keyLabelTable([]int64{2, 2, 3}, []string{"x", "y", "z"})

	hj, err := New(lit(l), lit(r), operator.Inner, 0, 0, operator.Equals, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := hj.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows := collectRows(hj.GetOutput())
	want := [][]any{
		{int64(2), "b", int64(2), "x"},
		{int64(2), "b", int64(2), "y"},
	}
	assertRowsEqual(t, rows, want)
}

func TestLeftOuter(t *testing.T) {
	l := keyLabelTable([]int64{1, 2}, []string{"a", "b"})
	r := keyLabelTable([]int64{2, 2, 3}, []string{"x", "y", "z"})

	hj, err := New(lit(l), lit(r), operator.LeftOuter, 0, 0, operator.Equals, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := hj.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows := collectRows(hj.GetOutput())
	want := [][]any{
		{int64(1), "a", nil, nil},
		{int64(2), "b", int64(2), "x"},
		{int64(2), "b", int64(2), "y"},
	}
	assertRowsEqual(t, rows, want)
}

func TestSemi(t *testing.T) {
	l := keyOnlyTable([]int64{1, 2, 3})
	r := keyOnlyTable([]int64{2, 3, 3, 4})

	hj, err := New(lit(l), lit(r), operator.Semi, 0, 0, operator.Equals, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := hj.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows := collectRows(hj.GetOutput())
	want := [][]any{{int64(2)}, {int64(3)}}
	assertRowsEqual(t, rows, want)
}

func TestAnti(t *testing.T) {
	l := keyOnlyTable([]int64{1, 2, 3})
	r := keyOnlyTable([]int64{2, 3, 3, 4})

	hj, err := New(lit(l), lit(r), operator.Anti, 0, 0, operator.Equals, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := hj.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows := collectRows(hj.GetOutput())
	want := [][]any{{int64(1)}}
	assertRowsEqual(t, rows, want)
}

func TestAntiAndSemiPartitionLeftExactly(t *testing.T) {
	l := keyOnlyTable([]int64{10, 20, 30, 40, 50})
	r := keyOnlyTable([]int64{20, 40})

	semi, err := New(lit(l), lit(r), operator.Semi, 0, 0, operator.Equals, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	anti, err := New(lit(l), lit(r), operator.Anti, 0, 0, operator.Equals, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := semi.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := anti.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	semiRows := collectRows(semi.GetOutput())
	antiRows := collectRows(anti.GetOutput())
	if len(semiRows)+len(antiRows) != 5 {
		t.Fatalf("expected |semi|+|anti| == |L| == 5, got %d + %d", len(semiRows), len(antiRows))
	}
}

func TestCrossIsRejected(t *testing.T) {
	l := keyOnlyTable([]int64{1})
	r := keyOnlyTable([]int64{1})
	if _, err := New(lit(l), lit(r), operator.Cross, 0, 0, operator.Equals, nil, nil); err == nil {
		t.Fatal("expected Cross to be rejected")
	}
}

func TestAdditionalPredicateFiltersCandidates(t *testing.T) {
	lSchema := coltable.NewSchema([]coltable.Column{
		{Name: "k", Type: segment.Int64}, {Name: "tag", Type: segment.Int64},
	})
	l := coltable.New(lSchema, coltable.Data)
	l.AddChunk(coltable.NewChunk(0, []segment.Accessor{
		segment.NewValueSegment(segment.Int64, []int64{1, 1}, segment.NewBitmap(2)),
		segment.NewValueSegment(segment.Int64, []int64{100, 200}, segment.NewBitmap(2)),
	}))

	rSchema := coltable.NewSchema([]coltable.Column{
		{Name: "k", Type: segment.Int64}, {Name: "tag", Type: segment.Int64},
	})
	r := coltable.New(rSchema, coltable.Data)
	r.AddChunk(coltable.NewChunk(0, []segment.Accessor{
		segment.NewValueSegment(segment.Int64, []int64{1, 1}, segment.NewBitmap(2)),
		segment.NewValueSegment(segment.Int64, []int64{200, 300}, segment.NewBitmap(2)),
	}))

	hj, err := New(lit(l), lit(r), operator.Inner, 0, 0, operator.Equals, nil, []join.Predicate{
		{LeftColumn: 1, RightColumn: 1, Condition: operator.Equals},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := hj.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows := collectRows(hj.GetOutput())
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 matching row, got %d: %v", len(rows), rows)
	}
	if rows[0][1] != int64(200) || rows[0][3] != int64(200) {
		t.Fatalf("expected the tag=200 pair, got %v", rows[0])
	}
}

func assertRowsEqual(t *testing.T, got, want [][]any) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d rows %v, want %d rows %v", len(got), got, len(want), want)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("row %d: got %v, want %v", i, got[i], want[i])
		}
		for c := range want[i] {
			if got[i][c] != want[i][c] {
				t.Fatalf("row %d col %d: got %v, want %v", i, c, got[i][c], want[i][c])
			}
		}
	}
}
