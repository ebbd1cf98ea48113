package segment

import "testing"

func TestValueSegmentNulls(t *testing.T) {
	nulls := NewBitmap(4)
	nulls.Set(1)

	v := NewValueSegment(Int64, []int64{10, 20, 30, 40}, nulls)

	if v.Len() != 4 {
		t.Fatalf("expected len 4, got %d", v.Len())
	}
	if v.IsNull(1) != true {
		t.Errorf("expected row 1 to be null")
	}
	if v.IsNull(0) {
		t.Errorf("expected row 0 to not be null")
	}
	if v.At(2) != 30 {
		t.Errorf("expected value 30 at row 2, got %v", v.At(2))
	}
	if v.ValueAt(1) != nil {
		t.Errorf("expected ValueAt on null row to return nil")
	}
}

func TestDictionarySegment(t *testing.T) {
	dict := []string{"a", "b", "c"}
	indices := []uint32{2, 0, 1, 2}

	d := NewDictionarySegment(String, dict, indices, NewBitmap(len(indices)))

	want := []string{"c", "a", "b", "c"}
	for i, w := range want {
		if got := d.At(i); got != w {
			t.Errorf("row %d: expected %q got %q", i, w, got)
		}
	}
}

func TestAsTypedPanicsOnMismatch(t *testing.T) {
	v := NewValueSegment(Int64, []int64{1, 2}, NewBitmap(2))

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on type mismatch")
		}
	}()

	AsTyped[string](v)
}

func TestIterateFlagsNullValue(t *testing.T) {
	nulls := NewBitmap(3)
	nulls.Set(1)
	v := NewValueSegment(Uint64, []uint64{1, 2, 3}, nulls)

	var seen []uint64
	var nullSeen []bool
	Iterate[uint64](v, func(i int, val uint64, isNull bool) {
		seen = append(seen, val)
		nullSeen = append(nullSeen, isNull)
	})

	if len(seen) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(seen))
	}
	if !nullSeen[1] {
		t.Errorf("expected row 1 flagged null")
	}
}
