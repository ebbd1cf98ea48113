package segment

import "testing"

func TestEqualIndices(t *testing.T) {
	arr := []int64{1, 5, 5, 2, 5, 9}
	out := make([]int, len(arr))

	n := EqualIndices(arr, int64(5), out)
	if n != 3 {
		t.Fatalf("expected 3 matches, got %d", n)
	}
	want := []int{1, 2, 4}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("match %d: expected index %d, got %d", i, w, out[i])
		}
	}
}

func TestGreaterLessIndices(t *testing.T) {
	arr := []float64{1, 8, 3, 9, 0}
	out := make([]int, len(arr))

	n := GreaterIndices(arr, 3.0, out)
	if n != 2 || out[0] != 1 || out[1] != 3 {
		t.Errorf("unexpected greater-than result: n=%d out=%v", n, out[:n])
	}

	n = LessIndices(arr, 3.0, out)
	if n != 2 || out[0] != 0 || out[1] != 4 {
		t.Errorf("unexpected less-than result: n=%d out=%v", n, out[:n])
	}
}
