package segment

import "fmt"

// Iterate runs fn over every row of a, passing the typed value and its
// null flag. It type-switches once up front and then runs a tight loop,
// dispatching once per DataType via Go generics instead of a hand-written
// switch per call site.
func Iterate[T Ordered](a Accessor, fn func(i int, v T, isNull bool)) {
	typed := AsTyped[T](a)
	n := typed.Len()
	for i := 0; i < n; i++ {
		if typed.IsNull(i) {
			var zero T
			fn(i, zero, true)
			continue
		}
		fn(i, typed.At(i), false)
	}
}

// MustType panics with a contract-violation message if got != want. The
// join operators do not call it: the sort-merge join checks its column
// types itself and returns an error on a mismatch.
func MustType(name string, got, want DataType) {
	if got != want {
		panic(fmt.Sprintf("segment: %s data type mismatch: got %s, want %s", name, got, want))
	}
}
