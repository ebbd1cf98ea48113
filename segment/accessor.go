package segment

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Ordered is the set of Go types a segment may hold:
// golang.org/x/exp/constraints.Ordered, which covers strings as well as
// the integer and floating-point types.
type Ordered interface {
	constraints.Ordered
}

// Accessor is the typed-random-access-and-typed-iteration contract every
// segment variant satisfies, independent of its storage strategy. Callers
// that need to avoid boxing use TypedAccessor[T] via AsTyped.
type Accessor interface {
	DataType() DataType
	Variant() Variant
	Len() int
	IsNull(i int) bool
	ValueAt(i int) any
}

// TypedAccessor is the generic, box-free counterpart of Accessor, used by
// join code that already knows the concrete element type from the join
// column's schema entry.
type TypedAccessor[T Ordered] interface {
	Accessor
	At(i int) T
}

// ValueSegment is a dense array of T with an optional null bitmap. The
// build side of a hash join never keeps nulls (spec: "materialize discards
// nulls"), so nulls only matter for probe-side / sort-merge outer paths.
type ValueSegment[T Ordered] struct {
	typ    DataType
	values []T
	nulls  *Bitmap // nil means "no nulls in this segment"
}

func NewValueSegment[T Ordered](typ DataType, values []T, nulls *Bitmap) *ValueSegment[T] {
	return &ValueSegment[T]{typ: typ, values: values, nulls: nulls}
}

func (v *ValueSegment[T]) DataType() DataType { return v.typ }
func (v *ValueSegment[T]) Variant() Variant   { return ValueVariant }
func (v *ValueSegment[T]) Len() int           { return len(v.values) }
func (v *ValueSegment[T]) IsNull(i int) bool  { return v.nulls.Get(i) }
func (v *ValueSegment[T]) At(i int) T         { return v.values[i] }
func (v *ValueSegment[T]) ValueAt(i int) any {
	if v.IsNull(i) {
		return nil
	}
	return v.values[i]
}

// DictionarySegment stores a sorted dictionary plus an attribute vector of
// dictionary indices, keyed by an explicit dictionary rather than a raw
// byte block.
type DictionarySegment[T Ordered] struct {
	typ     DataType
	dict    []T
	indices []uint32
	nulls   *Bitmap
}

func NewDictionarySegment[T Ordered](typ DataType, dict []T, indices []uint32, nulls *Bitmap) *DictionarySegment[T] {
	return &DictionarySegment[T]{typ: typ, dict: dict, indices: indices, nulls: nulls}
}

func (d *DictionarySegment[T]) DataType() DataType { return d.typ }
func (d *DictionarySegment[T]) Variant() Variant   { return DictionaryVariant }
func (d *DictionarySegment[T]) Len() int           { return len(d.indices) }
func (d *DictionarySegment[T]) IsNull(i int) bool  { return d.nulls.Get(i) }
func (d *DictionarySegment[T]) At(i int) T         { return d.dict[d.indices[i]] }
func (d *DictionarySegment[T]) ValueAt(i int) any {
	if d.IsNull(i) {
		return nil
	}
	return d.dict[d.indices[i]]
}

// AsTyped type-asserts a generic Accessor down to its TypedAccessor[T]
// form. Contract violation (panic) if the caller's assumed T doesn't
// match the segment's actual backing type — join code always derives T
// from the same schema entry that produced the Accessor, so a mismatch
// here means upstream schema bookkeeping is broken.
func AsTyped[T Ordered](a Accessor) TypedAccessor[T] {
	typed, ok := a.(TypedAccessor[T])
	if !ok {
		panic(fmt.Sprintf("segment: accessor of type %s is not backed by the requested Go type", a.DataType()))
	}
	return typed
}
