// Package operator defines the uniform capability set every physical
// operator in the execution tree exposes, and the join-mode and
// predicate vocabulary both join operators share.
package operator

import (
	"context"
	"fmt"

	"github.com/dot5enko/colengine/coltable"
)

// Operator is the contract the task framework and join operators share:
// execute, then read the output, deep-copy for prepared-statement reuse,
// and bind parameters. Generalizes the split between a plan-shaped value
// and the code that executes it chunk by chunk into a single uniform
// interface any operator in a tree can satisfy, so operators compose
// into polymorphic trees without a central dispatcher knowing their
// concrete types.
type Operator interface {
	Name() string
	Description(mode JoinMode) string
	Execute(ctx context.Context) error
	GetOutput() *coltable.Table
	DeepCopy() Operator
	SetParameters(params map[string]any)
}

// JoinMode enumerates the supported join semantics.
type JoinMode uint8

const (
	Inner JoinMode = iota
	LeftOuter
	RightOuter
	FullOuter
	Semi
	Anti
	Cross
)

func (m JoinMode) String() string {
	switch m {
	case Inner:
		return "Inner"
	case LeftOuter:
		return "Left"
	case RightOuter:
		return "Right"
	case FullOuter:
		return "Outer"
	case Semi:
		return "Semi"
	case Anti:
		return "Anti"
	case Cross:
		return "Cross"
	default:
		return "Unknown"
	}
}

// PredicateCondition enumerates the comparison predicates a join column
// pair may use.
type PredicateCondition uint8

const (
	Equals PredicateCondition = iota
	NotEquals
	LessThan
	LessThanEquals
	GreaterThan
	GreaterThanEquals
)

func (p PredicateCondition) String() string {
	switch p {
	case Equals:
		return "="
	case NotEquals:
		return "!="
	case LessThan:
		return "<"
	case LessThanEquals:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanEquals:
		return ">="
	default:
		return "?"
	}
}

// Flip returns the predicate that holds when its two operands are
// swapped: a < b becomes b > a, and so on. Used whenever a join swaps
// its build and probe sides, so additional predicates still compare the
// same two columns in the same direction.
func Flip(p PredicateCondition) PredicateCondition {
	switch p {
	case Equals, NotEquals:
		return p
	case LessThan:
		return GreaterThan
	case LessThanEquals:
		return GreaterThanEquals
	case GreaterThan:
		return LessThan
	case GreaterThanEquals:
		return LessThanEquals
	default:
		panic(fmt.Sprintf("operator: unknown predicate condition %d", p))
	}
}
