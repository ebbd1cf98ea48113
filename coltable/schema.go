// Package coltable implements the table/chunk abstraction the join
// operators read from and write to: an ordered sequence of fixed-capacity
// chunks, one segment per column per chunk, behind an immutable schema.
package coltable

import (
	"github.com/google/uuid"

	"github.com/dot5enko/colengine/segment"
)

// Column is one entry of a table's immutable schema.
type Column struct {
	Name     string
	Type     segment.DataType
	Nullable bool
}

// Schema is the immutable, ordered column list shared by every chunk of a
// table. The UUID identity lets a table/schema be referenced stably
// independent of its in-memory address, e.g. across a DeepCopy.
type Schema struct {
	UID     uuid.UUID
	Columns []Column
}

// NewSchema builds a schema with a fresh stable identity.
func NewSchema(columns []Column) Schema {
	return Schema{UID: uuid.New(), Columns: columns}
}

func (s Schema) ColumnCount() int { return len(s.Columns) }

func (s Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
