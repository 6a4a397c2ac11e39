package ecs

import (
	"slices"

	"github.com/argus-labs/gecs/pkg/assert"
)

// columnFactory is a function that creates a new abstractColumn instance.
type columnFactory func(capacity int) abstractColumn

// abstractColumn is the type-erased view of a column used by group storage.
type abstractColumn interface {
	len() int
	name() string
	extend()
	extendN(n int)
	remove(row int)
	copyRow(src abstractColumn, from, to int)
	appendAll(src abstractColumn)
	truncate()
	reserve(n int)
}

var _ abstractColumn = &column[Component]{}

// column stores one component of every entity in a group. Its length always matches the group's
// row count.
type column[T Component] struct {
	compName   string // The name of the component stored in this column
	components []T    // Component data, indexed by EntityID
}

func newColumn[T Component](capacity int) column[T] {
	var zero T
	return column[T]{
		compName:   zero.Name(),
		components: make([]T, 0, capacity),
	}
}

// newColumnFactory returns a function that constructs a new column of type T.
func newColumnFactory[T Component]() columnFactory {
	return func(capacity int) abstractColumn {
		col := newColumn[T](capacity)
		return &col
	}
}

func (c *column[T]) len() int {
	return len(c.components)
}

func (c *column[T]) name() string {
	return c.compName
}

// extend appends a zero value.
func (c *column[T]) extend() {
	var zero T
	c.components = append(c.components, zero)
}

// extendN appends n zero values.
func (c *column[T]) extendN(n int) {
	c.components = slices.Grow(c.components, n)
	c.components = c.components[:len(c.components)+n]
	clear(c.components[len(c.components)-n:])
}

// remove swaps the last value into row and truncates. The vacated slot is zeroed so it doesn't
// keep references alive.
func (c *column[T]) remove(row int) {
	assert.That(row < len(c.components), "tried to remove component that doesn't exist")

	lastIndex := len(c.components) - 1
	c.components[row] = c.components[lastIndex]

	var zero T
	c.components[lastIndex] = zero
	c.components = c.components[:lastIndex]
}

// copyRow copies src[from] into c[to]. Both columns must store the same component.
func (c *column[T]) copyRow(src abstractColumn, from, to int) {
	other, ok := src.(*column[T])
	assert.That(ok, "tried to copy between columns of different component types")
	assert.That(to < len(c.components), "destination row doesn't exist")
	c.components[to] = other.components[from]
}

// appendAll appends every value of src.
func (c *column[T]) appendAll(src abstractColumn) {
	other, ok := src.(*column[T])
	assert.That(ok, "tried to append columns of different component types")
	c.components = append(c.components, other.components...)
}

// truncate drops every value and keeps the capacity.
func (c *column[T]) truncate() {
	clear(c.components)
	c.components = c.components[:0]
}

func (c *column[T]) reserve(n int) {
	c.components = slices.Grow(c.components, n)
}
