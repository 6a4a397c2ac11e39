package ecs

import (
	"github.com/argus-labs/gecs/pkg/assert"
	"github.com/kelindar/bitmap"
)

// group is the columnar storage of one exclusive group. Every entity in a group carries the same
// components. Columns are ordered by component id.
type group struct {
	id         GroupID
	name       string
	components bitmap.Bitmap    // Component ids carried by this group
	tags       bitmap.Bitmap    // Tag ids attached with Database.TagGroup
	compIDs    []componentID    // Component id of each column
	columns    []abstractColumn // Component data, index aligned with compIDs
	count      int              // Number of rows
}

func newGroup(id GroupID, name string, compIDs []componentID, columns []abstractColumn) *group {
	assert.That(len(compIDs) == len(columns), "mismatched number of columns and components")

	var components bitmap.Bitmap
	for _, cid := range compIDs {
		components.Set(cid)
	}
	assert.That(components.Count() == len(columns), "duplicate component in group layout")

	return &group{
		id:         id,
		name:       name,
		components: components,
		compIDs:    compIDs,
		columns:    columns,
		count:      0,
	}
}

// column returns the column storing cid.
func (g *group) column(cid componentID) (abstractColumn, bool) {
	for i, id := range g.compIDs {
		if id == cid {
			return g.columns[i], true
		}
	}
	return nil, false
}

// has returns true if the group carries cid.
func (g *group) has(cid componentID) bool {
	return g.components.Contains(cid)
}

// newRow appends a row with zero-valued components and returns its index.
func (g *group) newRow() int {
	for _, col := range g.columns {
		col.extend()
	}
	g.count++
	g.assertAligned()
	return g.count - 1
}

// swapRemove removes row by moving the last row into its place. Returns the index of the row that
// was moved, which equals row when row was the last one.
func (g *group) swapRemove(row int) int {
	assert.That(row < g.count, "tried to remove a row that doesn't exist")

	last := g.count - 1
	for _, col := range g.columns {
		col.remove(row)
	}
	g.count--
	g.assertAligned()
	return last
}

// moveRow moves row into dst. Components both groups carry are copied, the others are zero in dst
// and dropped from g. Returns the new row in dst and the row of g compacted into row.
func (g *group) moveRow(dst *group, row int) (int, int) {
	assert.That(g != dst, "tried to move a row into its own group")
	assert.That(row < g.count, "tried to move a row that doesn't exist")

	newRow := dst.newRow()
	for i, cid := range dst.compIDs {
		if src, ok := g.column(cid); ok {
			dst.columns[i].copyRow(src, row, newRow)
		}
	}
	return newRow, g.swapRemove(row)
}

// moveAll appends every row of g to dst, in row order, and empties g. Returns the row in dst of
// g's first row.
func (g *group) moveAll(dst *group) int {
	assert.That(g != dst, "tried to move a group into itself")

	base := dst.count
	for i, cid := range dst.compIDs {
		if src, ok := g.column(cid); ok {
			dst.columns[i].appendAll(src)
		} else {
			dst.columns[i].extendN(g.count)
		}
	}
	dst.count += g.count
	dst.assertAligned()

	g.clear()
	return base
}

// clear drops every row.
func (g *group) clear() {
	for _, col := range g.columns {
		col.truncate()
	}
	g.count = 0
}

// reserve makes room for n more rows.
func (g *group) reserve(n int) {
	for _, col := range g.columns {
		col.reserve(n)
	}
}

func (g *group) assertAligned() {
	if !assert.Enabled {
		return
	}
	for _, col := range g.columns {
		assert.That(col.len() == g.count, "column length doesn't match group row count")
	}
}
