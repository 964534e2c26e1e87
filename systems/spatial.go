package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
)

// Neighbor is an entity found by a radius query.
type Neighbor struct {
	E    ecs.Entity
	Pos  components.Position
	Dist float32
}

type gridEntry struct {
	e   ecs.Entity
	pos components.Position
}

// SpatialGrid buckets entities into square cells for radius queries over
// a bounded world. Positions outside the bounds land in the edge cells.
type SpatialGrid struct {
	cellSize float32
	cols     int
	rows     int
	cells    [][]gridEntry
}

// NewSpatialGrid creates a grid covering width x height.
func NewSpatialGrid(width, height, cellSize float32) *SpatialGrid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]gridEntry, cols*rows)
	for i := range cells {
		cells[i] = make([]gridEntry, 0, 4)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    cells,
	}
}

// Clear empties every cell, keeping capacity.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert records e at pos.
func (g *SpatialGrid) Insert(e ecs.Entity, pos components.Position) {
	col, row := g.cell(pos.X, pos.Y)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], gridEntry{e, pos})
}

// QueryRadiusInto appends every entity within radius of pos to dst,
// skipping exclude. Results are in cell order, not sorted by distance.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, pos components.Position, radius float32, exclude ecs.Entity) []Neighbor {
	minCol, minRow := g.cell(pos.X-radius, pos.Y-radius)
	maxCol, maxRow := g.cell(pos.X+radius, pos.Y+radius)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, entry := range g.cells[row*g.cols+col] {
				if entry.e == exclude {
					continue
				}
				if d := pos.DistanceTo(entry.pos); d <= radius {
					dst = append(dst, Neighbor{E: entry.e, Pos: entry.pos, Dist: d})
				}
			}
		}
	}
	return dst
}

// cell returns the clamped column and row for a world position.
func (g *SpatialGrid) cell(x, y float32) (int, int) {
	col := int(x / g.cellSize)
	row := int(y / g.cellSize)
	if x < 0 {
		col = 0
	}
	if y < 0 {
		row = 0
	}
	return min(col, g.cols-1), min(row, g.rows-1)
}
