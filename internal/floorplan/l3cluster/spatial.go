// Package l3cluster groups projected points into dense clusters and splits
// clusters that bend around a corner.
package l3cluster

import (
	"math"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// EstimatedPointsPerCell is used for initial spatial index capacity estimation.
const EstimatedPointsPerCell = 4

// boundaryTolerance widens distance comparisons by a relative 1e-9 so points
// generated exactly eps apart are not lost to rounding.
const boundaryTolerance = 1e-9

// SpatialIndex provides efficient neighbour queries using a regular grid.
// Cell size should approximately match the query radius.
type SpatialIndex struct {
	CellSize float64
	Grid     map[int64][]int // cell ID → point indices

	points []floorplan.Point2D
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[int64][]int),
	}
}

// Build populates the index from points. The slice is retained, not copied.
func (si *SpatialIndex) Build(points []floorplan.Point2D) {
	si.points = points
	si.Grid = make(map[int64][]int, len(points)/EstimatedPointsPerCell+1)
	for i, p := range points {
		cx, cy := si.cellCoords(p)
		id := cellID(cx, cy)
		si.Grid[id] = append(si.Grid[id], i)
	}
}

func (si *SpatialIndex) cellCoords(p floorplan.Point2D) (int64, int64) {
	return int64(math.Floor(p.X / si.CellSize)), int64(math.Floor(p.Y / si.CellSize))
}

// cellID maps signed cell coordinates to a unique key using zigzag
// encoding followed by Szudzik's pairing function.
func cellID(cellX, cellY int64) int64 {
	a, b := zigzag(cellX), zigzag(cellY)
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

// RegionQuery returns the indices of all points within eps of points[idx],
// including idx itself.
func (si *SpatialIndex) RegionQuery(idx int, eps float64) []int {
	return si.Within(si.points[idx], eps)
}

// Within returns the indices of all indexed points within radius r of p.
// Radii larger than the cell size widen the searched neighbourhood.
func (si *SpatialIndex) Within(p floorplan.Point2D, r float64) []int {
	neighbors := []int{}
	r2 := r * r * (1 + boundaryTolerance)
	ring := int64(1)
	if r > si.CellSize {
		ring = int64(math.Ceil(r / si.CellSize))
	}

	cellX, cellY := si.cellCoords(p)
	for dx := -ring; dx <= ring; dx++ {
		for dy := -ring; dy <= ring; dy++ {
			for _, candidateIdx := range si.Grid[cellID(cellX+dx, cellY+dy)] {
				c := si.points[candidateIdx]
				ddx := c.X - p.X
				ddy := c.Y - p.Y
				if ddx*ddx+ddy*ddy <= r2 {
					neighbors = append(neighbors, candidateIdx)
				}
			}
		}
	}
	return neighbors
}
