package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// VoxelCoords stores voxel coordinates in VoxelGrid axes.
type VoxelCoords struct {
	I, J, K int64
}

type voxelCell struct {
	key  VoxelCoords
	rows []int
}

// VoxelGrid bins the rows of a cloud into cubic cells of a fixed size.
// Cells are indexed in order of first occupancy, so iteration over them is
// deterministic for a given cloud.
type VoxelGrid struct {
	cloud *PointCloud
	size  float64
	min   r3.Vector
	index map[VoxelCoords]int
	cells []voxelCell
}

// NewVoxelGrid bins every row of the cloud into cells of the given edge
// length. The cloud must not be empty.
func NewVoxelGrid(cloud *PointCloud, size float64) (*VoxelGrid, error) {
	if size <= 0 {
		return nil, errors.Errorf("voxel size must be positive, got %v", size)
	}
	min, _, err := cloud.Bounds()
	if err != nil {
		return nil, err
	}
	g := &VoxelGrid{
		cloud: cloud,
		size:  size,
		min:   min,
		index: make(map[VoxelCoords]int),
	}
	for i := 0; i < cloud.Size(); i++ {
		key := g.coordinates(cloud.At(i))
		ci, ok := g.index[key]
		if !ok {
			ci = len(g.cells)
			g.index[key] = ci
			g.cells = append(g.cells, voxelCell{key: key})
		}
		g.cells[ci].rows = append(g.cells[ci].rows, i)
	}
	return g, nil
}

func (g *VoxelGrid) coordinates(p r3.Vector) VoxelCoords {
	d := p.Sub(g.min)
	return VoxelCoords{
		I: int64(math.Floor(d.X / g.size)),
		J: int64(math.Floor(d.Y / g.size)),
		K: int64(math.Floor(d.Z / g.size)),
	}
}

// Len returns the number of occupied cells.
func (g *VoxelGrid) Len() int {
	return len(g.cells)
}

// Rows returns the cloud rows binned into cell i, in row order. The slice
// is shared with the grid, not copied.
func (g *VoxelGrid) Rows(i int) []int {
	return g.cells[i].rows
}

// Centroid returns the mean position of the rows binned into cell i.
func (g *VoxelGrid) Centroid(i int) r3.Vector {
	var sum r3.Vector
	for _, r := range g.cells[i].rows {
		sum = sum.Add(g.cloud.At(r))
	}
	return sum.Mul(1. / float64(len(g.cells[i].rows)))
}

// Reduce collapses every occupied cell to a single averaged point, per
// AverageRows.
func (g *VoxelGrid) Reduce() (*PointCloud, error) {
	groups := make([][]int, len(g.cells))
	for i := range groups {
		groups[i] = g.cells[i].rows
	}
	return AverageRows(g.cloud, groups)
}
