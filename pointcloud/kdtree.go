package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// treePoint is one cloud row lifted into the k-d tree.
type treePoint struct {
	pos r3.Vector
	row int
}

func (p treePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(treePoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	default:
		return p.pos.Z - q.pos.Z
	}
}

func (p treePoint) Dims() int { return 3 }

func (p treePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(treePoint)
	return p.pos.Sub(q.pos).Norm2()
}

// treePoints implements kdtree.Interface over cloud rows.
type treePoints []treePoint

func (p treePoints) Index(i int) kdtree.Comparable { return p[i] }

func (p treePoints) Len() int { return len(p) }

func (p treePoints) Pivot(d kdtree.Dim) int {
	return plane{treePoints: p, Dim: d}.Pivot()
}

func (p treePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts treePoints along one dimension for pivot selection.
type plane struct {
	kdtree.Dim
	treePoints
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.treePoints[i].pos.X < p.treePoints[j].pos.X
	case 1:
		return p.treePoints[i].pos.Y < p.treePoints[j].pos.Y
	default:
		return p.treePoints[i].pos.Z < p.treePoints[j].pos.Z
	}
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.treePoints = p.treePoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.treePoints[i], p.treePoints[j] = p.treePoints[j], p.treePoints[i]
}

// KDTree answers nearest-neighbor and radius queries over the rows of one
// cloud. The tree indexes the cloud's state at construction time; rebuild
// after the cloud is replaced.
type KDTree struct {
	tree *kdtree.Tree
}

// NewKDTree builds a k-d tree over every row of the cloud.
func NewKDTree(cloud *PointCloud) *KDTree {
	pts := make(treePoints, cloud.Size())
	for i := 0; i < cloud.Size(); i++ {
		pts[i] = treePoint{pos: cloud.At(i), row: i}
	}
	return &KDTree{tree: kdtree.New(pts, false)}
}

// Neighbor is one query result: a cloud row and its Euclidean distance to
// the query position.
type Neighbor struct {
	Row      int
	Distance float64
}

// KNearest returns up to k rows nearest to pos, sorted by ascending
// distance with row index as the tie break. A query from a stored position
// includes that row at distance zero.
func (t *KDTree) KNearest(pos r3.Vector, k int) []Neighbor {
	if k <= 0 {
		return nil
	}
	keep := kdtree.NewNKeeper(k)
	t.tree.NearestSet(keep, treePoint{pos: pos, row: -1})
	return collectNeighbors(keep.Heap)
}

// RadiusSearch returns every row within radius of pos, sorted by ascending
// distance with row index as the tie break.
func (t *KDTree) RadiusSearch(pos r3.Vector, radius float64) []Neighbor {
	keep := kdtree.NewDistKeeper(radius * radius)
	t.tree.NearestSet(keep, treePoint{pos: pos, row: -1})
	return collectNeighbors(keep.Heap)
}

func collectNeighbors(heap []kdtree.ComparableDist) []Neighbor {
	out := make([]Neighbor, 0, len(heap))
	for _, c := range heap {
		if c.Comparable == nil {
			continue
		}
		tp := c.Comparable.(treePoint)
		out = append(out, Neighbor{Row: tp.row, Distance: math.Sqrt(c.Dist)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Row < out[j].Row
	})
	return out
}
