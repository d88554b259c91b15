package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// AverageRows builds a reduced cloud with one point per group: the mean
// position of the group's rows, with color channels averaged, normals
// averaged and renormalized, and the classification decided by majority.
// Every group must be non-empty.
func AverageRows(cloud *PointCloud, groups [][]int) (*PointCloud, error) {
	positions := make([]r3.Vector, len(groups))
	for gi, rows := range groups {
		if len(rows) == 0 {
			return nil, errors.Errorf("group %d has no rows", gi)
		}
		var sum r3.Vector
		for _, r := range rows {
			if r < 0 || r >= cloud.Size() {
				return nil, errors.Errorf("row %d out of range [0,%d)", r, cloud.Size())
			}
			sum = sum.Add(cloud.positions[r])
		}
		positions[gi] = sum.Mul(1. / float64(len(rows)))
	}
	out := NewFromPositions(positions)

	out.colors = Colors{
		Red:   averageGroups(cloud.colors.Red, groups),
		Green: averageGroups(cloud.colors.Green, groups),
		Blue:  averageGroups(cloud.colors.Blue, groups),
		Nir:   averageGroups(cloud.colors.Nir, groups),
	}
	if cloud.normals != nil {
		normals := make([]r3.Vector, len(groups))
		for gi, rows := range groups {
			var sum r3.Vector
			for _, r := range rows {
				sum = sum.Add(cloud.normals[r])
			}
			normals[gi] = sum.Normalize()
		}
		out.normals = normals
	}
	if cloud.classes != nil {
		classes := make([]int, len(groups))
		for gi, rows := range groups {
			classes[gi] = majorityLabel(cloud.classes, rows)
		}
		out.classes = classes
	}
	return out, nil
}

func averageGroups(values []float64, groups [][]int) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(groups))
	for gi, rows := range groups {
		sum := 0.0
		for _, r := range rows {
			sum += values[r]
		}
		out[gi] = sum / float64(len(rows))
	}
	return out
}

// majorityLabel returns the most frequent label among rows, breaking ties
// toward the smallest label.
func majorityLabel(classes []int, rows []int) int {
	counts := make(map[int]int, len(rows))
	for _, r := range rows {
		counts[classes[r]]++
	}
	best, bestCount := 0, -1
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best, bestCount = label, count
		}
	}
	return best
}
