// Package pointcloud defines a dense point cloud with typed optional
// attribute columns and provides readers and writers for common
// interchange formats.
//
// Positions are mandatory; color channels, normals and classification
// labels are optional columns that, when present, cover every point. The
// presence predicates are computed from the live column set on every call
// so they stay correct as processing steps add or drop columns.
package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PointCloud is an ordered collection of 3-D points. The zero value is not
// usable; construct with New, NewWithPrealloc or NewFromPositions.
type PointCloud struct {
	positions []r3.Vector
	colors    Colors
	normals   []r3.Vector
	classes   []int
}

// New returns an empty PointCloud.
func New() *PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty PointCloud with capacity for size points.
func NewWithPrealloc(size int) *PointCloud {
	return &PointCloud{positions: make([]r3.Vector, 0, size)}
}

// NewFromPositions returns a PointCloud over the given positions. The cloud
// takes ownership of the slice.
func NewFromPositions(positions []r3.Vector) *PointCloud {
	return &PointCloud{positions: positions}
}

// Size returns the number of points in the cloud.
func (cloud *PointCloud) Size() int {
	return len(cloud.positions)
}

// At returns the position of the point at row i.
func (cloud *PointCloud) At(i int) r3.Vector {
	return cloud.positions[i]
}

// Append adds a point to the cloud. Appending is only legal before any
// attribute column is attached, since a present column must cover every
// point.
func (cloud *PointCloud) Append(p r3.Vector) error {
	if cloud.colors.Any() || cloud.normals != nil || cloud.classes != nil {
		return errors.New("cannot append positions once attribute columns are present")
	}
	cloud.positions = append(cloud.positions, p)
	return nil
}

// HasColors reports whether at least one color channel is present.
func (cloud *PointCloud) HasColors() bool {
	return cloud.colors.Any()
}

// HasNormals reports whether the normals column is present.
func (cloud *PointCloud) HasNormals() bool {
	return cloud.normals != nil
}

// HasClasses reports whether the classification column is present.
func (cloud *PointCloud) HasClasses() bool {
	return cloud.classes != nil
}

// SetColors attaches color channels to the cloud. Every non-nil channel
// must have exactly one value per point.
func (cloud *PointCloud) SetColors(c Colors) error {
	if err := c.validate(cloud.Size()); err != nil {
		return err
	}
	cloud.colors = c
	return nil
}

// SetNormals attaches a normals column with one vector per point.
func (cloud *PointCloud) SetNormals(normals []r3.Vector) error {
	if normals != nil && len(normals) != cloud.Size() {
		return errors.Errorf("normals column has %d values, expected %d", len(normals), cloud.Size())
	}
	cloud.normals = normals
	return nil
}

// SetClasses attaches a classification column with one label per point.
func (cloud *PointCloud) SetClasses(classes []int) error {
	if classes != nil && len(classes) != cloud.Size() {
		return errors.Errorf("classification column has %d values, expected %d", len(classes), cloud.Size())
	}
	cloud.classes = classes
	return nil
}

// Colors returns the color channels. It errors when no channel is present;
// callers are expected to check HasColors first. The returned channels are
// shared with the cloud, not copied.
func (cloud *PointCloud) Colors() (Colors, error) {
	if !cloud.HasColors() {
		return Colors{}, errors.New("point cloud has no color channels")
	}
	return cloud.colors, nil
}

// NormalizedColors returns the color channels normalized to [0,1] per
// channel across the whole cloud. A constant channel normalizes to zeros.
func (cloud *PointCloud) NormalizedColors() (Colors, error) {
	c, err := cloud.Colors()
	if err != nil {
		return Colors{}, err
	}
	return c.Normalized(), nil
}

// Normals returns the normals column. It errors when absent. The returned
// slice is shared with the cloud, not copied.
func (cloud *PointCloud) Normals() ([]r3.Vector, error) {
	if !cloud.HasNormals() {
		return nil, errors.New("point cloud has no normals")
	}
	return cloud.normals, nil
}

// Classes returns the classification column. It errors when absent. The
// returned slice is shared with the cloud, not copied.
func (cloud *PointCloud) Classes() ([]int, error) {
	if !cloud.HasClasses() {
		return nil, errors.New("point cloud has no classification labels")
	}
	return cloud.classes, nil
}

// Select returns a new cloud built from the rows at the given indices, in
// order, carrying every present attribute column with it.
func (cloud *PointCloud) Select(rows []int) (*PointCloud, error) {
	positions := make([]r3.Vector, len(rows))
	for i, r := range rows {
		if r < 0 || r >= cloud.Size() {
			return nil, errors.Errorf("row %d out of range [0,%d)", r, cloud.Size())
		}
		positions[i] = cloud.positions[r]
	}
	out := NewFromPositions(positions)
	out.colors = cloud.colors.selectRows(rows)
	if cloud.normals != nil {
		normals := make([]r3.Vector, len(rows))
		for i, r := range rows {
			normals[i] = cloud.normals[r]
		}
		out.normals = normals
	}
	if cloud.classes != nil {
		classes := make([]int, len(rows))
		for i, r := range rows {
			classes[i] = cloud.classes[r]
		}
		out.classes = classes
	}
	return out, nil
}

// Bounds returns the axis-aligned min and max corners of the cloud,
// computed on demand.
func (cloud *PointCloud) Bounds() (r3.Vector, r3.Vector, error) {
	if cloud.Size() == 0 {
		return r3.Vector{}, r3.Vector{}, errors.New("empty point cloud has no bounds")
	}
	min, max := cloud.positions[0], cloud.positions[0]
	for _, p := range cloud.positions[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.Z < min.Z {
			min.Z = p.Z
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
		if p.Z > max.Z {
			max.Z = p.Z
		}
	}
	return min, max, nil
}
