package filter

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/cloudmesh/pointcloud"
)

func TestVoxelFilter(t *testing.T) {
	cloud := pointcloud.NewFromPositions([]r3.Vector{
		{X: 0.25, Y: 0.25, Z: 0},
		{X: 0.75, Y: 0.75, Z: 0},
		{X: 3.5, Y: 0.5, Z: 0},
	})
	test.That(t, cloud.SetColors(pointcloud.Colors{
		Red: []float64{100, 200, 40},
	}), test.ShouldBeNil)
	test.That(t, cloud.SetClasses([]int{2, 2, 5}), test.ShouldBeNil)

	out := runFilter(t, "voxel", &VoxelParams{VoxelSize: 1}, cloud)
	test.That(t, out.Size(), test.ShouldEqual, 2)
	test.That(t, out.At(0).X, test.ShouldAlmostEqual, 0.5)
	test.That(t, out.At(0).Y, test.ShouldAlmostEqual, 0.5)
	test.That(t, out.At(1), test.ShouldResemble, r3.Vector{X: 3.5, Y: 0.5, Z: 0})

	colors, err := out.Colors()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, colors.Red, test.ShouldResemble, []float64{150, 40})
	test.That(t, colors.Green, test.ShouldBeNil)

	classes, err := out.Classes()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, classes, test.ShouldResemble, []int{2, 5})
}

func TestVoxelFilterNormals(t *testing.T) {
	cloud := pointcloud.NewFromPositions([]r3.Vector{
		{X: 0.2, Y: 0.2, Z: 0.2},
		{X: 0.8, Y: 0.8, Z: 0.2},
	})
	test.That(t, cloud.SetNormals([]r3.Vector{
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
	}), test.ShouldBeNil)

	out := runFilter(t, "voxel", &VoxelParams{VoxelSize: 1}, cloud)
	test.That(t, out.Size(), test.ShouldEqual, 1)
	normals, err := out.Normals()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, normals[0].X, test.ShouldAlmostEqual, math.Sqrt2/2)
	test.That(t, normals[0].Y, test.ShouldAlmostEqual, math.Sqrt2/2)
	test.That(t, normals[0].Z, test.ShouldAlmostEqual, 0)
}

func TestVoxelParamsValidate(t *testing.T) {
	err := (&VoxelParams{VoxelSize: 0}).Validate("steps.2")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "voxel_size must be positive")
	test.That(t, (&VoxelParams{VoxelSize: 0.5}).Validate("steps.2"), test.ShouldBeNil)
}
