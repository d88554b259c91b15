package meshing

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/cloudmesh/pointcloud"
)

func TestDelaunayMesh(t *testing.T) {
	cloud := pointcloud.NewFromPositions([]r3.Vector{
		{X: 0, Y: 0, Z: 0.5},
		{X: 1, Y: 0, Z: 0.2},
		{X: 0, Y: 1, Z: 0.1},
		{X: 1, Y: 1, Z: 0.9},
	})
	test.That(t, cloud.SetColors(pointcloud.Colors{Red: []float64{1, 2, 3, 4}}), test.ShouldBeNil)

	out, err := runMesher(t, "delaunay", &DelaunayParams{}, cloud)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.HasFaces(), test.ShouldBeTrue)
	test.That(t, out.FaceCount(), test.ShouldEqual, 2)

	// Every input point is a vertex and keeps its columns.
	test.That(t, out.Cloud().Size(), test.ShouldEqual, 4)
	colors, err := out.Cloud().Colors()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, colors.Red, test.ShouldResemble, []float64{1, 2, 3, 4})

	faces, err := out.Faces()
	test.That(t, err, test.ShouldBeNil)
	for _, f := range faces {
		for _, v := range f {
			test.That(t, v, test.ShouldBeLessThan, 4)
			test.That(t, v, test.ShouldBeGreaterThanOrEqualTo, 0)
		}
	}
}

func TestDelaunayMeshErrors(t *testing.T) {
	small := pointcloud.NewFromPositions([]r3.Vector{{X: 0}, {X: 1}})
	_, err := runMesher(t, "delaunay", &DelaunayParams{}, small)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot mesh the point cloud")
	test.That(t, err.Error(), test.ShouldContainSubstring, "need at least 3")

	collinear := pointcloud.NewFromPositions([]r3.Vector{
		{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3},
	})
	_, err = runMesher(t, "delaunay", &DelaunayParams{}, collinear)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "collinear")
}

func TestDelaunayParamsValidate(t *testing.T) {
	test.That(t, (&DelaunayParams{}).Validate("steps.0"), test.ShouldBeNil)
}
