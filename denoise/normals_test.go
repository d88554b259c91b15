package denoise

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
	"go.viam.com/cloudmesh/pointcloud"
)

func testEnv(t *testing.T) pipeline.Env {
	t.Helper()
	return pipeline.Env{Logger: golog.NewTestLogger(t), OutputDir: t.TempDir()}
}

func runDenoise(t *testing.T, method string, params pipeline.Params, cloud *pointcloud.PointCloud) *pointcloud.PointCloud {
	t.Helper()
	step, ok := pipeline.LookupStep(pipeline.ActionDenoise, method)
	test.That(t, ok, test.ShouldBeTrue)
	out, err := step.Run(context.Background(), mesh.New(cloud), params, testEnv(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldNotBeNil)
	return out.Cloud()
}

func gridCloud(n int, z func(x, y int) float64) *pointcloud.PointCloud {
	positions := make([]r3.Vector, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			positions = append(positions, r3.Vector{X: float64(x), Y: float64(y), Z: z(x, y)})
		}
	}
	return pointcloud.NewFromPositions(positions)
}

func TestNormalsFlatPlane(t *testing.T) {
	cloud := gridCloud(4, func(x, y int) float64 { return 0 })
	out := runDenoise(t, "normals", &NormalsParams{NbNeighbors: 5}, cloud)

	test.That(t, out.HasNormals(), test.ShouldBeTrue)
	normals, err := out.Normals()
	test.That(t, err, test.ShouldBeNil)
	for _, n := range normals {
		test.That(t, n.Z, test.ShouldAlmostEqual, 1, 1e-6)
		test.That(t, n.X, test.ShouldAlmostEqual, 0, 1e-6)
		test.That(t, n.Y, test.ShouldAlmostEqual, 0, 1e-6)
	}
}

func TestNormalsTiltedPlane(t *testing.T) {
	// The plane z = x has normal (-1, 0, 1)/sqrt(2) once oriented
	// toward +Z.
	cloud := gridCloud(5, func(x, y int) float64 { return float64(x) })
	out := runDenoise(t, "normals", &NormalsParams{NbNeighbors: 8, WorkerCount: 2}, cloud)

	normals, err := out.Normals()
	test.That(t, err, test.ShouldBeNil)
	inv := 1 / r3.Vector{X: -1, Z: 1}.Norm()
	for _, n := range normals {
		test.That(t, n.X, test.ShouldAlmostEqual, -inv, 1e-6)
		test.That(t, n.Y, test.ShouldAlmostEqual, 0, 1e-6)
		test.That(t, n.Z, test.ShouldAlmostEqual, inv, 1e-6)
	}
}

func TestNormalsSinglePoint(t *testing.T) {
	cloud := pointcloud.NewFromPositions([]r3.Vector{{X: 1, Y: 2, Z: 3}})
	out := runDenoise(t, "normals", &NormalsParams{NbNeighbors: 30}, cloud)
	normals, err := out.Normals()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, normals[0].Norm(), test.ShouldAlmostEqual, 1, 1e-6)
}

func TestNormalsParamsValidate(t *testing.T) {
	err := (&NormalsParams{NbNeighbors: 0}).Validate("steps.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nb_neighbors must be at least 1")

	err = (&NormalsParams{NbNeighbors: 5, WorkerCount: -1}).Validate("steps.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "worker_count cannot be negative")

	test.That(t, (&NormalsParams{NbNeighbors: 5}).Validate("steps.0"), test.ShouldBeNil)
}
