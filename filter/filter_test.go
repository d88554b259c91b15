package filter

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

func pointCloudFromRows(t *testing.T, positions []r3.Vector, classes []int) *pointcloud.PointCloud {
	t.Helper()
	cloud := pointcloud.NewFromPositions(positions)
	if classes != nil {
		test.That(t, cloud.SetClasses(classes), test.ShouldBeNil)
	}
	return cloud
}

// runFilter exercises a method the way the machine does, through its
// registry entry.
func runFilter(t *testing.T, method string, params pipeline.Params, cloud *pointcloud.PointCloud) *pointcloud.PointCloud {
	t.Helper()
	step, ok := pipeline.LookupStep(pipeline.ActionFilter, method)
	test.That(t, ok, test.ShouldBeTrue)
	out, err := step.Run(context.Background(), mesh.New(cloud), params, testEnv(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldNotBeNil)
	return out.Cloud()
}
