package meshing

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
	"go.viam.com/cloudmesh/pointcloud"
)

func runMesher(t *testing.T, method string, params pipeline.Params, cloud *pointcloud.PointCloud) (*mesh.Mesh, error) {
	t.Helper()
	step, ok := pipeline.LookupStep(pipeline.ActionMesh, method)
	test.That(t, ok, test.ShouldBeTrue)
	env := pipeline.Env{Logger: golog.NewTestLogger(t), OutputDir: t.TempDir()}
	return step.Run(context.Background(), mesh.New(cloud), params, env)
}
