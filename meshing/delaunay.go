// Package meshing implements the surface reconstruction steps that turn a
// point cloud into a triangle mesh. Each method registers itself with the
// pipeline registry at init time.
package meshing

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/cloudmesh/delaunay"
	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
)

func init() {
	pipeline.RegisterStep(pipeline.Step{
		Action: pipeline.ActionMesh,
		Method: "delaunay",
		Input:  pipeline.KindPointCloud,
		Output: pipeline.KindMesh,
		Params: func() pipeline.Params { return &DelaunayParams{} },
		Run:    delaunayMesh,
	})
}

// DelaunayParams configures Delaunay meshing, which takes no parameters.
type DelaunayParams struct{}

// Validate ensures all parts of the config are valid.
func (p *DelaunayParams) Validate(path string) error { return nil }

// delaunayMesh triangulates the (x, y) projection of the cloud, treating
// it as a 2.5-D height field. Every input point becomes a mesh vertex, so
// attribute columns carry over untouched.
func delaunayMesh(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	cloud := m.Cloud()
	points := make([]delaunay.Point, cloud.Size())
	for i := range points {
		p := cloud.At(i)
		points[i] = delaunay.Point{X: p.X, Y: p.Y}
	}
	tri, err := delaunay.Triangulate(points)
	if err != nil {
		return nil, errors.Wrap(err, "cannot mesh the point cloud")
	}
	faces := make([]mesh.Face, len(tri.Triangles))
	for i, f := range tri.Triangles {
		faces[i] = mesh.Face(f)
	}
	env.Logger.Debugw("delaunay meshing done", "vertices", cloud.Size(), "faces", len(faces))
	return mesh.NewWithFaces(cloud, faces)
}
