package filter

import (
	"context"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
	"go.viam.com/cloudmesh/pointcloud"
)

func init() {
	pipeline.RegisterStep(pipeline.Step{
		Action: pipeline.ActionFilter,
		Method: "radius",
		Input:  pipeline.KindPointCloud,
		Output: pipeline.KindPointCloud,
		Params: func() pipeline.Params { return &RadiusParams{Radius: 1, NbPoints: 16} },
		Run:    radiusFilter,
	})
}

// RadiusParams configures the radius outlier filter.
type RadiusParams struct {
	// Radius is the neighborhood sphere radius.
	Radius float64 `json:"radius"`
	// NbPoints is the minimum number of neighbors inside the sphere,
	// not counting the point itself.
	NbPoints int `json:"nb_points"`
}

// Validate ensures all parts of the config are valid.
func (p *RadiusParams) Validate(path string) error {
	if p.Radius <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("radius must be positive"))
	}
	if p.NbPoints < 1 {
		return goutils.NewConfigValidationError(path, errors.New("nb_points must be at least 1"))
	}
	return nil
}

// radiusFilter keeps the points that have at least NbPoints other points
// within Radius of them.
func radiusFilter(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*RadiusParams)
	cloud := m.Cloud()
	if cloud.Size() == 0 {
		return m, nil
	}
	tree := pointcloud.NewKDTree(cloud)
	keep := make([]int, 0, cloud.Size())
	for i := 0; i < cloud.Size(); i++ {
		// The queried point is part of the cloud, so it shows up in
		// its own neighborhood at distance zero.
		neighbors := tree.RadiusSearch(cloud.At(i), p.Radius)
		if len(neighbors)-1 >= p.NbPoints {
			keep = append(keep, i)
		}
	}
	env.Logger.Debugw("radius filter done", "kept", len(keep), "dropped", cloud.Size()-len(keep))
	return selectCloud(cloud, keep)
}
