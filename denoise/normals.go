package denoise

import (
	"context"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
)

func init() {
	pipeline.RegisterStep(pipeline.Step{
		Action: pipeline.ActionDenoise,
		Method: "normals",
		Input:  pipeline.KindPointCloud,
		Output: pipeline.KindPointCloud,
		Params: func() pipeline.Params { return &NormalsParams{NbNeighbors: 30} },
		Run:    normalsDenoise,
	})
}

// NormalsParams configures normal estimation.
type NormalsParams struct {
	// NbNeighbors is the neighborhood size each normal is fitted over.
	NbNeighbors int `json:"nb_neighbors"`
	// WorkerCount bounds the parallelism; zero uses one worker per
	// processor.
	WorkerCount int `json:"worker_count"`
}

// Validate ensures all parts of the config are valid.
func (p *NormalsParams) Validate(path string) error {
	if p.NbNeighbors < 1 {
		return goutils.NewConfigValidationError(path, errors.New("nb_neighbors must be at least 1"))
	}
	if p.WorkerCount < 0 {
		return goutils.NewConfigValidationError(path, errors.New("worker_count cannot be negative"))
	}
	return nil
}

// normalsDenoise attaches an estimated normals column to the cloud,
// replacing any column already present.
func normalsDenoise(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*NormalsParams)
	cloud := m.Cloud()
	if cloud.Size() == 0 {
		return m, nil
	}
	normals, err := estimateNormals(ctx, cloud, p.NbNeighbors, p.WorkerCount)
	if err != nil {
		return nil, err
	}
	if err := cloud.SetNormals(normals); err != nil {
		return nil, err
	}
	env.Logger.Debugw("normal estimation done", "points", cloud.Size(), "neighbors", p.NbNeighbors)
	return m, nil
}
