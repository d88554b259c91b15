package filter

import (
	"context"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
	"go.viam.com/cloudmesh/pointcloud"
)

func init() {
	pipeline.RegisterStep(pipeline.Step{
		Action: pipeline.ActionFilter,
		Method: "statistical",
		Input:  pipeline.KindPointCloud,
		Output: pipeline.KindPointCloud,
		Params: func() pipeline.Params { return &StatisticalParams{NbNeighbors: 20, StdFactor: 2} },
		Run:    statisticalFilter,
	})
}

// StatisticalParams configures the statistical outlier filter.
type StatisticalParams struct {
	// NbNeighbors is the neighborhood size the per-point mean distance
	// is computed over.
	NbNeighbors int `json:"nb_neighbors"`
	// StdFactor scales the standard deviation that sets the rejection
	// threshold above the global mean.
	StdFactor float64 `json:"std_factor"`
}

// Validate ensures all parts of the config are valid.
func (p *StatisticalParams) Validate(path string) error {
	if p.NbNeighbors < 1 {
		return goutils.NewConfigValidationError(path, errors.New("nb_neighbors must be at least 1"))
	}
	if p.StdFactor <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("std_factor must be positive"))
	}
	return nil
}

// statisticalFilter drops the points whose mean distance to their nearest
// neighbors sits more than StdFactor standard deviations above the mean of
// that quantity over the whole cloud.
func statisticalFilter(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*StatisticalParams)
	cloud := m.Cloud()
	if cloud.Size() == 0 {
		return m, nil
	}
	tree := pointcloud.NewKDTree(cloud)
	means := make([]float64, cloud.Size())
	for i := 0; i < cloud.Size(); i++ {
		neighbors := tree.KNearest(cloud.At(i), p.NbNeighbors+1)
		sum, count := 0.0, 0
		for _, n := range neighbors {
			if n.Row == i {
				continue
			}
			sum += n.Distance
			count++
		}
		if count > 0 {
			means[i] = sum / float64(count)
		}
	}

	mean, err := stats.Mean(means)
	if err != nil {
		return nil, errors.Wrap(err, "cannot compute the mean neighbor distance")
	}
	stddev, err := stats.StandardDeviation(means)
	if err != nil {
		return nil, errors.Wrap(err, "cannot compute the neighbor distance deviation")
	}
	threshold := mean + p.StdFactor*stddev

	keep := make([]int, 0, cloud.Size())
	for i, d := range means {
		if d <= threshold {
			keep = append(keep, i)
		}
	}
	env.Logger.Debugw("statistical filter done",
		"mean", mean, "stddev", stddev, "kept", len(keep), "dropped", cloud.Size()-len(keep))
	return selectCloud(cloud, keep)
}
