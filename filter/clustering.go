package filter

import (
	"context"
	"sort"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
)

func init() {
	pipeline.RegisterStep(pipeline.Step{
		Action: pipeline.ActionFilter,
		Method: "clustering",
		Input:  pipeline.KindPointCloud,
		Output: pipeline.KindPointCloud,
		Params: func() pipeline.Params { return &ClusteringParams{NbClusters: 8, MinPoints: 50} },
		Run:    clusteringFilter,
	})
}

// ClusteringParams configures the clustering filter.
type ClusteringParams struct {
	// NbClusters is the number of k-means partitions.
	NbClusters int `json:"nb_clusters"`
	// MinPoints is the smallest cluster size that survives the filter.
	MinPoints int `json:"min_points"`
}

// Validate ensures all parts of the config are valid.
func (p *ClusteringParams) Validate(path string) error {
	if p.NbClusters < 1 {
		return goutils.NewConfigValidationError(path, errors.New("nb_clusters must be at least 1"))
	}
	if p.MinPoints < 1 {
		return goutils.NewConfigValidationError(path, errors.New("min_points must be at least 1"))
	}
	return nil
}

// rowObservation ties a k-means observation back to its cloud row.
type rowObservation struct {
	pos clusters.Coordinates
	row int
}

func (o rowObservation) Coordinates() clusters.Coordinates { return o.pos }

func (o rowObservation) Distance(point clusters.Coordinates) float64 {
	return o.pos.Distance(point)
}

// clusteringFilter partitions the cloud with k-means and drops every
// cluster smaller than MinPoints. Sparse debris far away from the main
// structures tends to end up in the small clusters.
func clusteringFilter(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*ClusteringParams)
	cloud := m.Cloud()
	if cloud.Size() == 0 {
		return m, nil
	}
	// k-means cannot have more partitions than observations.
	k := p.NbClusters
	if k > cloud.Size() {
		k = cloud.Size()
	}

	observations := make(clusters.Observations, 0, cloud.Size())
	for i := 0; i < cloud.Size(); i++ {
		pos := cloud.At(i)
		observations = append(observations, rowObservation{
			pos: clusters.Coordinates{pos.X, pos.Y, pos.Z},
			row: i,
		})
	}
	km := kmeans.New()
	partition, err := km.Partition(observations, k)
	if err != nil {
		return nil, errors.Wrap(err, "cannot cluster the point cloud")
	}

	keep := make([]int, 0, cloud.Size())
	droppedClusters := 0
	for _, c := range partition {
		if len(c.Observations) < p.MinPoints {
			droppedClusters++
			continue
		}
		for _, o := range c.Observations {
			keep = append(keep, o.(rowObservation).row)
		}
	}
	sort.Ints(keep)
	env.Logger.Debugw("clustering filter done",
		"clusters", len(partition), "dropped_clusters", droppedClusters, "kept", len(keep))
	return selectCloud(cloud, keep)
}
