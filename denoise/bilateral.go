package denoise

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
	"go.viam.com/cloudmesh/pointcloud"
	"go.viam.com/cloudmesh/utils"
)

func init() {
	pipeline.RegisterStep(pipeline.Step{
		Action: pipeline.ActionDenoise,
		Method: "bilateral",
		Input:  pipeline.KindPointCloud,
		Output: pipeline.KindPointCloud,
		Params: func() pipeline.Params {
			return &BilateralParams{NbNeighbors: 30, SigmaD: 0.5, SigmaN: 0.5, Iterations: 1}
		},
		Run: bilateralDenoise,
	})
}

// BilateralParams configures the bilateral denoiser.
type BilateralParams struct {
	// NbNeighbors is the neighborhood size each point is smoothed over.
	NbNeighbors int `json:"nb_neighbors"`
	// SigmaD is the spatial falloff of the neighbor weights.
	SigmaD float64 `json:"sigma_d"`
	// SigmaN is the falloff over the plane offset, which preserves
	// sharp features.
	SigmaN float64 `json:"sigma_n"`
	// Iterations is the number of smoothing passes.
	Iterations int `json:"iterations"`
}

// Validate ensures all parts of the config are valid.
func (p *BilateralParams) Validate(path string) error {
	if p.NbNeighbors < 1 {
		return goutils.NewConfigValidationError(path, errors.New("nb_neighbors must be at least 1"))
	}
	if p.SigmaD <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("sigma_d must be positive"))
	}
	if p.SigmaN <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("sigma_n must be positive"))
	}
	if p.Iterations < 1 {
		return goutils.NewConfigValidationError(path, errors.New("iterations must be at least 1"))
	}
	return nil
}

// bilateralDenoise moves every point along its normal by a bilateral
// weighted mean of the plane offsets of its neighbors. Normals are
// estimated first when the cloud carries none.
func bilateralDenoise(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*BilateralParams)
	cloud := m.Cloud()
	if cloud.Size() == 0 {
		return m, nil
	}

	var normals []r3.Vector
	if cloud.HasNormals() {
		n, err := cloud.Normals()
		if err != nil {
			return nil, err
		}
		normals = n
	} else {
		n, err := estimateNormals(ctx, cloud, p.NbNeighbors, 0)
		if err != nil {
			return nil, err
		}
		normals = n
	}

	for iter := 0; iter < p.Iterations; iter++ {
		tree := pointcloud.NewKDTree(cloud)
		moved := make([]r3.Vector, cloud.Size())
		err := utils.GroupWorkParallel(
			ctx,
			cloud.Size(),
			func(groupSize int) {},
			func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
				return func(memberNum, workNum int) {
					moved[workNum] = bilateralMove(cloud, tree, normals, workNum, p)
				}, nil
			},
		)
		if err != nil {
			return nil, err
		}
		next, err := cloneWithPositions(cloud, moved)
		if err != nil {
			return nil, err
		}
		cloud = next
	}

	if err := cloud.SetNormals(normals); err != nil {
		return nil, err
	}
	env.Logger.Debugw("bilateral denoise done", "points", cloud.Size(), "iterations", p.Iterations)
	return mesh.New(cloud), nil
}

func bilateralMove(cloud *pointcloud.PointCloud, tree *pointcloud.KDTree, normals []r3.Vector, i int, p *BilateralParams) r3.Vector {
	pos := cloud.At(i)
	normal := normals[i]
	sumW, sumWD := 0.0, 0.0
	for _, nb := range tree.KNearest(pos, p.NbNeighbors+1) {
		if nb.Row == i {
			continue
		}
		offset := cloud.At(nb.Row).Sub(pos).Dot(normal)
		wd := math.Exp(-nb.Distance * nb.Distance / (2 * p.SigmaD * p.SigmaD))
		wn := math.Exp(-offset * offset / (2 * p.SigmaN * p.SigmaN))
		sumW += wd * wn
		sumWD += wd * wn * offset
	}
	if sumW == 0 {
		return pos
	}
	return pos.Add(normal.Mul(sumWD / sumW))
}
