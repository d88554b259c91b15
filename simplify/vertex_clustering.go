// Package simplify implements the mesh decimation steps. Each method
// registers itself with the pipeline registry at init time.
package simplify

import (
	"context"
	"math"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
	"go.viam.com/cloudmesh/pointcloud"
)

func init() {
	pipeline.RegisterStep(pipeline.Step{
		Action: pipeline.ActionSimplify,
		Method: "vertex_clustering",
		Input:  pipeline.KindMesh,
		Output: pipeline.KindMesh,
		Params: func() pipeline.Params { return &VertexClusteringParams{VoxelSize: 1} },
		Run:    vertexClustering,
	})
}

// VertexClusteringParams configures vertex clustering decimation.
type VertexClusteringParams struct {
	// VoxelSize is the clustering cell edge length.
	VoxelSize float64 `json:"voxel_size"`
}

// Validate ensures all parts of the config are valid.
func (p *VertexClusteringParams) Validate(path string) error {
	if p.VoxelSize <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("voxel_size must be positive"))
	}
	return nil
}

// vertexClustering merges all mesh vertices that share a voxel into the
// member closest to the voxel centroid, re-indexes the face table and
// drops the faces that collapse to an edge, a point or zero area. Texture
// data does not survive the collapse.
func vertexClustering(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*VertexClusteringParams)
	cloud := m.Cloud()
	faces, err := m.Faces()
	if err != nil {
		return nil, err
	}
	grid, err := pointcloud.NewVoxelGrid(cloud, p.VoxelSize)
	if err != nil {
		return nil, err
	}

	// One representative row per cell, the member nearest the centroid.
	reps := make([]int, grid.Len())
	rowCell := make([]int, cloud.Size())
	for ci := 0; ci < grid.Len(); ci++ {
		centroid := grid.Centroid(ci)
		best, bestDist := -1, math.Inf(1)
		for _, r := range grid.Rows(ci) {
			rowCell[r] = ci
			if d := cloud.At(r).Sub(centroid).Norm2(); d < bestDist {
				best, bestDist = r, d
			}
		}
		reps[ci] = best
	}
	out, err := cloud.Select(reps)
	if err != nil {
		return nil, err
	}

	kept := make([]mesh.Face, 0, len(faces))
	for _, f := range faces {
		nf := mesh.Face{rowCell[f[0]], rowCell[f[1]], rowCell[f[2]]}
		if nf[0] == nf[1] || nf[1] == nf[2] || nf[0] == nf[2] {
			continue
		}
		if mesh.NewTriangle(out.At(nf[0]), out.At(nf[1]), out.At(nf[2])).Area() == 0 {
			continue
		}
		kept = append(kept, nf)
	}

	env.Logger.Debugw("vertex clustering done",
		"vertices", cloud.Size(), "clusters", grid.Len(), "faces", len(faces), "kept_faces", len(kept))
	return mesh.NewWithFaces(out, kept)
}
