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
		Method: "voxel",
		Input:  pipeline.KindPointCloud,
		Output: pipeline.KindPointCloud,
		Params: func() pipeline.Params { return &VoxelParams{VoxelSize: 1} },
		Run:    voxelFilter,
	})
}

// VoxelParams configures the voxel downsampling filter.
type VoxelParams struct {
	// VoxelSize is the cell edge length.
	VoxelSize float64 `json:"voxel_size"`
}

// Validate ensures all parts of the config are valid.
func (p *VoxelParams) Validate(path string) error {
	if p.VoxelSize <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("voxel_size must be positive"))
	}
	return nil
}

// voxelFilter collapses every occupied voxel to a single representative
// point: the member centroid, with color and normal columns averaged and
// the classification decided by majority.
func voxelFilter(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*VoxelParams)
	cloud := m.Cloud()
	if cloud.Size() == 0 {
		return m, nil
	}
	grid, err := pointcloud.NewVoxelGrid(cloud, p.VoxelSize)
	if err != nil {
		return nil, err
	}
	out, err := grid.Reduce()
	if err != nil {
		return nil, err
	}
	env.Logger.Debugw("voxel filter done", "cells", grid.Len(), "points", cloud.Size())
	return mesh.New(out), nil
}
