package meshing

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
		Action: pipeline.ActionMesh,
		Method: "grid",
		Input:  pipeline.KindPointCloud,
		Output: pipeline.KindMesh,
		Params: func() pipeline.Params { return &GridParams{CellSize: 1} },
		Run:    gridMesh,
	})
}

// GridParams configures grid meshing.
type GridParams struct {
	// CellSize is the edge length of the resampling cells.
	CellSize float64 `json:"cell_size"`
}

// Validate ensures all parts of the config are valid.
func (p *GridParams) Validate(path string) error {
	if p.CellSize <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("cell_size must be positive"))
	}
	return nil
}

type gridCell struct {
	i, j int64
}

// gridMesh resamples the cloud on a uniform (x, y) grid, one averaged
// vertex per occupied cell, and emits two triangles for every quad of
// occupied cells.
func gridMesh(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*GridParams)
	cloud := m.Cloud()
	min, _, err := cloud.Bounds()
	if err != nil {
		return nil, errors.Wrap(err, "cannot mesh the point cloud")
	}

	index := make(map[gridCell]int)
	var groups [][]int
	var maxI, maxJ int64
	for r := 0; r < cloud.Size(); r++ {
		pos := cloud.At(r)
		key := gridCell{
			i: int64(math.Floor((pos.X - min.X) / p.CellSize)),
			j: int64(math.Floor((pos.Y - min.Y) / p.CellSize)),
		}
		ci, ok := index[key]
		if !ok {
			ci = len(groups)
			index[key] = ci
			groups = append(groups, nil)
		}
		groups[ci] = append(groups[ci], r)
		if key.i > maxI {
			maxI = key.i
		}
		if key.j > maxJ {
			maxJ = key.j
		}
	}

	vertices, err := pointcloud.AverageRows(cloud, groups)
	if err != nil {
		return nil, err
	}

	var faces []mesh.Face
	for j := int64(0); j < maxJ; j++ {
		for i := int64(0); i < maxI; i++ {
			v00, ok := index[gridCell{i, j}]
			if !ok {
				continue
			}
			v10, ok := index[gridCell{i + 1, j}]
			if !ok {
				continue
			}
			v01, ok := index[gridCell{i, j + 1}]
			if !ok {
				continue
			}
			v11, ok := index[gridCell{i + 1, j + 1}]
			if !ok {
				continue
			}
			faces = append(faces, mesh.Face{v00, v10, v11}, mesh.Face{v00, v11, v01})
		}
	}

	env.Logger.Debugw("grid meshing done",
		"points", cloud.Size(), "vertices", vertices.Size(), "faces", len(faces))
	return mesh.NewWithFaces(vertices, faces)
}
