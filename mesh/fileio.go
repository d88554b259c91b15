package mesh

import (
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/cloudmesh/pointcloud"
)

// NewFromFile reads a mesh from fn, dispatching on the file extension.
// Point cloud formats load as face-less meshes.
func NewFromFile(fn string, logger golog.Logger) (*Mesh, error) {
	switch filepath.Ext(fn) {
	case ".ply":
		return NewFromPLYFile(fn, logger)
	case ".obj":
		return NewFromOBJFile(fn, logger)
	default:
		cloud, err := pointcloud.NewFromFile(fn, logger)
		if err != nil {
			return nil, err
		}
		return New(cloud), nil
	}
}

// WriteToFile writes the mesh to fn, dispatching on the file extension.
// A mesh with faces fits only the mesh formats; a face-less mesh routed
// to a point cloud format writes its vertex set.
func WriteToFile(m *Mesh, fn string) error {
	switch filepath.Ext(fn) {
	case ".ply":
		return WriteToPLYFile(m, fn)
	case ".obj":
		return WriteToOBJFile(m, fn)
	default:
		if m.HasFaces() {
			return errors.Errorf("cannot write triangle faces to %q, use .ply or .obj", fn)
		}
		return pointcloud.WriteToFile(m.Cloud(), fn)
	}
}
