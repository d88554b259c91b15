// Package filter implements the point cloud outlier removal and
// downsampling steps. Each method registers itself with the pipeline
// registry at init time; importing the package is enough to make its
// methods available.
package filter

import (
	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pointcloud"
)

// selectCloud wraps the kept rows of a cloud into a fresh cloud-only mesh,
// carrying every attribute column along.
func selectCloud(cloud *pointcloud.PointCloud, rows []int) (*mesh.Mesh, error) {
	out, err := cloud.Select(rows)
	if err != nil {
		return nil, err
	}
	return mesh.New(out), nil
}
