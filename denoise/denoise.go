// Package denoise implements the point cloud smoothing steps: normal
// estimation and bilateral denoising. Each method registers itself with
// the pipeline registry at init time.
package denoise

import (
	"context"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/cloudmesh/pointcloud"
	"go.viam.com/cloudmesh/utils"
)

// estimateNormals computes a unit normal for every point from the
// covariance of its nearest neighborhood, oriented toward +Z.
func estimateNormals(ctx context.Context, cloud *pointcloud.PointCloud, nbNeighbors, workers int) ([]r3.Vector, error) {
	tree := pointcloud.NewKDTree(cloud)
	normals := make([]r3.Vector, cloud.Size())
	err := utils.GroupWorkParallelN(
		ctx,
		workers,
		cloud.Size(),
		func(groupSize int) {},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				normals[workNum] = pointNormal(cloud, tree, workNum, nbNeighbors)
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return normals, nil
}

// pointNormal fits a plane to the neighborhood of row i. The smallest
// singular vector of the neighborhood covariance is the direction the
// neighborhood is flattest in.
func pointNormal(cloud *pointcloud.PointCloud, tree *pointcloud.KDTree, i, nbNeighbors int) r3.Vector {
	neighbors := tree.KNearest(cloud.At(i), nbNeighbors+1)
	var centroid r3.Vector
	for _, n := range neighbors {
		centroid = centroid.Add(cloud.At(n.Row))
	}
	centroid = centroid.Mul(1. / float64(len(neighbors)))

	var xx, xy, xz, yy, yz, zz float64
	for _, n := range neighbors {
		d := cloud.At(n.Row).Sub(centroid)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	cov := mat.NewDense(3, 3, []float64{
		xx, xy, xz,
		xy, yy, yz,
		xz, yz, zz,
	})

	var svd mat.SVD
	if !svd.Factorize(cov, mat.SVDFull) {
		return r3.Vector{Z: 1}
	}
	u := &mat.Dense{}
	svd.UTo(u)
	// Singular values come out in decreasing order, so the last column
	// of U spans the flattest direction.
	normal := r3.Vector{X: u.At(0, 2), Y: u.At(1, 2), Z: u.At(2, 2)}
	if normal.Z < 0 {
		normal = normal.Mul(-1)
	}
	return normal
}

// cloneWithPositions rebuilds a cloud over moved positions, sharing the
// attribute columns of the source.
func cloneWithPositions(cloud *pointcloud.PointCloud, positions []r3.Vector) (*pointcloud.PointCloud, error) {
	out := pointcloud.NewFromPositions(positions)
	if cloud.HasColors() {
		c, err := cloud.Colors()
		if err != nil {
			return nil, err
		}
		if err := out.SetColors(c); err != nil {
			return nil, err
		}
	}
	if cloud.HasNormals() {
		n, err := cloud.Normals()
		if err != nil {
			return nil, err
		}
		if err := out.SetNormals(n); err != nil {
			return nil, err
		}
	}
	if cloud.HasClasses() {
		c, err := cloud.Classes()
		if err != nil {
			return nil, err
		}
		if err := out.SetClasses(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}
