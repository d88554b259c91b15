// Package mesh defines a triangulated surface over a point cloud vertex
// set, with optional per-face texture coordinates and an external image
// texture reference, and provides readers and writers for mesh
// interchange formats.
package mesh

import (
	"github.com/pkg/errors"

	"go.viam.com/cloudmesh/pointcloud"
)

// Face references three vertex rows of the owned point cloud.
type Face [3]int

// UV is one normalized texture coordinate in [0,1], image row then column.
type UV struct {
	Row float64
	Col float64
}

// TriangleUV holds one texture coordinate per face vertex.
type TriangleUV [3]UV

// Mesh owns a point cloud as its vertex set plus a table of triangular
// faces over it. A mesh with an empty face table is semantically a bare
// point cloud and serializes as one.
type Mesh struct {
	cloud       *pointcloud.PointCloud
	faces       []Face
	uvs         []TriangleUV
	texturePath string
}

// New returns a face-less mesh over the given vertex set.
func New(cloud *pointcloud.PointCloud) *Mesh {
	return &Mesh{cloud: cloud}
}

// NewWithFaces returns a mesh over the given vertex set and face table.
func NewWithFaces(cloud *pointcloud.PointCloud, faces []Face) (*Mesh, error) {
	m := New(cloud)
	if err := m.SetFaces(faces); err != nil {
		return nil, err
	}
	return m, nil
}

// Cloud returns the vertex set.
func (m *Mesh) Cloud() *pointcloud.PointCloud {
	return m.cloud
}

// HasFaces reports whether the face table is non-empty.
func (m *Mesh) HasFaces() bool {
	return len(m.faces) > 0
}

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int {
	return len(m.faces)
}

// Faces returns the face table. It errors when the mesh has no faces;
// callers are expected to check HasFaces first. The returned slice is
// shared with the mesh, not copied.
func (m *Mesh) Faces() ([]Face, error) {
	if !m.HasFaces() {
		return nil, errors.New("mesh has no triangle faces")
	}
	return m.faces, nil
}

// SetFaces replaces the face table. Every index must reference a valid
// vertex row; out-of-range indices are a structural error, never clipped.
// Attached texture coordinates must be cleared before the face table can
// change size.
func (m *Mesh) SetFaces(faces []Face) error {
	size := m.cloud.Size()
	for i, f := range faces {
		for _, v := range f {
			if v < 0 || v >= size {
				return errors.Errorf("face %d references vertex %d out of range [0,%d)", i, v, size)
			}
		}
	}
	if m.uvs != nil && len(faces) != len(m.uvs) {
		return errors.Errorf("face table of %d entries does not match %d texture coordinates; clear them first", len(faces), len(m.uvs))
	}
	m.faces = faces
	return nil
}

// HasTriangleUVs reports whether texture coordinates are present.
func (m *Mesh) HasTriangleUVs() bool {
	return m.uvs != nil
}

// TriangleUVs returns the per-face texture coordinates. It errors when
// absent. The returned slice is shared with the mesh, not copied.
func (m *Mesh) TriangleUVs() ([]TriangleUV, error) {
	if !m.HasTriangleUVs() {
		return nil, errors.New("mesh has no texture coordinates")
	}
	return m.uvs, nil
}

// SetTriangleUVs attaches texture coordinates, exactly one per face. A nil
// slice clears them.
func (m *Mesh) SetTriangleUVs(uvs []TriangleUV) error {
	if uvs != nil && len(uvs) != len(m.faces) {
		return errors.Errorf("texture coordinate table has %d entries, expected one per face (%d)", len(uvs), len(m.faces))
	}
	m.uvs = uvs
	return nil
}

// TexturePath returns the external texture image path, if any.
func (m *Mesh) TexturePath() string {
	return m.texturePath
}

// SetTexturePath sets the external texture image path. An empty path
// clears it.
func (m *Mesh) SetTexturePath(path string) {
	m.texturePath = path
}

// HasTexture reports whether the mesh is fully textured: a texture path,
// texture coordinates and a non-empty face table must all be present.
func (m *Mesh) HasTexture() bool {
	return m.texturePath != "" && m.uvs != nil && m.HasFaces()
}

// Triangle resolves face i to its vertex positions.
func (m *Mesh) Triangle(i int) *Triangle {
	f := m.faces[i]
	return NewTriangle(m.cloud.At(f[0]), m.cloud.At(f[1]), m.cloud.At(f[2]))
}
