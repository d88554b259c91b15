package mesh

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/cloudmesh/pointcloud"
)

func texturedMesh(t *testing.T) *Mesh {
	t.Helper()
	cloud := squareCloud()
	err := cloud.SetColors(pointcloud.Colors{
		Red:   []float64{10, 20, 30, 40},
		Green: []float64{1, 2, 3, 4},
		Blue:  []float64{5, 6, 7, 8},
		Nir:   []float64{100, 200, 300, 400},
	})
	test.That(t, err, test.ShouldBeNil)
	up := r3.Vector{X: 0, Y: 0, Z: 1}
	err = cloud.SetNormals([]r3.Vector{up, up, up, up})
	test.That(t, err, test.ShouldBeNil)
	err = cloud.SetClasses([]int{2, 2, 6, 6})
	test.That(t, err, test.ShouldBeNil)

	m, err := NewWithFaces(cloud, []Face{{0, 1, 2}, {0, 2, 3}})
	test.That(t, err, test.ShouldBeNil)
	err = m.SetTriangleUVs([]TriangleUV{
		{{0, 0}, {0, 0.5}, {0.5, 0.5}},
		{{0, 0}, {0.5, 0.5}, {0.5, 0.25}},
	})
	test.That(t, err, test.ShouldBeNil)
	m.SetTexturePath("tex.png")
	return m
}

func assertMeshesEqual(t *testing.T, got, want *Mesh) {
	t.Helper()
	test.That(t, got.Cloud().Size(), test.ShouldEqual, want.Cloud().Size())
	for i := 0; i < want.Cloud().Size(); i++ {
		test.That(t, got.Cloud().At(i), test.ShouldResemble, want.Cloud().At(i))
	}
	test.That(t, got.Cloud().HasColors(), test.ShouldEqual, want.Cloud().HasColors())
	if want.Cloud().HasColors() {
		gotColors, err := got.Cloud().Colors()
		test.That(t, err, test.ShouldBeNil)
		wantColors, err := want.Cloud().Colors()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, gotColors, test.ShouldResemble, wantColors)
	}
	test.That(t, got.Cloud().HasNormals(), test.ShouldEqual, want.Cloud().HasNormals())
	if want.Cloud().HasNormals() {
		gotNormals, err := got.Cloud().Normals()
		test.That(t, err, test.ShouldBeNil)
		wantNormals, err := want.Cloud().Normals()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, gotNormals, test.ShouldResemble, wantNormals)
	}
	test.That(t, got.Cloud().HasClasses(), test.ShouldEqual, want.Cloud().HasClasses())
	if want.Cloud().HasClasses() {
		gotClasses, err := got.Cloud().Classes()
		test.That(t, err, test.ShouldBeNil)
		wantClasses, err := want.Cloud().Classes()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, gotClasses, test.ShouldResemble, wantClasses)
	}
	test.That(t, got.HasFaces(), test.ShouldEqual, want.HasFaces())
	if want.HasFaces() {
		gotFaces, err := got.Faces()
		test.That(t, err, test.ShouldBeNil)
		wantFaces, err := want.Faces()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, gotFaces, test.ShouldResemble, wantFaces)
	}
	test.That(t, got.HasTriangleUVs(), test.ShouldEqual, want.HasTriangleUVs())
	if want.HasTriangleUVs() {
		gotUVs, err := got.TriangleUVs()
		test.That(t, err, test.ShouldBeNil)
		wantUVs, err := want.TriangleUVs()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, gotUVs, test.ShouldResemble, wantUVs)
	}
}

func TestPLYRoundTrip(t *testing.T) {
	logger := golog.NewTestLogger(t)
	for _, format := range []PLYFormat{PLYAscii, PLYBinary} {
		m := texturedMesh(t)
		var buf bytes.Buffer
		test.That(t, ToPLY(m, &buf, format), test.ShouldBeNil)

		got, err := ReadPLY(&buf, logger)
		test.That(t, err, test.ShouldBeNil)
		assertMeshesEqual(t, got, m)
		test.That(t, got.TexturePath(), test.ShouldEqual, "tex.png")
		test.That(t, got.HasTexture(), test.ShouldBeTrue)
	}
}

func TestPLYVertexOnly(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cloud := squareCloud()
	err := cloud.SetColors(pointcloud.Colors{Nir: []float64{1, 2, 3, 4}})
	test.That(t, err, test.ShouldBeNil)
	m := New(cloud)

	var buf bytes.Buffer
	test.That(t, ToPLY(m, &buf, PLYAscii), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldNotContainSubstring, "element face")

	got, err := ReadPLY(&buf, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.HasFaces(), test.ShouldBeFalse)
	gotColors, err := got.Cloud().Colors()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotColors.Nir, test.ShouldResemble, []float64{1, 2, 3, 4})
	test.That(t, gotColors.Red, test.ShouldBeNil)
}

func TestPLYFileRoundTrip(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()

	m := texturedMesh(t)
	m.SetTexturePath(filepath.Join(dir, "tex.png"))

	fn := filepath.Join(dir, "mesh.ply")
	test.That(t, WriteToPLYFile(m, fn), test.ShouldBeNil)
	got, err := NewFromPLYFile(fn, logger)
	test.That(t, err, test.ShouldBeNil)
	assertMeshesEqual(t, got, m)
	test.That(t, got.TexturePath(), test.ShouldEqual, filepath.Join(dir, "tex.png"))

	fnASCII := filepath.Join(dir, "mesh_ascii.ply")
	test.That(t, WriteToPLYFileASCII(m, fnASCII), test.ShouldBeNil)
	gotASCII, err := NewFromPLYFile(fnASCII, logger)
	test.That(t, err, test.ShouldBeNil)
	assertMeshesEqual(t, gotASCII, m)
}

func TestPLYExternalAscii(t *testing.T) {
	logger := golog.NewTestLogger(t)
	data := strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"element vertex 2",
		"property float x",
		"property float y",
		"property float z",
		"property uchar red",
		"property uchar green",
		"property uchar blue",
		"property uchar alpha",
		"end_header",
		"0 0 0 255 0 0 255",
		"1 0 0 0 255 0 255",
		"",
	}, "\n")

	m, err := ReadPLY(strings.NewReader(data), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Cloud().Size(), test.ShouldEqual, 2)
	test.That(t, m.Cloud().At(1), test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: 0})
	colors, err := m.Cloud().Colors()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, colors.Red, test.ShouldResemble, []float64{255, 0})
	test.That(t, colors.Green, test.ShouldResemble, []float64{0, 255})
	test.That(t, colors.Nir, test.ShouldBeNil)
}

func TestPLYReadErrors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	quad := strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"element vertex 4",
		"property double x",
		"property double y",
		"property double z",
		"element face 1",
		"property list uchar int vertex_indices",
		"end_header",
		"0 0 0",
		"1 0 0",
		"1 1 0",
		"0 1 0",
		"4 0 1 2 3",
		"",
	}, "\n")

	for _, tc := range []struct {
		name string
		data string
		want string
	}{
		{"magic", "pcd\nVERSION .7\n", "missing magic"},
		{"truncated", "ply\nformat ascii 1.0\nelement vertex 0\n", "missing end_header"},
		{
			"no coordinates",
			"ply\nformat ascii 1.0\nelement vertex 0\nproperty double x\nend_header\n",
			"no x, y, z",
		},
		{"quad face", quad, "only triangles"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadPLY(strings.NewReader(tc.data), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.want)
		})
	}
}
