// Package texture implements the mesh texturing steps. Each method
// registers itself with the pipeline registry at init time.
package texture

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pipeline"
	"go.viam.com/cloudmesh/pointcloud"
	"go.viam.com/cloudmesh/utils"
)

func init() {
	pipeline.RegisterStep(pipeline.Step{
		Action: pipeline.ActionTexture,
		Method: "vertex_color",
		Input:  pipeline.KindMesh,
		Output: pipeline.KindMesh,
		Params: func() pipeline.Params {
			return &VertexColorParams{Resolution: 1024, Background: 0xffffff}
		},
		Run: vertexColorTexture,
	})
}

// VertexColorParams configures vertex color baking.
type VertexColorParams struct {
	// Resolution is the edge length of the square texture atlas in
	// pixels.
	Resolution int `json:"resolution"`
	// Background is the 0xRRGGBB fill color of unused atlas space.
	Background uint32 `json:"background"`
}

// Validate ensures all parts of the config are valid.
func (p *VertexColorParams) Validate(path string) error {
	if p.Resolution < 1 {
		return goutils.NewConfigValidationError(path, errors.New("resolution must be at least 1"))
	}
	if p.Background > 0xffffff {
		return goutils.NewConfigValidationError(path, errors.New("background must fit 0xRRGGBB"))
	}
	return nil
}

// faceAtlas lays the faces out on a square grid of triangular cells.
type faceAtlas struct {
	resolution int
	side       int
	cell       int
}

func newFaceAtlas(faces, resolution int) (faceAtlas, error) {
	side := 1
	for side*side < faces {
		side++
	}
	cell := resolution / side
	if cell < 2 {
		return faceAtlas{}, errors.Errorf("resolution %d is too small to fit %d faces", resolution, faces)
	}
	return faceAtlas{resolution: resolution, side: side, cell: cell}, nil
}

// corners returns the three pixel anchors of face f inside the atlas:
// cell origin, right leg end and down leg end.
func (a faceAtlas) corners(f int) [3][2]int {
	x0 := (f % a.side) * a.cell
	y0 := (f / a.side) * a.cell
	l := a.cell - 1
	return [3][2]int{
		{x0, y0},
		{x0 + l, y0},
		{x0, y0 + l},
	}
}

type rgbValue struct {
	r, g, b float64
}

func channelValue(values []float64, i int) float64 {
	if values == nil {
		return 0
	}
	return values[i]
}

func vertexRGB(c pointcloud.Colors, i int) rgbValue {
	return rgbValue{
		r: channelValue(c.Red, i),
		g: channelValue(c.Green, i),
		b: channelValue(c.Blue, i),
	}
}

func byteOf(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// vertexColorTexture bakes the vertex colors into a per-face texture
// atlas. Every face gets its own triangular cell with corner colors
// interpolated barycentrically; the atlas is written as a PNG next to the
// other run outputs and the mesh points at it through fresh texture
// coordinates.
func vertexColorTexture(ctx context.Context, m *mesh.Mesh, params pipeline.Params, env pipeline.Env) (*mesh.Mesh, error) {
	p := params.(*VertexColorParams)
	cloud := m.Cloud()
	if !cloud.HasColors() {
		return nil, errors.New("vertex color texturing requires color channels on the mesh")
	}
	faces, err := m.Faces()
	if err != nil {
		return nil, err
	}
	colors, err := cloud.NormalizedColors()
	if err != nil {
		return nil, err
	}

	atlas, err := newFaceAtlas(len(faces), p.Resolution)
	if err != nil {
		return nil, err
	}
	faceColors := make([][3]rgbValue, len(faces))
	for i, f := range faces {
		faceColors[i] = [3]rgbValue{
			vertexRGB(colors, f[0]),
			vertexRGB(colors, f[1]),
			vertexRGB(colors, f[2]),
		}
	}

	background := color.NRGBA{
		R: uint8(p.Background >> 16),
		G: uint8(p.Background >> 8),
		B: uint8(p.Background),
		A: 255,
	}
	img := imaging.New(p.Resolution, p.Resolution, background)
	utils.ParallelForEachPixel(image.Point{X: p.Resolution, Y: p.Resolution}, func(x, y int) {
		f := (y/atlas.cell)*atlas.side + x/atlas.cell
		if x/atlas.cell >= atlas.side || f >= len(faces) {
			return
		}
		l := float64(atlas.cell - 1)
		u := float64(x-(f%atlas.side)*atlas.cell) / l
		v := float64(y-(f/atlas.side)*atlas.cell) / l
		if u+v > 1 {
			return
		}
		w := 1 - u - v
		fc := faceColors[f]
		img.SetNRGBA(x, y, color.NRGBA{
			R: byteOf(w*fc[0].r + u*fc[1].r + v*fc[2].r),
			G: byteOf(w*fc[0].g + u*fc[1].g + v*fc[2].g),
			B: byteOf(w*fc[0].b + u*fc[1].b + v*fc[2].b),
			A: 255,
		})
	})

	uvs := make([]mesh.TriangleUV, len(faces))
	res := float64(p.Resolution)
	for i := range faces {
		c := atlas.corners(i)
		for k := 0; k < 3; k++ {
			uvs[i][k] = mesh.UV{
				Row: (float64(c[k][1]) + 0.5) / res,
				Col: (float64(c[k][0]) + 0.5) / res,
			}
		}
	}

	base := "texture.png"
	if env.OutputName != "" {
		base = env.OutputName + "_texture.png"
	}
	texturePath := filepath.Join(env.OutputDir, base)
	if env.OutputDir != "" {
		if err := os.MkdirAll(env.OutputDir, 0o750); err != nil {
			return nil, err
		}
	}
	if err := imaging.Save(img, texturePath); err != nil {
		return nil, errors.Wrap(err, "cannot save the texture atlas")
	}

	if err := m.SetTriangleUVs(uvs); err != nil {
		return nil, err
	}
	m.SetTexturePath(texturePath)
	env.Logger.Debugw("texture atlas written",
		"path", texturePath, "faces", len(faces), "resolution", p.Resolution)
	return m, nil
}
