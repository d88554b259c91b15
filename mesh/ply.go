package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/cloudmesh/pointcloud"
)

// PLYFormat is the on-disk encoding of a ply file.
type PLYFormat int

const (
	// PLYAscii is the human readable ply encoding.
	PLYAscii PLYFormat = 0
	// PLYBinary is the little-endian binary ply encoding.
	PLYBinary PLYFormat = 1
)

// NewFromPLYFile returns a mesh read from the ply file at fn. A relative
// texture reference is resolved against the file's directory.
func NewFromPLYFile(fn string, logger golog.Logger) (*Mesh, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	m, err := ReadPLY(f, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading ply file %q", fn)
	}
	resolveTexturePath(m, fn)
	return m, nil
}

func resolveTexturePath(m *Mesh, fn string) {
	path := m.TexturePath()
	if path == "" || filepath.IsAbs(path) {
		return
	}
	m.SetTexturePath(filepath.Join(filepath.Dir(fn), path))
}

// ReadPLY parses a mesh from r. Both ascii and binary little-endian
// encodings are accepted. The texture path, when present, is kept exactly
// as written in the file.
func ReadPLY(r io.Reader, logger golog.Logger) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	header, err := parsePLYHeader(data)
	if err != nil {
		return nil, err
	}
	for name := range header.vertexProps {
		if !knownVertexProps[name] {
			logger.Debugw("ignoring unsupported ply vertex property", "name", name)
		}
	}

	ply := goply.New(bytes.NewReader(data))
	cloud, err := plyVertices(ply, header)
	if err != nil {
		return nil, err
	}
	m := New(cloud)
	if err := plyFaces(ply, header, m); err != nil {
		return nil, err
	}
	m.SetTexturePath(header.texturePath)
	return m, nil
}

var knownVertexProps = map[string]bool{
	"x": true, "y": true, "z": true,
	"red": true, "green": true, "blue": true, "nir": true,
	"nx": true, "ny": true, "nz": true,
	"classification": true,
}

type plyHeader struct {
	texturePath string
	vertexProps map[string]bool
	faceProps   map[string]bool
}

// parsePLYHeader scans the textual header for the property layout and the
// TextureFile comment. Channel presence has to come from the header so
// that files with zero vertices keep their declared channels.
func parsePLYHeader(data []byte) (*plyHeader, error) {
	header := &plyHeader{
		vertexProps: map[string]bool{},
		faceProps:   map[string]bool{},
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ply" {
		return nil, errors.New("not a ply file: missing magic number")
	}
	element := ""
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment":
			if len(fields) >= 3 && fields[1] == "TextureFile" {
				header.texturePath = strings.Join(fields[2:], " ")
			}
		case "element":
			if len(fields) >= 2 {
				element = fields[1]
			}
		case "property":
			name := fields[len(fields)-1]
			switch element {
			case "vertex":
				header.vertexProps[name] = true
			case "face":
				header.faceProps[name] = true
			}
		case "end_header":
			if !header.vertexProps["x"] || !header.vertexProps["y"] || !header.vertexProps["z"] {
				return nil, errors.New("ply file has no x, y, z vertex properties")
			}
			return header, nil
		}
	}
	return nil, errors.New("not a ply file: missing end_header")
}

func plyVertices(ply *goply.Ply, header *plyHeader) (*pointcloud.PointCloud, error) {
	vertices := ply.Elements("vertex")
	n := len(vertices)
	cloud := pointcloud.NewWithPrealloc(n)

	normalProps := 0
	for _, name := range []string{"nx", "ny", "nz"} {
		if header.vertexProps[name] {
			normalProps++
		}
	}
	if normalProps != 0 && normalProps != 3 {
		return nil, errors.New("normal properties nx, ny, nz must be present together")
	}
	hasNormals := normalProps == 3
	hasClasses := header.vertexProps["classification"]

	var colors pointcloud.Colors
	if header.vertexProps["red"] {
		colors.Red = make([]float64, 0, n)
	}
	if header.vertexProps["green"] {
		colors.Green = make([]float64, 0, n)
	}
	if header.vertexProps["blue"] {
		colors.Blue = make([]float64, 0, n)
	}
	if header.vertexProps["nir"] {
		colors.Nir = make([]float64, 0, n)
	}
	var normals []r3.Vector
	if hasNormals {
		normals = make([]r3.Vector, 0, n)
	}
	var classes []int
	if hasClasses {
		classes = make([]int, 0, n)
	}

	for i, v := range vertices {
		x, err := vertexFloat(v, "x", i)
		if err != nil {
			return nil, err
		}
		y, err := vertexFloat(v, "y", i)
		if err != nil {
			return nil, err
		}
		z, err := vertexFloat(v, "z", i)
		if err != nil {
			return nil, err
		}
		if err := cloud.Append(r3.Vector{X: x, Y: y, Z: z}); err != nil {
			return nil, err
		}
		if colors.Red != nil {
			val, err := vertexFloat(v, "red", i)
			if err != nil {
				return nil, err
			}
			colors.Red = append(colors.Red, val)
		}
		if colors.Green != nil {
			val, err := vertexFloat(v, "green", i)
			if err != nil {
				return nil, err
			}
			colors.Green = append(colors.Green, val)
		}
		if colors.Blue != nil {
			val, err := vertexFloat(v, "blue", i)
			if err != nil {
				return nil, err
			}
			colors.Blue = append(colors.Blue, val)
		}
		if colors.Nir != nil {
			val, err := vertexFloat(v, "nir", i)
			if err != nil {
				return nil, err
			}
			colors.Nir = append(colors.Nir, val)
		}
		if hasNormals {
			nx, err := vertexFloat(v, "nx", i)
			if err != nil {
				return nil, err
			}
			ny, err := vertexFloat(v, "ny", i)
			if err != nil {
				return nil, err
			}
			nz, err := vertexFloat(v, "nz", i)
			if err != nil {
				return nil, err
			}
			normals = append(normals, r3.Vector{X: nx, Y: ny, Z: nz})
		}
		if hasClasses {
			val, err := vertexFloat(v, "classification", i)
			if err != nil {
				return nil, err
			}
			classes = append(classes, int(val))
		}
	}

	if colors.Any() {
		if err := cloud.SetColors(colors); err != nil {
			return nil, err
		}
	}
	if hasNormals {
		if err := cloud.SetNormals(normals); err != nil {
			return nil, err
		}
	}
	if hasClasses {
		if err := cloud.SetClasses(classes); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

func plyFaces(ply *goply.Ply, header *plyHeader, m *Mesh) error {
	faceElems := ply.Elements("face")
	if len(faceElems) == 0 {
		return nil
	}
	hasUVs := header.faceProps["texcoord"]
	faces := make([]Face, 0, len(faceElems))
	var uvs []TriangleUV
	if hasUVs {
		uvs = make([]TriangleUV, 0, len(faceElems))
	}
	for i, f := range faceElems {
		idx, err := faceList(f, i, "vertex_indices", "vertex_index")
		if err != nil {
			return err
		}
		if len(idx) != 3 {
			return errors.Errorf("face %d has %d vertices, only triangles are supported", i, len(idx))
		}
		faces = append(faces, Face{int(idx[0]), int(idx[1]), int(idx[2])})
		if hasUVs {
			tc, err := faceList(f, i, "texcoord")
			if err != nil {
				return err
			}
			if len(tc) != 6 {
				return errors.Errorf("face %d has %d texture coordinates, expected 6", i, len(tc))
			}
			uvs = append(uvs, TriangleUV{
				{Row: tc[1], Col: tc[0]},
				{Row: tc[3], Col: tc[2]},
				{Row: tc[5], Col: tc[4]},
			})
		}
	}
	if err := m.SetFaces(faces); err != nil {
		return err
	}
	if hasUVs {
		if err := m.SetTriangleUVs(uvs); err != nil {
			return err
		}
	}
	return nil
}

func vertexFloat(props map[string]interface{}, name string, row int) (float64, error) {
	raw, ok := props[name]
	if !ok {
		return 0, errors.Errorf("vertex %d has no %q property", row, name)
	}
	val, ok := numericValue(raw)
	if !ok {
		return 0, errors.Errorf("vertex %d has a non-numeric %q property", row, name)
	}
	return val, nil
}

// faceList returns the first named list property of a face element,
// coerced to float64 regardless of how the decoder typed the values.
func faceList(props map[string]interface{}, row int, names ...string) ([]float64, error) {
	for _, name := range names {
		raw, ok := props[name]
		if !ok {
			continue
		}
		list, ok := raw.([]interface{})
		if !ok {
			return nil, errors.Errorf("face %d has an unsupported %q list encoding", row, name)
		}
		out := make([]float64, len(list))
		for i, e := range list {
			val, ok := numericValue(e)
			if !ok {
				return nil, errors.Errorf("face %d has a non-numeric %q entry", row, name)
			}
			out[i] = val
		}
		return out, nil
	}
	return nil, errors.Errorf("face %d has no %q property", row, names[0])
}

func numericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// ToPLY writes the mesh to out as a ply file. A mesh with an empty face
// table is written vertex-only. Vertex channels are written as double
// properties so values survive a round trip unchanged.
func ToPLY(m *Mesh, out io.Writer, format PLYFormat) error {
	var formatName string
	switch format {
	case PLYAscii:
		formatName = "ascii"
	case PLYBinary:
		formatName = "binary_little_endian"
	default:
		return errors.Errorf("unknown ply format %d", format)
	}

	cloud := m.Cloud()
	var err error
	var colors pointcloud.Colors
	if cloud.HasColors() {
		if colors, err = cloud.Colors(); err != nil {
			return err
		}
	}
	var normals []r3.Vector
	if cloud.HasNormals() {
		if normals, err = cloud.Normals(); err != nil {
			return err
		}
	}
	var classes []int
	if cloud.HasClasses() {
		if classes, err = cloud.Classes(); err != nil {
			return err
		}
	}
	channels := []plyChannel{
		{"red", colors.Red},
		{"green", colors.Green},
		{"blue", colors.Blue},
		{"nir", colors.Nir},
	}
	var uvs []TriangleUV
	if m.HasFaces() && m.HasTriangleUVs() {
		if uvs, err = m.TriangleUVs(); err != nil {
			return err
		}
	}

	w := bufio.NewWriter(out)
	if _, err = fmt.Fprintf(w, "ply\nformat %s 1.0\n", formatName); err != nil {
		return err
	}
	if m.TexturePath() != "" {
		if _, err = fmt.Fprintf(w, "comment TextureFile %s\n", filepath.Base(m.TexturePath())); err != nil {
			return err
		}
	}
	if _, err = fmt.Fprintf(w, "element vertex %d\n", cloud.Size()); err != nil {
		return err
	}
	if _, err = fmt.Fprint(w, "property double x\nproperty double y\nproperty double z\n"); err != nil {
		return err
	}
	for _, ch := range channels {
		if ch.values == nil {
			continue
		}
		if _, err = fmt.Fprintf(w, "property double %s\n", ch.name); err != nil {
			return err
		}
	}
	if normals != nil {
		if _, err = fmt.Fprint(w, "property double nx\nproperty double ny\nproperty double nz\n"); err != nil {
			return err
		}
	}
	if classes != nil {
		if _, err = fmt.Fprint(w, "property int classification\n"); err != nil {
			return err
		}
	}
	if m.HasFaces() {
		if _, err = fmt.Fprintf(w, "element face %d\nproperty list uchar int vertex_indices\n", m.FaceCount()); err != nil {
			return err
		}
		if uvs != nil {
			if _, err = fmt.Fprint(w, "property list uchar double texcoord\n"); err != nil {
				return err
			}
		}
	}
	if _, err = fmt.Fprint(w, "end_header\n"); err != nil {
		return err
	}

	switch format {
	case PLYAscii:
		err = writePLYAscii(w, m, cloud, channels, normals, classes, uvs)
	case PLYBinary:
		err = writePLYBinary(w, m, cloud, channels, normals, classes, uvs)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

type plyChannel struct {
	name   string
	values []float64
}

func writePLYAscii(
	w io.Writer,
	m *Mesh,
	cloud *pointcloud.PointCloud,
	channels []plyChannel,
	normals []r3.Vector,
	classes []int,
	uvs []TriangleUV,
) error {
	fields := make([]string, 0, 11)
	for i := 0; i < cloud.Size(); i++ {
		pos := cloud.At(i)
		fields = append(fields[:0], formatFloat(pos.X), formatFloat(pos.Y), formatFloat(pos.Z))
		for _, ch := range channels {
			if ch.values != nil {
				fields = append(fields, formatFloat(ch.values[i]))
			}
		}
		if normals != nil {
			n := normals[i]
			fields = append(fields, formatFloat(n.X), formatFloat(n.Y), formatFloat(n.Z))
		}
		if classes != nil {
			fields = append(fields, strconv.Itoa(classes[i]))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	if !m.HasFaces() {
		return nil
	}
	faces, err := m.Faces()
	if err != nil {
		return err
	}
	for i, f := range faces {
		fields = append(fields[:0], "3", strconv.Itoa(f[0]), strconv.Itoa(f[1]), strconv.Itoa(f[2]))
		if uvs != nil {
			uv := uvs[i]
			fields = append(fields, "6",
				formatFloat(uv[0].Col), formatFloat(uv[0].Row),
				formatFloat(uv[1].Col), formatFloat(uv[1].Row),
				formatFloat(uv[2].Col), formatFloat(uv[2].Row))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

func writePLYBinary(
	w io.Writer,
	m *Mesh,
	cloud *pointcloud.PointCloud,
	channels []plyChannel,
	normals []r3.Vector,
	classes []int,
	uvs []TriangleUV,
) error {
	buf := make([]byte, 8)
	putFloat := func(v float64) error {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		_, err := w.Write(buf[:8])
		return err
	}
	putInt := func(v int) error {
		binary.LittleEndian.PutUint32(buf[:4], uint32(int32(v)))
		_, err := w.Write(buf[:4])
		return err
	}
	putByte := func(v byte) error {
		buf[0] = v
		_, err := w.Write(buf[:1])
		return err
	}

	for i := 0; i < cloud.Size(); i++ {
		pos := cloud.At(i)
		for _, v := range []float64{pos.X, pos.Y, pos.Z} {
			if err := putFloat(v); err != nil {
				return err
			}
		}
		for _, ch := range channels {
			if ch.values == nil {
				continue
			}
			if err := putFloat(ch.values[i]); err != nil {
				return err
			}
		}
		if normals != nil {
			n := normals[i]
			for _, v := range []float64{n.X, n.Y, n.Z} {
				if err := putFloat(v); err != nil {
					return err
				}
			}
		}
		if classes != nil {
			if err := putInt(classes[i]); err != nil {
				return err
			}
		}
	}
	if !m.HasFaces() {
		return nil
	}
	faces, err := m.Faces()
	if err != nil {
		return err
	}
	for i, f := range faces {
		if err := putByte(3); err != nil {
			return err
		}
		for _, v := range f {
			if err := putInt(v); err != nil {
				return err
			}
		}
		if uvs == nil {
			continue
		}
		if err := putByte(6); err != nil {
			return err
		}
		uv := uvs[i]
		for _, v := range []float64{uv[0].Col, uv[0].Row, uv[1].Col, uv[1].Row, uv[2].Col, uv[2].Row} {
			if err := putFloat(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteToPLYFile writes the mesh to fn in the binary little-endian
// encoding.
func WriteToPLYFile(m *Mesh, fn string) error {
	return writePLYFile(m, fn, PLYBinary)
}

// WriteToPLYFileASCII writes the mesh to fn in the ascii encoding.
func WriteToPLYFileASCII(m *Mesh, fn string) error {
	return writePLYFile(m, fn, PLYAscii)
}

func writePLYFile(m *Mesh, fn string, format PLYFormat) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ToPLY(m, f, format)
}
