package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/cloudmesh/pointcloud"
)

const objMaterialName = "material_0"

// NewFromOBJFile returns a mesh read from the Wavefront obj file at fn.
// When the file references a material library, the texture image is
// resolved through it; a missing or unreadable library downgrades the
// mesh to untextured with a warning instead of failing the read.
func NewFromOBJFile(fn string, logger golog.Logger) (*Mesh, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	m, mtllib, err := ReadOBJ(f, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading obj file %q", fn)
	}
	if mtllib != "" {
		mtlPath := filepath.Join(filepath.Dir(fn), mtllib)
		texture, err := textureFromMTL(mtlPath)
		switch {
		case err != nil:
			logger.Warnw("could not read material library", "path", mtlPath, "error", err)
		case texture != "":
			if !filepath.IsAbs(texture) {
				texture = filepath.Join(filepath.Dir(mtlPath), texture)
			}
			m.SetTexturePath(texture)
		}
	}
	return m, nil
}

// ReadOBJ parses a mesh from r. The obj format carries no vertex color
// channels. The returned string is the material library reference, if
// any; resolving it into a texture path is the caller's business.
func ReadOBJ(r io.Reader, logger golog.Logger) (*Mesh, string, error) {
	var (
		positions   []r3.Vector
		normalsList []r3.Vector
		uvList      []UV
		faces       []Face
		faceNormals [][3]int
		faceUVs     [][3]int
		mtllib      string
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			vec, err := objVector(fields, lineNo)
			if err != nil {
				return nil, "", err
			}
			positions = append(positions, vec)
		case "vn":
			vec, err := objVector(fields, lineNo)
			if err != nil {
				return nil, "", err
			}
			normalsList = append(normalsList, vec)
		case "vt":
			if len(fields) < 3 {
				return nil, "", errors.Errorf("line %d: texture coordinate needs two values", lineNo)
			}
			u, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, "", errors.Wrapf(err, "line %d", lineNo)
			}
			v, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, "", errors.Wrapf(err, "line %d", lineNo)
			}
			uvList = append(uvList, UV{Row: 1 - v, Col: u})
		case "f":
			if len(fields) != 4 {
				return nil, "", errors.Errorf("line %d: face has %d vertices, only triangles are supported", lineNo, len(fields)-1)
			}
			var face Face
			var fn, fuv [3]int
			for k, ref := range fields[1:4] {
				vi, ti, ni, err := objFaceRef(ref, lineNo, len(positions), len(uvList), len(normalsList))
				if err != nil {
					return nil, "", err
				}
				face[k] = vi
				fuv[k] = ti
				fn[k] = ni
			}
			faces = append(faces, face)
			faceUVs = append(faceUVs, fuv)
			faceNormals = append(faceNormals, fn)
		case "mtllib":
			if mtllib == "" && len(fields) >= 2 {
				mtllib = strings.Join(fields[1:], " ")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", err
	}

	cloud := pointcloud.NewFromPositions(positions)
	m := New(cloud)
	if err := m.SetFaces(faces); err != nil {
		return nil, "", err
	}
	if err := attachOBJNormals(m, cloud, normalsList, faceNormals, logger); err != nil {
		return nil, "", err
	}
	if err := attachOBJUVs(m, uvList, faceUVs); err != nil {
		return nil, "", err
	}
	return m, mtllib, nil
}

func objVector(fields []string, lineNo int) (r3.Vector, error) {
	if len(fields) < 4 {
		return r3.Vector{}, errors.Errorf("line %d: vertex needs three values", lineNo)
	}
	var vals [3]float64
	for i, f := range fields[1:4] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vector{}, errors.Wrapf(err, "line %d", lineNo)
		}
		vals[i] = v
	}
	return r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// objFaceRef parses one face corner of the form v, v/t, v//n or v/t/n
// into zero-based indices, with -1 for absent parts. Negative obj indices
// count back from the current list end.
func objFaceRef(ref string, lineNo, nPos, nUV, nNorm int) (vi, ti, ni int, err error) {
	parts := strings.Split(ref, "/")
	if len(parts) > 3 {
		return 0, 0, 0, errors.Errorf("line %d: malformed face corner %q", lineNo, ref)
	}
	resolve := func(s string, n int) (int, error) {
		if s == "" {
			return -1, nil
		}
		idx, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.Wrapf(err, "line %d", lineNo)
		}
		switch {
		case idx > 0:
			return idx - 1, nil
		case idx < 0 && n+idx >= 0:
			return n + idx, nil
		default:
			return 0, errors.Errorf("line %d: obj index %d out of range", lineNo, idx)
		}
	}
	if vi, err = resolve(parts[0], nPos); err != nil {
		return 0, 0, 0, err
	}
	ti = -1
	if len(parts) >= 2 {
		if ti, err = resolve(parts[1], nUV); err != nil {
			return 0, 0, 0, err
		}
	}
	ni = -1
	if len(parts) == 3 {
		if ni, err = resolve(parts[2], nNorm); err != nil {
			return 0, 0, 0, err
		}
	}
	return vi, ti, ni, nil
}

// attachOBJNormals converts per-corner normal references to the per-vertex
// normals column. Normals that do not cover every vertex cannot fill the
// column and are dropped with a warning.
func attachOBJNormals(
	m *Mesh,
	cloud *pointcloud.PointCloud,
	normalsList []r3.Vector,
	faceNormals [][3]int,
	logger golog.Logger,
) error {
	any := false
	for _, fn := range faceNormals {
		for _, ni := range fn {
			if ni >= 0 {
				any = true
			}
		}
	}
	if !any {
		return nil
	}
	normals := make([]r3.Vector, cloud.Size())
	seen := make([]bool, cloud.Size())
	faces, err := m.Faces()
	if err != nil {
		return err
	}
	for i, fn := range faceNormals {
		for k, ni := range fn {
			if ni < 0 {
				continue
			}
			if ni >= len(normalsList) {
				return errors.Errorf("face %d references normal %d out of range [0,%d)", i, ni, len(normalsList))
			}
			vi := faces[i][k]
			normals[vi] = normalsList[ni]
			seen[vi] = true
		}
	}
	for _, ok := range seen {
		if !ok {
			logger.Warnw("obj normals do not cover every vertex; dropping them")
			return nil
		}
	}
	return cloud.SetNormals(normals)
}

// attachOBJUVs converts per-corner texture coordinate references to the
// per-face table. Faces must be uniformly textured or untextured.
func attachOBJUVs(m *Mesh, uvList []UV, faceUVs [][3]int) error {
	any := false
	for _, fuv := range faceUVs {
		for _, ti := range fuv {
			if ti >= 0 {
				any = true
			}
		}
	}
	if !any {
		return nil
	}
	uvs := make([]TriangleUV, len(faceUVs))
	for i, fuv := range faceUVs {
		for k, ti := range fuv {
			if ti < 0 {
				return errors.Errorf("face %d mixes textured and untextured corners", i)
			}
			if ti >= len(uvList) {
				return errors.Errorf("face %d references texture coordinate %d out of range [0,%d)", i, ti, len(uvList))
			}
			uvs[i][k] = uvList[ti]
		}
	}
	return m.SetTriangleUVs(uvs)
}

func textureFromMTL(fn string) (string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return "", err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "map_Kd" {
			return strings.Join(fields[1:], " "), nil
		}
	}
	return "", scanner.Err()
}

// ToOBJ writes the mesh to out as a Wavefront obj file. The obj format
// carries no vertex color channels, so any color columns are not written.
// mtllib names the material library to reference when the mesh is
// textured; pass "" to skip the reference.
func ToOBJ(m *Mesh, out io.Writer, mtllib string) error {
	cloud := m.Cloud()
	var err error
	var normals []r3.Vector
	if cloud.HasNormals() {
		if normals, err = cloud.Normals(); err != nil {
			return err
		}
	}
	var uvs []TriangleUV
	if m.HasFaces() && m.HasTriangleUVs() {
		if uvs, err = m.TriangleUVs(); err != nil {
			return err
		}
	}

	w := bufio.NewWriter(out)
	if mtllib != "" {
		if _, err = fmt.Fprintf(w, "mtllib %s\nusemtl %s\n", mtllib, objMaterialName); err != nil {
			return err
		}
	}
	for i := 0; i < cloud.Size(); i++ {
		pos := cloud.At(i)
		if _, err = fmt.Fprintf(w, "v %s %s %s\n", formatFloat(pos.X), formatFloat(pos.Y), formatFloat(pos.Z)); err != nil {
			return err
		}
	}
	for _, n := range normals {
		if _, err = fmt.Fprintf(w, "vn %s %s %s\n", formatFloat(n.X), formatFloat(n.Y), formatFloat(n.Z)); err != nil {
			return err
		}
	}
	for _, uv := range uvs {
		for _, corner := range uv {
			if _, err = fmt.Fprintf(w, "vt %s %s\n", formatFloat(corner.Col), formatFloat(1-corner.Row)); err != nil {
				return err
			}
		}
	}
	if m.HasFaces() {
		faces, err := m.Faces()
		if err != nil {
			return err
		}
		for i, f := range faces {
			if err := writeOBJFace(w, i, f, normals != nil, uvs != nil); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func writeOBJFace(w io.Writer, i int, f Face, hasNormals, hasUVs bool) error {
	corners := make([]string, 3)
	for k, vi := range f {
		v := strconv.Itoa(vi + 1)
		switch {
		case hasNormals && hasUVs:
			corners[k] = v + "/" + strconv.Itoa(3*i+k+1) + "/" + v
		case hasUVs:
			corners[k] = v + "/" + strconv.Itoa(3*i+k+1)
		case hasNormals:
			corners[k] = v + "//" + v
		default:
			corners[k] = v
		}
	}
	_, err := fmt.Fprintf(w, "f %s %s %s\n", corners[0], corners[1], corners[2])
	return err
}

// WriteToOBJFile writes the mesh to fn, with a material library sidecar
// next to it when the mesh is textured.
func WriteToOBJFile(m *Mesh, fn string) (err error) {
	mtllib := ""
	if m.HasTexture() {
		mtllib = strings.TrimSuffix(filepath.Base(fn), filepath.Ext(fn)) + ".mtl"
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if err := ToOBJ(m, f, mtllib); err != nil {
		return err
	}
	if mtllib == "" {
		return nil
	}
	return writeMTLFile(filepath.Join(filepath.Dir(fn), mtllib), m.TexturePath())
}

func writeMTLFile(fn, texturePath string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	_, err = fmt.Fprintf(f, "newmtl %s\nKa 1.0 1.0 1.0\nKd 1.0 1.0 1.0\nmap_Kd %s\n", objMaterialName, filepath.Base(texturePath))
	return err
}
