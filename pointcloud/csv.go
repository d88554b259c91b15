package pointcloud

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// Tabular layout: mandatory x, y, z columns plus any of the optional
// attribute columns, identified by header name.
var csvColumnNames = map[string]bool{
	"x": true, "y": true, "z": true,
	"red": true, "green": true, "blue": true, "nir": true,
	"n_x": true, "n_y": true, "n_z": true,
	"classification": true,
}

// NewFromCSVFile returns a point cloud read from a named-column CSV file.
func NewFromCSVFile(fn string) (*PointCloud, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadCSV(f)
}

// ReadCSV reads a cloud from named-column tabular data.
func ReadCSV(in io.Reader) (*PointCloud, error) {
	r := csv.NewReader(in)
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read csv header")
	}
	cols := map[string]int{}
	for i, name := range header {
		if !csvColumnNames[name] {
			return nil, errors.Errorf("unsupported csv column %q", name)
		}
		if _, ok := cols[name]; ok {
			return nil, errors.Errorf("duplicate csv column %q", name)
		}
		cols[name] = i
	}
	for _, name := range []string{"x", "y", "z"} {
		if _, ok := cols[name]; !ok {
			return nil, errors.Errorf("csv header is missing mandatory column %q", name)
		}
	}
	_, hasNX := cols["n_x"]
	_, hasNY := cols["n_y"]
	_, hasNZ := cols["n_z"]
	hasNormals := hasNX || hasNY || hasNZ
	if hasNormals && !(hasNX && hasNY && hasNZ) {
		return nil, errors.New("normal columns n_x, n_y, n_z must be present together")
	}

	cloud := New()
	colors := Colors{}
	if _, ok := cols["red"]; ok {
		colors.Red = []float64{}
	}
	if _, ok := cols["green"]; ok {
		colors.Green = []float64{}
	}
	if _, ok := cols["blue"]; ok {
		colors.Blue = []float64{}
	}
	if _, ok := cols["nir"]; ok {
		colors.Nir = []float64{}
	}
	var normals []r3.Vector
	var classes []int
	_, hasClasses := cols["classification"]

	floatAt := func(record []string, name string) (float64, error) {
		v, err := strconv.ParseFloat(record[cols[name]], 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid value for column %q", name)
		}
		return v, nil
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		x, err := floatAt(record, "x")
		if err != nil {
			return nil, err
		}
		y, err := floatAt(record, "y")
		if err != nil {
			return nil, err
		}
		z, err := floatAt(record, "z")
		if err != nil {
			return nil, err
		}
		if err := cloud.Append(r3.Vector{X: x, Y: y, Z: z}); err != nil {
			return nil, err
		}
		for _, ch := range []struct {
			name   string
			values *[]float64
		}{
			{"red", &colors.Red},
			{"green", &colors.Green},
			{"blue", &colors.Blue},
			{"nir", &colors.Nir},
		} {
			if _, ok := cols[ch.name]; !ok {
				continue
			}
			v, err := floatAt(record, ch.name)
			if err != nil {
				return nil, err
			}
			*ch.values = append(*ch.values, v)
		}
		if hasNormals {
			nx, err := floatAt(record, "n_x")
			if err != nil {
				return nil, err
			}
			ny, err := floatAt(record, "n_y")
			if err != nil {
				return nil, err
			}
			nz, err := floatAt(record, "n_z")
			if err != nil {
				return nil, err
			}
			normals = append(normals, r3.Vector{X: nx, Y: ny, Z: nz})
		}
		if hasClasses {
			c, err := strconv.Atoi(record[cols["classification"]])
			if err != nil {
				return nil, errors.Wrap(err, "invalid value for column \"classification\"")
			}
			classes = append(classes, c)
		}
	}

	if colors.Any() {
		if err := cloud.SetColors(colors); err != nil {
			return nil, err
		}
	}
	if hasNormals {
		if normals == nil {
			normals = []r3.Vector{}
		}
		if err := cloud.SetNormals(normals); err != nil {
			return nil, err
		}
	}
	if hasClasses {
		if classes == nil {
			classes = []int{}
		}
		if err := cloud.SetClasses(classes); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

// WriteToCSVFile writes the point cloud out to a named-column CSV file.
func WriteToCSVFile(cloud *PointCloud, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	err = WriteCSV(cloud, f)
	return
}

// WriteCSV writes the cloud as named-column tabular data, one header row
// then one row per point, columns in canonical order.
func WriteCSV(cloud *PointCloud, out io.Writer) error {
	w := csv.NewWriter(out)

	header := []string{"x", "y", "z"}
	channels := []struct {
		name   string
		values []float64
	}{
		{"red", cloud.colors.Red},
		{"green", cloud.colors.Green},
		{"blue", cloud.colors.Blue},
		{"nir", cloud.colors.Nir},
	}
	for _, ch := range channels {
		if ch.values != nil {
			header = append(header, ch.name)
		}
	}
	if cloud.normals != nil {
		header = append(header, "n_x", "n_y", "n_z")
	}
	if cloud.classes != nil {
		header = append(header, "classification")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	record := make([]string, 0, len(header))
	fmtFloat := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i := 0; i < cloud.Size(); i++ {
		record = record[:0]
		pos := cloud.positions[i]
		record = append(record, fmtFloat(pos.X), fmtFloat(pos.Y), fmtFloat(pos.Z))
		for _, ch := range channels {
			if ch.values != nil {
				record = append(record, fmtFloat(ch.values[i]))
			}
		}
		if cloud.normals != nil {
			nv := cloud.normals[i]
			record = append(record, fmtFloat(nv.X), fmtFloat(nv.Y), fmtFloat(nv.Z))
		}
		if cloud.classes != nil {
			record = append(record, strconv.Itoa(cloud.classes[i]))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
