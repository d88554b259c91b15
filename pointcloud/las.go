package pointcloud

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/edaniels/golog"
	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

const (
	maxPreciseFloat64 = float64(1 << 53)
	minPreciseFloat64 = -float64(1 << 53)
)

// LAS carries the optional columns that have no native slot in point
// formats 0 and 2 as variable length records, one record per column.
const (
	classDataTag   = "cm|class"
	nirDataTag     = "cm|nir"
	normalDataTag  = "cm|normals"
	channelListTag = "cm|channels"
)

// NewFromLASFile returns a point cloud read from a LAS file. Potential
// float lossiness of coordinates is reported but is not an error.
func NewFromLASFile(fn string, logger golog.Logger) (*PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	var classData, nirData, normalData []byte
	var channelNames string
	hasChannelList := false
	for _, d := range lf.VlrData {
		switch d.Description {
		case classDataTag:
			classData = d.BinaryData
		case nirDataTag:
			nirData = d.BinaryData
		case normalDataTag:
			normalData = d.BinaryData
		case channelListTag:
			channelNames = string(d.BinaryData)
			hasChannelList = true
		}
	}

	n := lf.Header.NumberPoints
	cloud := NewWithPrealloc(n)
	hasRGB := lf.Header.PointFormatID == 2
	var red, green, blue []float64
	if hasRGB {
		red = make([]float64, 0, n)
		green = make([]float64, 0, n)
		blue = make([]float64, 0, n)
	}
	for i := 0; i < n; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()

		x, y, z := data.X, data.Y, data.Z
		if x < minPreciseFloat64 || x > maxPreciseFloat64 ||
			y < minPreciseFloat64 || y > maxPreciseFloat64 ||
			z < minPreciseFloat64 || z > maxPreciseFloat64 {
			logger.Warnw("potential floating point lossiness for LAS point", "x", x, "y", y, "z", z)
		}
		if err := cloud.Append(r3.Vector{X: x, Y: y, Z: z}); err != nil {
			return nil, err
		}

		if hasRGB {
			r, g, b := 255.0, 255.0, 255.0
			if rgb := p.RgbData(); rgb != nil {
				r = float64(rgb.Red / 256)
				g = float64(rgb.Green / 256)
				b = float64(rgb.Blue / 256)
			}
			red = append(red, r)
			green = append(green, g)
			blue = append(blue, b)
		}
	}

	colors := Colors{Red: red, Green: green, Blue: blue}
	if nirData != nil {
		nir, err := decodeFloatColumn(nirData, n, nirDataTag)
		if err != nil {
			return nil, err
		}
		colors.Nir = nir
	}
	if hasChannelList {
		colors = maskChannels(colors, channelNames)
	}
	if colors.Any() {
		if err := cloud.SetColors(colors); err != nil {
			return nil, err
		}
	}
	if classData != nil {
		if len(classData) != n*8 {
			return nil, errors.Errorf("classification record has %d bytes, expected %d", len(classData), n*8)
		}
		classes := make([]int, n)
		for i := range classes {
			classes[i] = int(binary.LittleEndian.Uint64(classData[i*8 : (i+1)*8]))
		}
		if err := cloud.SetClasses(classes); err != nil {
			return nil, err
		}
	}
	if normalData != nil {
		if len(normalData) != n*24 {
			return nil, errors.Errorf("normals record has %d bytes, expected %d", len(normalData), n*24)
		}
		normals := make([]r3.Vector, n)
		for i := range normals {
			off := i * 24
			normals[i] = r3.Vector{
				X: math.Float64frombits(binary.LittleEndian.Uint64(normalData[off : off+8])),
				Y: math.Float64frombits(binary.LittleEndian.Uint64(normalData[off+8 : off+16])),
				Z: math.Float64frombits(binary.LittleEndian.Uint64(normalData[off+16 : off+24])),
			}
		}
		if err := cloud.SetNormals(normals); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

func decodeFloatColumn(data []byte, n int, tag string) ([]float64, error) {
	if len(data) != n*8 {
		return nil, errors.Errorf("%s record has %d bytes, expected %d", tag, len(data), n*8)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : (i+1)*8]))
	}
	return out, nil
}

func maskChannels(c Colors, list string) Colors {
	present := map[string]bool{}
	for _, name := range strings.Split(list, ",") {
		present[strings.TrimSpace(name)] = true
	}
	if !present["red"] {
		c.Red = nil
	}
	if !present["green"] {
		c.Green = nil
	}
	if !present["blue"] {
		c.Blue = nil
	}
	if !present["nir"] {
		c.Nir = nil
	}
	return c
}

func channelList(c Colors) string {
	names := make([]string, 0, 4)
	if c.Red != nil {
		names = append(names, "red")
	}
	if c.Green != nil {
		names = append(names, "green")
	}
	if c.Blue != nil {
		names = append(names, "blue")
	}
	if c.Nir != nil {
		names = append(names, "nir")
	}
	return strings.Join(names, ",")
}

// WriteToLASFile writes the point cloud out to a LAS file. RGB channels map
// to point format 2 with 8-bit precision; NIR, normals and classification
// ride in variable length records so they survive a round trip.
func WriteToLASFile(cloud *PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	colors := cloud.colors
	hasRGB := colors.Red != nil || colors.Green != nil || colors.Blue != nil

	pointFormatID := 0
	if hasRGB {
		pointFormatID = 2
	}
	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: byte(pointFormatID),
	}); err != nil {
		return
	}

	for i := 0; i < cloud.Size(); i++ {
		pos := cloud.positions[i]
		var lp lidario.LasPointer
		pr0 := &lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			ScanAngle:     0,
			UserData:      0,
			PointSourceID: 1,
		}
		if cloud.classes != nil {
			pr0.ClassBitField.Value = byte(cloud.classes[i])
		}
		lp = pr0

		if hasRGB {
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB: &lidario.RgbData{
					Red:   lasColorValue(colors.Red, i),
					Green: lasColorValue(colors.Green, i),
					Blue:  lasColorValue(colors.Blue, i),
				},
			}
		}
		if err = lf.AddLasPoint(lp); err != nil {
			return
		}
	}

	if cloud.classes != nil {
		var buf bytes.Buffer
		b := make([]byte, 8)
		for _, v := range cloud.classes {
			binary.LittleEndian.PutUint64(b, uint64(v))
			buf.Write(b)
		}
		if err = addVLR(lf, classDataTag, buf.Bytes()); err != nil {
			return
		}
	}
	if colors.Nir != nil {
		if err = addVLR(lf, nirDataTag, encodeFloatColumn(colors.Nir)); err != nil {
			return
		}
	}
	if cloud.normals != nil {
		var buf bytes.Buffer
		b := make([]byte, 8)
		for _, nv := range cloud.normals {
			for _, f := range []float64{nv.X, nv.Y, nv.Z} {
				binary.LittleEndian.PutUint64(b, math.Float64bits(f))
				buf.Write(b)
			}
		}
		if err = addVLR(lf, normalDataTag, buf.Bytes()); err != nil {
			return
		}
	}
	if colors.Any() {
		if err = addVLR(lf, channelListTag, []byte(channelList(colors))); err != nil {
			return
		}
	}

	// nolint:nakedret
	return
}

func lasColorValue(channel []float64, i int) uint16 {
	v := 255.0
	if channel != nil {
		v = channel[i]
	}
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint16(math.Round(v)) * 256
}

func encodeFloatColumn(values []float64) []byte {
	var buf bytes.Buffer
	b := make([]byte, 8)
	for _, v := range values {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		buf.Write(b)
	}
	return buf.Bytes()
}

func addVLR(lf *lidario.LasFile, tag string, data []byte) error {
	return lf.AddVLR(lidario.VLR{
		UserID:                  "",
		Description:             tag,
		BinaryData:              data,
		RecordLengthAfterHeader: len(data),
	})
}
