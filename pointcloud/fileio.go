package pointcloud

import (
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// NewFromFile returns a pointcloud read in from the given file.
func NewFromFile(fn string, logger golog.Logger) (*PointCloud, error) {
	switch filepath.Ext(fn) {
	case ".las":
		return NewFromLASFile(fn, logger)
	case ".laz":
		return nil, errors.New("laz (compressed las) is not supported, decompress to .las first")
	case ".csv":
		return NewFromCSVFile(fn)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// WriteToFile writes the pointcloud out to the given file, dispatching on
// its extension.
func WriteToFile(cloud *PointCloud, fn string) error {
	switch filepath.Ext(fn) {
	case ".las":
		return WriteToLASFile(cloud, fn)
	case ".laz":
		return errors.New("laz (compressed las) is not supported, write .las instead")
	case ".csv":
		return WriteToCSVFile(cloud, fn)
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}
}
