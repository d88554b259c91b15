package pointcloud

import (
	"github.com/pkg/errors"
)

// Colors holds optional per-point color channels. Any subset of channels
// may be present; a present channel has exactly one value per point.
// Channel values are conventionally in [0,255] but are not clamped here.
type Colors struct {
	Red   []float64
	Green []float64
	Blue  []float64
	Nir   []float64
}

// Any reports whether at least one channel is present.
func (c Colors) Any() bool {
	return c.Red != nil || c.Green != nil || c.Blue != nil || c.Nir != nil
}

func (c Colors) validate(size int) error {
	for _, ch := range []struct {
		name   string
		values []float64
	}{
		{"red", c.Red},
		{"green", c.Green},
		{"blue", c.Blue},
		{"nir", c.Nir},
	} {
		if ch.values != nil && len(ch.values) != size {
			return errors.Errorf("color channel %q has %d values, expected %d", ch.name, len(ch.values), size)
		}
	}
	return nil
}

// Normalized maps every present channel into [0,1] across the cloud. A
// constant channel (max == min) normalizes to all zeros rather than NaN.
func (c Colors) Normalized() Colors {
	return Colors{
		Red:   normalizeChannel(c.Red),
		Green: normalizeChannel(c.Green),
		Blue:  normalizeChannel(c.Blue),
		Nir:   normalizeChannel(c.Nir),
	}
}

func normalizeChannel(values []float64) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		return out
	}
	span := max - min
	for i, v := range values {
		out[i] = (v - min) / span
	}
	return out
}

func (c Colors) selectRows(rows []int) Colors {
	return Colors{
		Red:   selectFloats(c.Red, rows),
		Green: selectFloats(c.Green, rows),
		Blue:  selectFloats(c.Blue, rows),
		Nir:   selectFloats(c.Nir, rows),
	}
}

func selectFloats(values []float64, rows []int) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}
