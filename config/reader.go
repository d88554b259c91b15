package config

import (
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Read loads and validates a configuration file. Environment variables in
// the file are substituted before parsing. Plain JSON and JSON5 (comments,
// trailing commas) are told apart by extension.
func Read(path string, logger golog.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := FromBytes(path, buf)
	if err != nil {
		return nil, err
	}
	logger.Debugw("loaded config", "path", path, "steps", len(cfg.Steps))
	return cfg, nil
}

// FromBytes parses and validates configuration data; path picks the
// dialect and locates errors.
func FromBytes(path string, data []byte) (*Config, error) {
	var cfg Config
	switch filepath.Ext(path) {
	case ".json", ".json5":
		if err := json5.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse config %q", path)
		}
	default:
		return nil, errors.Errorf("do not know how to parse config file %q", path)
	}
	if err := cfg.Ensure(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", path)
	}
	return &cfg, nil
}
