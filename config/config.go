// Package config describes a pipeline run: the input data, the output
// location and the ordered step list, loaded from a JSON or JSON5 file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/pipeline"
)

// DefaultOutputName names the final result file when the configuration
// does not. The extension is chosen by the final data kind, so the name
// is a stem.
const DefaultOutputName = "output_cloudmesh"

// StoredConfigName is the file a run's effective configuration is written
// to inside the output directory.
const StoredConfigName = "used_config.json"

// Step is one configured pipeline operation.
type Step struct {
	Action     string                 `json:"action"`
	Method     string                 `json:"method"`
	Params     map[string]interface{} `json:"params,omitempty"`
	SaveOutput bool                   `json:"save_output,omitempty"`
}

// Config is a full pipeline run description.
type Config struct {
	InitialState string `json:"initial_state"`
	InputPath    string `json:"input_path"`
	OutputDir    string `json:"output_dir"`
	OutputName   string `json:"output_name,omitempty"`
	// OutputFormat forces the final artifact's file format. Empty picks
	// ply for meshes and las for clouds.
	OutputFormat string `json:"output_format,omitempty"`
	Steps        []Step `json:"steps"`
}

// outputFormats are the file formats the final artifact can take.
var outputFormats = map[string]bool{
	"las": true,
	"csv": true,
	"ply": true,
	"obj": true,
}

// cloudOnlyExts are input formats that can never carry triangle faces.
var cloudOnlyExts = map[string]bool{
	".las": true,
	".laz": true,
	".csv": true,
}

// Ensure checks the configuration and fills defaults. Unknown actions and
// data kinds are rejected here, at load time, before any registry lookup
// or file access.
func (c *Config) Ensure() error {
	if c.InitialState == "" {
		return goutils.NewConfigValidationFieldRequiredError("", "initial_state")
	}
	initial, err := pipeline.KindFromName(c.InitialState)
	if err != nil {
		return goutils.NewConfigValidationError("initial_state", err)
	}
	if c.InputPath == "" {
		return goutils.NewConfigValidationFieldRequiredError("", "input_path")
	}
	if initial == pipeline.KindMesh && cloudOnlyExts[filepath.Ext(c.InputPath)] {
		return goutils.NewConfigValidationError("input_path",
			errors.Errorf("a mesh initial state cannot load from the point cloud file %q", c.InputPath))
	}
	if c.OutputDir == "" {
		return goutils.NewConfigValidationFieldRequiredError("", "output_dir")
	}
	if c.OutputName == "" {
		c.OutputName = DefaultOutputName
	}
	if filepath.Ext(c.OutputName) != "" {
		return goutils.NewConfigValidationError("output_name",
			errors.Errorf("%q must not carry an extension, the final data kind chooses it", c.OutputName))
	}
	if c.OutputFormat != "" && !outputFormats[c.OutputFormat] {
		return goutils.NewConfigValidationError("output_format",
			errors.Errorf("unknown output format %q, expected las, csv, ply or obj", c.OutputFormat))
	}
	for i, s := range c.Steps {
		path := fmt.Sprintf("steps.%d", i)
		if s.Action == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "action")
		}
		if _, err := pipeline.ActionFromName(s.Action); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
		if s.Method == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "method")
		}
	}
	return nil
}

// InitialKind returns the parsed initial data kind. Ensure must have
// accepted the config first.
func (c *Config) InitialKind() (pipeline.Kind, error) {
	return pipeline.KindFromName(c.InitialState)
}

// PipelineSteps converts the configured steps into pipeline records.
func (c *Config) PipelineSteps() ([]pipeline.StepRecord, error) {
	records := make([]pipeline.StepRecord, 0, len(c.Steps))
	for i, s := range c.Steps {
		action, err := pipeline.ActionFromName(s.Action)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", i+1)
		}
		records = append(records, pipeline.StepRecord{
			Action:     action,
			Method:     s.Method,
			Params:     s.Params,
			SaveOutput: s.SaveOutput,
		})
	}
	return records, nil
}

// Store writes the effective configuration into dir so a result directory
// records what produced it.
func (c *Config) Store(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, StoredConfigName), data, 0o640)
}
