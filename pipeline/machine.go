// Package pipeline sequences point cloud and mesh transformation steps as
// a finite state machine. Steps register under an (action, method) pair
// with declared input and output data kinds; a configured sequence is
// validated against those declarations before anything runs, then
// executed one step at a time with the machine holding exactly one data
// entity between steps.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"go.viam.com/cloudmesh/mesh"
)

// IntermediateDirName is the subdirectory of the output directory that
// intermediate step results are written to.
const IntermediateDirName = "intermediate_results"

// Machine drives one pipeline run. It holds the current data entity and
// state name, executes its bound steps in order and persists step outputs
// when a step record asks for it. A Machine is not safe for concurrent
// use; the run itself is strictly sequential since each step's output is
// the next step's input.
type Machine struct {
	steps []boundStep
	env   Env
	clock clock.Clock

	state      string
	checkedDir bool
}

type boundStep struct {
	def        Step
	params     Params
	saveOutput bool
}

// NewMachine resolves the configured records against the registry, checks
// the kind chain starting from the initial data kind and decodes each
// record's parameters over the method's defaults. Every configuration
// problem surfaces here, before any step runs.
func NewMachine(initial Kind, records []StepRecord, env Env) (*Machine, error) {
	if env.Logger == nil {
		env.Logger = golog.NewLogger("pipeline")
	}
	defs, err := ValidateSequence(initial, records)
	if err != nil {
		return nil, err
	}
	steps := make([]boundStep, 0, len(records))
	for i, r := range records {
		params := defs[i].Params()
		if err := decodeParams(r.Params, params); err != nil {
			return nil, errors.Wrapf(err, "step %d (%s/%s): invalid parameters", i+1, r.Action, r.Method)
		}
		if err := params.Validate(fmt.Sprintf("steps.%d", i)); err != nil {
			return nil, errors.Wrapf(err, "step %d (%s/%s)", i+1, r.Action, r.Method)
		}
		steps = append(steps, boundStep{def: defs[i], params: params, saveOutput: r.SaveOutput})
	}
	return &Machine{steps: steps, env: env, clock: clock.New(), state: StateInitial}, nil
}

// decodeParams decodes raw configured values over the pre-filled defaults
// in out. Unknown keys are an error; a typo in a parameter name must not
// silently fall back to a default.
func decodeParams(raw map[string]interface{}, out Params) error {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// State returns the state name the machine last reached.
func (m *Machine) State() string {
	return m.state
}

// Run executes the bound steps in order, starting from the given entity,
// and returns the final one. The input entity is owned by the run from
// here on: each step consumes the current entity and the machine replaces
// it with the step's output. An empty step list is a valid no-op pipeline
// and returns the input unchanged with a warning. Any step error aborts
// the whole run; there are no retries and no partial results.
func (m *Machine) Run(ctx context.Context, input *mesh.Mesh) (*mesh.Mesh, error) {
	m.state = StateInitial
	env := m.env
	env.Logger = env.Logger.With("run_id", uuid.NewString())

	if len(m.steps) == 0 {
		env.Logger.Warn("state machine is empty, returning the input data")
		return input, nil
	}
	env.Logger.Infow("starting pipeline run", "steps", len(m.steps))

	current := input
	for i, bs := range m.steps {
		action, method := bs.def.Action, bs.def.Method
		start := m.clock.Now()
		out, err := bs.def.Run(ctx, current, bs.params, env)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d (%s/%s) failed", i+1, action, method)
		}
		if out == nil {
			return nil, errors.Errorf("step %d (%s/%s) returned no data", i+1, action, method)
		}
		if out.Cloud().Size() == 0 {
			return nil, errors.Errorf("point cloud output by step %d (%s/%s) is empty", i+1, action, method)
		}
		if bs.def.Output == KindMesh && !out.HasFaces() {
			return nil, errors.Errorf("mesh output by step %d (%s/%s) has no faces", i+1, action, method)
		}
		current = out
		m.state = action.State()
		env.Logger.Infow("step finished",
			"step", i+1,
			"action", action.String(),
			"method", method,
			"duration", m.clock.Since(start),
			"points", current.Cloud().Size(),
			"state", m.state,
		)
		if bs.saveOutput {
			if err := m.saveIntermediate(i, bs, current, env.Logger); err != nil {
				return nil, err
			}
		}
	}
	return current, nil
}

// saveIntermediate writes the entity right after step i produced it. The
// file name carries the 1-based step ordinal so a directory listing reads
// in execution order.
func (m *Machine) saveIntermediate(i int, bs boundStep, entity *mesh.Mesh, logger golog.Logger) error {
	dir := filepath.Join(m.env.OutputDir, IntermediateDirName)
	if !m.checkedDir {
		m.checkedDir = true
		if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
			logger.Warnw("intermediate results directory is not empty, files may be overwritten", "dir", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrap(err, "could not create the intermediate results directory")
	}
	ext := ".las"
	if entity.HasFaces() {
		ext = ".ply"
	}
	fn := filepath.Join(dir, fmt.Sprintf("%02d_%s_%s%s", i+1, bs.def.Action, bs.def.Method, ext))
	logger.Debugw("saving intermediate result", "path", fn)
	if err := mesh.WriteToFile(entity, fn); err != nil {
		return errors.Wrapf(err, "could not save the intermediate result of step %d", i+1)
	}
	return nil
}
