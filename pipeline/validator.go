package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidateSequence checks a configured step sequence against the registry
// without running anything: every (action, method) pair must be
// registered and each step's declared input kind must accept what the
// previous step, or the initial data, provides. The first violation is
// returned with the 1-based position of the offending step. On success
// the resolved step definitions are returned in order.
//
// Steps can take minutes, so failing here instead of midway through a run
// is the whole point of this check.
func ValidateSequence(initial Kind, records []StepRecord) ([]Step, error) {
	if initial != KindPointCloud && initial != KindMesh {
		return nil, errors.Errorf("initial data kind must be point cloud or mesh, got %s", initial)
	}
	steps := make([]Step, 0, len(records))
	prev := initial
	source := "the initial data"
	for i, r := range records {
		def, ok := LookupStep(r.Action, r.Method)
		if !ok {
			return nil, errors.Errorf("step %d: no method %q registered for action %q", i+1, r.Method, r.Action)
		}
		if !def.Input.accepts(prev) {
			return nil, errors.Errorf(
				"step %d (%s/%s) requires %s input but %s provides %s",
				i+1, r.Action, r.Method, def.Input, source, prev,
			)
		}
		steps = append(steps, def)
		prev = def.Output
		source = fmt.Sprintf("step %d (%s/%s)", i+1, r.Action, r.Method)
	}
	return steps, nil
}
