package pipeline

import (
	"sort"

	"github.com/pkg/errors"
)

type stepKey struct {
	action Action
	method string
}

var stepRegistry = map[stepKey]Step{}

// RegisterStep registers a step definition under its (action, method)
// pair. Registration happens from package init functions, so invalid
// definitions and duplicates panic.
func RegisterStep(s Step) {
	if s.Method == "" {
		panic(errors.New("cannot register a step with an empty method name"))
	}
	if s.Run == nil {
		panic(errors.Errorf("cannot register a nil run function for %s/%s", s.Action, s.Method))
	}
	if s.Params == nil {
		panic(errors.Errorf("cannot register a nil params constructor for %s/%s", s.Action, s.Method))
	}
	if s.Output != KindPointCloud && s.Output != KindMesh {
		panic(errors.Errorf("step %s/%s must declare a concrete output kind", s.Action, s.Method))
	}
	key := stepKey{s.Action, s.Method}
	if _, exists := stepRegistry[key]; exists {
		panic(errors.Errorf("trying to register two steps with the same action and method %s/%s", s.Action, s.Method))
	}
	stepRegistry[key] = s
}

// LookupStep returns the step registered under the (action, method) pair.
func LookupStep(action Action, method string) (Step, bool) {
	s, ok := stepRegistry[stepKey{action, method}]
	return s, ok
}

// RegisteredSteps returns a copy of every registered step, ordered by
// action then method.
func RegisteredSteps() []Step {
	steps := make([]Step, 0, len(stepRegistry))
	for _, s := range stepRegistry {
		steps = append(steps, s)
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Action != steps[j].Action {
			return steps[i].Action < steps[j].Action
		}
		return steps[i].Method < steps[j].Method
	})
	return steps
}
