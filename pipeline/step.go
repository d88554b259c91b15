package pipeline

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/cloudmesh/mesh"
)

// Kind is the data kind a step consumes or produces.
type Kind int

const (
	// KindPointCloud is a bare vertex set, a mesh with an empty face table.
	KindPointCloud Kind = iota
	// KindMesh is a mesh with a non-empty face table.
	KindMesh
	// KindAny accepts either kind; it is only valid as an input
	// declaration.
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindPointCloud:
		return "point cloud"
	case KindMesh:
		return "mesh"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// KindFromName parses a configured data kind name.
func KindFromName(name string) (Kind, error) {
	switch name {
	case "point_cloud":
		return KindPointCloud, nil
	case "mesh":
		return KindMesh, nil
	default:
		return 0, errors.Errorf("unknown data kind %q", name)
	}
}

// accepts reports whether a step declaring k as its input kind can take
// data of the given kind.
func (k Kind) accepts(got Kind) bool {
	return k == KindAny || k == got
}

// KindOf reports the concrete data kind of an entity: a mesh with faces
// is KindMesh, anything else is a point cloud.
func KindOf(m *mesh.Mesh) Kind {
	if m.HasFaces() {
		return KindMesh
	}
	return KindPointCloud
}

// Action is the pipeline operation family a step belongs to. Unknown
// action names are rejected when the configuration is parsed, before any
// registry lookup.
type Action int

const (
	// ActionFilter removes points from a cloud.
	ActionFilter Action = iota
	// ActionDenoise adjusts point attributes without removing points.
	ActionDenoise
	// ActionMesh builds a face table over a cloud.
	ActionMesh
	// ActionSimplify reduces the vertex and face count of a mesh.
	ActionSimplify
	// ActionTexture attaches an image texture and coordinates to a mesh.
	ActionTexture
)

// Actions lists every action in execution-family order.
func Actions() []Action {
	return []Action{ActionFilter, ActionDenoise, ActionMesh, ActionSimplify, ActionTexture}
}

func (a Action) String() string {
	switch a {
	case ActionFilter:
		return "filter"
	case ActionDenoise:
		return "denoise"
	case ActionMesh:
		return "mesh"
	case ActionSimplify:
		return "simplify"
	case ActionTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// ActionFromName parses a configured action name.
func ActionFromName(name string) (Action, error) {
	for _, a := range Actions() {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, errors.Errorf("unknown action %q", name)
}

// Pipeline state names. A run starts in StateInitial and moves to the
// state named after each executed step's action.
const (
	StateInitial    = "initial"
	StateFiltered   = "filtered"
	StateDenoised   = "denoised"
	StateMeshed     = "meshed"
	StateSimplified = "simplified"
	StateTextured   = "textured"
)

// State returns the pipeline state reached by executing the action.
func (a Action) State() string {
	switch a {
	case ActionFilter:
		return StateFiltered
	case ActionDenoise:
		return StateDenoised
	case ActionMesh:
		return StateMeshed
	case ActionSimplify:
		return StateSimplified
	case ActionTexture:
		return StateTextured
	default:
		return "unknown"
	}
}

// Env is the run context handed to every step. It replaces any global
// logger or output path state; steps receive everything they need here.
type Env struct {
	Logger    golog.Logger
	OutputDir string
	// OutputName is the extensionless base name of the run's final
	// artifacts. Steps that write sidecar files derive theirs from it.
	OutputName string
}

// Params holds the decoded, method-specific parameters of one step.
// Validate reports malformed values before any step runs; path locates
// the step inside the configuration for error messages.
type Params interface {
	Validate(path string) error
}

// StepFunc runs one transformation. It owns the input entity for the
// duration of the call and must return a complete entity; it may reuse
// the input's storage since the machine discards its own reference when
// the call returns.
type StepFunc func(ctx context.Context, m *mesh.Mesh, params Params, env Env) (*mesh.Mesh, error)

// Step describes one registered transformation.
type Step struct {
	Action Action
	Method string
	// Input is the data kind the step accepts; KindAny takes either.
	Input Kind
	// Output is the data kind the step produces; it must be concrete.
	Output Kind
	// Params returns a fresh parameter struct pre-filled with the
	// method's defaults, ready for decoding the configured values over.
	Params func() Params
	Run    StepFunc
}

// StepRecord is one configured pipeline operation before it is bound to
// a registered step.
type StepRecord struct {
	Action     Action
	Method     string
	Params     map[string]interface{}
	SaveOutput bool
}
