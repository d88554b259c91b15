package pipeline

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmesh/mesh"
	"go.viam.com/cloudmesh/pointcloud"
)

type fakeParams struct {
	Factor float64 `json:"factor"`
}

func (p *fakeParams) Validate(path string) error {
	if p.Factor <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("factor must be positive"))
	}
	return nil
}

func newFakeParams() Params {
	return &fakeParams{Factor: 1}
}

func passthrough(ctx context.Context, m *mesh.Mesh, params Params, env Env) (*mesh.Mesh, error) {
	return m, nil
}

func init() {
	RegisterStep(Step{
		Action: ActionFilter,
		Method: "test_passthrough",
		Input:  KindPointCloud,
		Output: KindPointCloud,
		Params: newFakeParams,
		Run:    passthrough,
	})
	RegisterStep(Step{
		Action: ActionFilter,
		Method: "test_any",
		Input:  KindAny,
		Output: KindPointCloud,
		Params: newFakeParams,
		Run: func(ctx context.Context, m *mesh.Mesh, params Params, env Env) (*mesh.Mesh, error) {
			return mesh.New(m.Cloud()), nil
		},
	})
	RegisterStep(Step{
		Action: ActionFilter,
		Method: "test_empty",
		Input:  KindPointCloud,
		Output: KindPointCloud,
		Params: newFakeParams,
		Run: func(ctx context.Context, m *mesh.Mesh, params Params, env Env) (*mesh.Mesh, error) {
			return mesh.New(pointcloud.New()), nil
		},
	})
	RegisterStep(Step{
		Action: ActionFilter,
		Method: "test_fail",
		Input:  KindPointCloud,
		Output: KindPointCloud,
		Params: newFakeParams,
		Run: func(ctx context.Context, m *mesh.Mesh, params Params, env Env) (*mesh.Mesh, error) {
			return nil, errors.New("synthetic step failure")
		},
	})
	RegisterStep(Step{
		Action: ActionMesh,
		Method: "test_triangulate",
		Input:  KindPointCloud,
		Output: KindMesh,
		Params: newFakeParams,
		Run: func(ctx context.Context, m *mesh.Mesh, params Params, env Env) (*mesh.Mesh, error) {
			return mesh.NewWithFaces(m.Cloud(), []mesh.Face{{0, 1, 2}})
		},
	})
	RegisterStep(Step{
		Action: ActionMesh,
		Method: "test_faceless",
		Input:  KindPointCloud,
		Output: KindMesh,
		Params: newFakeParams,
		Run: func(ctx context.Context, m *mesh.Mesh, params Params, env Env) (*mesh.Mesh, error) {
			return mesh.New(m.Cloud()), nil
		},
	})
	RegisterStep(Step{
		Action: ActionTexture,
		Method: "test_noop",
		Input:  KindMesh,
		Output: KindMesh,
		Params: newFakeParams,
		Run:    passthrough,
	})
}

func testCloud() *pointcloud.PointCloud {
	return pointcloud.NewFromPositions([]r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0},
	})
}

func TestRegisterStep(t *testing.T) {
	s, ok := LookupStep(ActionFilter, "test_passthrough")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s.Output, test.ShouldEqual, KindPointCloud)

	_, ok = LookupStep(ActionFilter, "never_registered")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, func() {
		RegisterStep(Step{
			Action: ActionFilter,
			Method: "test_passthrough",
			Input:  KindPointCloud,
			Output: KindPointCloud,
			Params: newFakeParams,
			Run:    passthrough,
		})
	}, test.ShouldPanic)

	test.That(t, func() {
		RegisterStep(Step{Action: ActionFilter, Method: "", Params: newFakeParams, Run: passthrough})
	}, test.ShouldPanic)
	test.That(t, func() {
		RegisterStep(Step{Action: ActionFilter, Method: "test_no_run", Params: newFakeParams})
	}, test.ShouldPanic)
	test.That(t, func() {
		RegisterStep(Step{Action: ActionFilter, Method: "test_no_params", Run: passthrough})
	}, test.ShouldPanic)
	test.That(t, func() {
		RegisterStep(Step{
			Action: ActionFilter,
			Method: "test_any_output",
			Input:  KindPointCloud,
			Output: KindAny,
			Params: newFakeParams,
			Run:    passthrough,
		})
	}, test.ShouldPanic)
}

func TestRegisteredStepsOrdered(t *testing.T) {
	steps := RegisteredSteps()
	test.That(t, len(steps), test.ShouldBeGreaterThanOrEqualTo, 7)
	for i := 1; i < len(steps); i++ {
		prev, cur := steps[i-1], steps[i]
		ordered := prev.Action < cur.Action ||
			(prev.Action == cur.Action && prev.Method < cur.Method)
		test.That(t, ordered, test.ShouldBeTrue)
	}
}

func TestActionAndKindNames(t *testing.T) {
	for _, a := range Actions() {
		parsed, err := ActionFromName(a.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, a)
		test.That(t, a.State(), test.ShouldNotEqual, "unknown")
	}
	_, err := ActionFromName("transmogrify")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown action")

	k, err := KindFromName("point_cloud")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k, test.ShouldEqual, KindPointCloud)
	k, err = KindFromName("mesh")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k, test.ShouldEqual, KindMesh)
	_, err = KindFromName("volume")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown data kind")
}
