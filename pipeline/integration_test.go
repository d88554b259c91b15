package pipeline_test

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	_ "go.viam.com/cloudmesh/denoise"
	_ "go.viam.com/cloudmesh/filter"
	"go.viam.com/cloudmesh/mesh"
	_ "go.viam.com/cloudmesh/meshing"
	"go.viam.com/cloudmesh/pipeline"
	"go.viam.com/cloudmesh/pointcloud"
	_ "go.viam.com/cloudmesh/simplify"
	_ "go.viam.com/cloudmesh/texture"
)

// terrainWithOutliers is a 10x10 unit grid, sheared slightly so no four
// points are cocircular, plus three isolated points far away from it.
func terrainWithOutliers(t *testing.T) *pointcloud.PointCloud {
	t.Helper()
	var positions []r3.Vector
	var red []float64
	for j := 0; j < 10; j++ {
		for i := 0; i < 10; i++ {
			positions = append(positions, r3.Vector{
				X: float64(i) + 0.013*float64(j),
				Y: float64(j),
			})
			red = append(red, float64((i*j)%256))
		}
	}
	positions = append(positions,
		r3.Vector{X: 50, Y: 50},
		r3.Vector{X: -40, Y: 30},
		r3.Vector{X: 60, Y: -70},
	)
	red = append(red, 0, 0, 0)
	cloud := pointcloud.NewFromPositions(positions)
	test.That(t, cloud.SetColors(pointcloud.Colors{Red: red}), test.ShouldBeNil)
	return cloud
}

func TestMachineFullRun(t *testing.T) {
	outputDir := t.TempDir()
	env := pipeline.Env{
		Logger:     golog.NewTestLogger(t),
		OutputDir:  outputDir,
		OutputName: "scene",
	}
	records := []pipeline.StepRecord{
		{
			Action:     pipeline.ActionFilter,
			Method:     "radius",
			Params:     map[string]interface{}{"radius": 1.5, "nb_points": 3},
			SaveOutput: true,
		},
		{Action: pipeline.ActionDenoise, Method: "normals"},
		{Action: pipeline.ActionMesh, Method: "delaunay", SaveOutput: true},
		{
			Action: pipeline.ActionSimplify,
			Method: "vertex_clustering",
			Params: map[string]interface{}{"voxel_size": 2.0},
		},
		{
			Action: pipeline.ActionTexture,
			Method: "vertex_color",
			Params: map[string]interface{}{"resolution": 128},
		},
	}
	machine, err := pipeline.NewMachine(pipeline.KindPointCloud, records, env)
	test.That(t, err, test.ShouldBeNil)

	out, err := machine.Run(context.Background(), mesh.New(terrainWithOutliers(t)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, machine.State(), test.ShouldEqual, pipeline.StateTextured)
	test.That(t, pipeline.KindOf(out), test.ShouldEqual, pipeline.KindMesh)

	// The grid survives the radius filter intact, the outliers do not,
	// and clustering at twice the grid spacing has to collapse vertices.
	size := out.Cloud().Size()
	test.That(t, size, test.ShouldBeGreaterThan, 0)
	test.That(t, size, test.ShouldBeLessThan, 100)
	test.That(t, out.Cloud().HasNormals(), test.ShouldBeTrue)

	faces, err := out.Faces()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(faces), test.ShouldBeGreaterThan, 0)
	for _, f := range faces {
		for _, v := range f {
			test.That(t, v, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, v, test.ShouldBeLessThan, size)
		}
	}

	test.That(t, out.HasTexture(), test.ShouldBeTrue)
	test.That(t, out.TexturePath(), test.ShouldContainSubstring, "scene_texture.png")
	_, err = os.Stat(out.TexturePath())
	test.That(t, err, test.ShouldBeNil)

	interDir := filepath.Join(outputDir, pipeline.IntermediateDirName)
	entries, err := os.ReadDir(interDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(entries), test.ShouldEqual, 2)

	filtered, err := pointcloud.NewFromFile(filepath.Join(interDir, "01_filter_radius.las"), env.Logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filtered.Size(), test.ShouldEqual, 100)

	meshed, err := mesh.NewFromFile(filepath.Join(interDir, "03_mesh_delaunay.ply"), env.Logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, meshed.HasFaces(), test.ShouldBeTrue)
	test.That(t, meshed.Cloud().Size(), test.ShouldEqual, 100)
}

func TestMachineThousandPointScenario(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	positions := make([]r3.Vector, 0, 1000)
	red := make([]float64, 0, 1000)
	for i := 0; i < 1000; i++ {
		positions = append(positions, r3.Vector{
			X: r.Float64() * 10,
			Y: r.Float64() * 10,
			Z: r.Float64() * 0.2,
		})
		red = append(red, r.Float64()*255)
	}
	cloud := pointcloud.NewFromPositions(positions)
	test.That(t, cloud.SetColors(pointcloud.Colors{Red: red}), test.ShouldBeNil)

	env := pipeline.Env{Logger: golog.NewTestLogger(t), OutputDir: t.TempDir()}
	records := []pipeline.StepRecord{
		{
			Action: pipeline.ActionFilter,
			Method: "radius",
			Params: map[string]interface{}{"radius": 1.0, "nb_points": 4},
		},
		{Action: pipeline.ActionMesh, Method: "delaunay"},
	}
	machine, err := pipeline.NewMachine(pipeline.KindPointCloud, records, env)
	test.That(t, err, test.ShouldBeNil)

	out, err := machine.Run(context.Background(), mesh.New(cloud))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, machine.State(), test.ShouldEqual, pipeline.StateMeshed)
	test.That(t, pipeline.KindOf(out), test.ShouldEqual, pipeline.KindMesh)

	size := out.Cloud().Size()
	test.That(t, size, test.ShouldBeGreaterThan, 0)
	test.That(t, size, test.ShouldBeLessThanOrEqualTo, 1000)
	test.That(t, out.Cloud().HasColors(), test.ShouldBeTrue)

	faces, err := out.Faces()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(faces), test.ShouldBeGreaterThan, 0)
	for _, f := range faces {
		for _, v := range f {
			test.That(t, v, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, v, test.ShouldBeLessThan, size)
		}
	}
}

func TestMachineRejectsBrokenChain(t *testing.T) {
	env := pipeline.Env{Logger: golog.NewTestLogger(t), OutputDir: t.TempDir()}
	records := []pipeline.StepRecord{
		{Action: pipeline.ActionMesh, Method: "delaunay"},
		{Action: pipeline.ActionFilter, Method: "radius"},
	}
	_, err := pipeline.NewMachine(pipeline.KindPointCloud, records, env)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring,
		"step 2 (filter/radius) requires point cloud input but step 1 (mesh/delaunay) provides mesh")
}

func TestMachineRejectsUnknownParameter(t *testing.T) {
	env := pipeline.Env{Logger: golog.NewTestLogger(t), OutputDir: t.TempDir()}
	records := []pipeline.StepRecord{
		{
			Action: pipeline.ActionFilter,
			Method: "radius",
			Params: map[string]interface{}{"radiuss": 1.5},
		},
	}
	_, err := pipeline.NewMachine(pipeline.KindPointCloud, records, env)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid parameters")
	test.That(t, err.Error(), test.ShouldContainSubstring, "radiuss")
}
