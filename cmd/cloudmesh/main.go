// Package main is the cloudmesh command itself.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/cloudmesh/config"
	_ "go.viam.com/cloudmesh/denoise"
	_ "go.viam.com/cloudmesh/filter"
	"go.viam.com/cloudmesh/mesh"
	_ "go.viam.com/cloudmesh/meshing"
	"go.viam.com/cloudmesh/pipeline"
	_ "go.viam.com/cloudmesh/simplify"
	_ "go.viam.com/cloudmesh/texture"
)

func main() {
	var logger golog.Logger

	app := &cli.App{
		Name:  "cloudmesh",
		Usage: "reconstruct textured meshes from lidar and photogrammetry point clouds",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger = golog.NewDebugLogger("cloudmesh")
			} else {
				logger = golog.NewDevelopmentLogger("cloudmesh")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "reconstruct",
				Usage: "execute the pipeline described by a configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "load the pipeline configuration from `FILE`",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					return runPipeline(c.Context, c.String("config"), logger)
				},
			},
			{
				Name:  "methods",
				Usage: "list the registered step methods",
				Action: func(c *cli.Context) error {
					for _, s := range pipeline.RegisteredSteps() {
						fmt.Fprintf(c.App.Writer, "%s/%s: %s -> %s\n", s.Action, s.Method, s.Input, s.Output)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runPipeline(ctx context.Context, configPath string, logger golog.Logger) error {
	cfg, err := config.Read(configPath, logger)
	if err != nil {
		return err
	}
	initial, err := cfg.InitialKind()
	if err != nil {
		return err
	}
	records, err := cfg.PipelineSteps()
	if err != nil {
		return err
	}
	machine, err := pipeline.NewMachine(initial, records, pipeline.Env{
		Logger:     logger,
		OutputDir:  cfg.OutputDir,
		OutputName: cfg.OutputName,
	})
	if err != nil {
		return err
	}

	input, err := mesh.NewFromFile(cfg.InputPath, logger)
	if err != nil {
		return err
	}
	got := pipeline.KindOf(input)
	if got != initial {
		return errors.Errorf("input file %q holds a %s but the configuration declares a %s",
			cfg.InputPath, got, initial)
	}
	logger.Infow("input data loaded",
		"path", cfg.InputPath, "kind", got.String(), "points", input.Cloud().Size())

	if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
		return errors.Wrap(err, "could not create the output directory")
	}
	if err := cfg.Store(cfg.OutputDir); err != nil {
		return errors.Wrap(err, "could not store the effective configuration")
	}

	out, err := machine.Run(ctx, input)
	if err != nil {
		return err
	}

	ext := ".las"
	if out.HasFaces() {
		ext = ".ply"
	}
	if cfg.OutputFormat != "" {
		ext = "." + cfg.OutputFormat
	}
	outPath := filepath.Join(cfg.OutputDir, cfg.OutputName+ext)
	if err := mesh.WriteToFile(out, outPath); err != nil {
		return errors.Wrap(err, "could not write the final result")
	}
	logger.Infow("pipeline finished", "state", machine.State(), "output", outPath)
	return nil
}
