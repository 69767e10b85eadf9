package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/assets"
	"github.com/wolfeidau/assetpipe/internal/stats"
	"github.com/wolfeidau/assetpipe/internal/transform"
)

type BuildCmd struct {
	OutputDir string `help:"override the configured output directory" type:"path" env:"ASSETPIPE_OUTPUT_DIR"`
	Elm       string `help:"elm executable used to compile Elm modules" default:"elm" env:"ASSETPIPE_ELM"`
	Stats     string `help:"stats verbosity, overriding the configured one" enum:",none,errors-only,minimal,normal,verbose" default:""`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	globals.setupLogger()
	defer globals.startTelemetry(ctx)()

	cfg, mode := globals.loadConfig()
	if c.OutputDir != "" {
		cfg.Output.Dir = c.OutputDir
	}

	verbosity := cfg.DevServer.Stats.Verbosity
	if c.Stats != "" {
		verbosity = c.Stats
	}
	printer, err := stats.New(globals.stdout(), verbosity, cfg.DevServer.Stats.Colors)
	if err != nil {
		return err
	}

	pipeline, err := assets.New(cfg, assets.Options{
		Mode:     mode,
		Compiler: &transform.ElmMake{Binary: c.Elm},
		Write:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	result, err := pipeline.Build(ctx)
	printer.Report(result, err)
	if err != nil {
		return err
	}

	log.Info().Str("dir", pipeline.OutputDir()).Str("hash", result.Hash).Dur("duration", result.Duration).Msg("Build complete")
	return nil
}
