package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/assetpipe/cmd/assetpipe/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build    commands.BuildCmd    `cmd:"" help:"Build every entry point once"`
		Serve    commands.ServeCmd    `cmd:"" help:"Build, serve and rebuild on change with live reload"`
		Resolve  commands.ResolveCmd  `cmd:"" help:"Show which rules and transforms apply to asset paths"`
		Name     commands.NameCmd     `cmd:"" help:"Print the output file name for a file"`
		Validate commands.ValidateCmd `cmd:"" help:"Validate the configuration file"`
		Debug    bool                 `help:"Enable debug mode."`
		Config   string               `help:"Path to the configuration file; discovered in the working directory when empty." short:"c" type:"path" env:"ASSETPIPE_CONFIG"`
		Mode     string               `help:"Build mode (development or production)." env:"NODE_ENV"`
		Tracing  bool                 `help:"Export build metrics and traces over OTLP." default:"false" env:"ASSETPIPE_TRACING"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Description("Bundle scripts, stylesheets and assets into hashed output files."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Config:  cli.Config,
		Mode:    cli.Mode,
		Tracing: cli.Tracing,
	})
	cmd.FatalIfErrorf(err)
}
