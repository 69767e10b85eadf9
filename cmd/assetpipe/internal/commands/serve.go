package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/assets"
	"github.com/wolfeidau/assetpipe/internal/devserver"
	"github.com/wolfeidau/assetpipe/internal/stats"
	"github.com/wolfeidau/assetpipe/internal/transform"
	"golang.org/x/sync/errgroup"
)

type ServeCmd struct {
	Listen  string `help:"HTTP server listen address, overriding the configured one" default:"" env:"ASSETPIPE_LISTEN"`
	Elm     string `help:"elm executable used to compile Elm modules" default:"elm" env:"ASSETPIPE_ELM"`
	NoWatch bool   `help:"serve without watching sources for changes" default:"false"`
	Write   bool   `help:"also write outputs to the output directory" default:"false"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	logger := globals.setupLogger()
	defer globals.startTelemetry(ctx)()

	cfg, mode := globals.loadConfig()
	if c.Listen != "" {
		cfg.DevServer.Listen = c.Listen
	}

	printer, err := stats.New(globals.stdout(), cfg.DevServer.Stats.Verbosity, cfg.DevServer.Stats.Colors)
	if err != nil {
		return err
	}

	pipeline, err := assets.New(cfg, assets.Options{
		Mode:     mode,
		Compiler: &transform.ElmMake{Binary: c.Elm},
		Write:    c.Write,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	srv, err := devserver.New(pipeline, cfg.DevServer,
		devserver.WithReporter(printer.Report),
		devserver.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	// the server still starts when the first build fails so the next
	// change can fix it
	if _, err := srv.Rebuild(ctx); err != nil {
		log.Error().Err(err).Msg("Initial build failed")
	}

	httpServer := configureHTTPServer(cfg.DevServer.Listen, srv)

	g, ctx := errgroup.WithContext(ctx)

	// open event streams end with the server instead of holding up shutdown
	httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	g.Go(func() error {
		log.Info().
			Str("addr", "http://"+cfg.DevServer.Listen).
			Str("mode", mode.String()).
			Bool("compress", srv.Descriptor().Compress).
			Bool("inline", srv.Descriptor().Inline).
			Msg("Starting dev server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if !c.NoWatch {
		g.Go(func() error {
			return srv.Watch(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down dev server")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
