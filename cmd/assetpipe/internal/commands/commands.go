package commands

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/logger"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
	// Config is the config file path; discovered when empty
	Config string
	// Mode is the raw mode value, usually from NODE_ENV
	Mode    string
	Tracing bool
	// Stdout receives command output, os.Stdout when nil
	Stdout io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Globals) setupLogger() zerolog.Logger {
	l := logger.Setup(g.Debug)
	log.Logger = l
	return l
}

// configPath returns the explicit config path or the one discovered in
// the working directory.
func (g *Globals) configPath() string {
	if g.Config != "" {
		return g.Config
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return config.Discover(wd)
}

// loadConfig loads the configuration leniently and resolves the build mode.
// The mode flag wins over the mode declared in the file.
func (g *Globals) loadConfig() (*config.Config, config.Mode) {
	path := g.configPath()
	cfg := config.LoadOrDefault(path)

	mode := config.ParseMode(g.Mode)
	if g.Mode == "" && cfg.Mode != "" {
		mode = config.ParseMode(string(cfg.Mode))
	}

	log.Debug().Str("config", path).Str("mode", mode.String()).Msg("Loaded configuration")
	return cfg, mode
}

// startTelemetry initializes exporters when tracing is enabled and returns
// a function flushing them.
func (g *Globals) startTelemetry(ctx context.Context) func() {
	if !g.Tracing {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	if !telemetry.Enabled() {
		log.Warn().Msg("Tracing is enabled but OTEL_EXPORTER_OTLP_ENDPOINT is not set")
	}

	shutdown, err := telemetry.InitTelemetry(ctx, "assetpipe", g.Version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
