package devserver

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/assets"
	"github.com/wolfeidau/assetpipe/internal/config"
	httpmiddleware "github.com/wolfeidau/assetpipe/internal/http"
)

// Reporter is told about every build the server runs.
type Reporter func(result *assets.Result, err error)

// ServerOption configures optional Server behavior.
type ServerOption func(*Server)

// WithReporter sets the function called after each build.
func WithReporter(reporter Reporter) ServerOption {
	return func(s *Server) {
		s.reporter = reporter
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server serves the pipeline's in-memory outputs and pushes reloads to
// connected pages after each rebuild.
type Server struct {
	pipeline   *assets.Pipeline
	descriptor Descriptor
	cfg        config.DevServer
	hub        *Hub
	router     chi.Router
	reporter   Reporter
	logger     zerolog.Logger
}

// New creates a Server with all routes configured.
func New(pipeline *assets.Pipeline, cfg config.DevServer, opts ...ServerOption) (*Server, error) {
	s := &Server{
		pipeline:   pipeline,
		descriptor: NewDescriptor(cfg),
		cfg:        cfg,
		hub:        NewHub(),
		reporter:   func(*assets.Result, error) {},
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.ClientIPMiddleware())
	r.Use(httpmiddleware.RequestLogger(s.logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(withCORS(cfg.CORSOrigins))
	}

	if s.descriptor.Inline {
		r.Get(EventsPath, s.hub.ServeHTTP)
		r.Get(ClientPath, serveClient)
	}

	var handler http.Handler = pipeline.Handler()
	if s.descriptor.Inline {
		handler = injectClient(handler)
	}
	if s.descriptor.Compress {
		gzip, err := gzhttp.NewWrapper(gzhttp.ExceptContentTypes([]string{"text/event-stream"}))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip handler: %w", err)
		}
		handler = gzip(handler)
	}
	r.Handle("/*", handler)

	s.router = r
	return s, nil
}

// ServeHTTP implements the http.Handler interface, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Descriptor returns the serving options in effect.
func (s *Server) Descriptor() Descriptor {
	return s.descriptor
}

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Rebuild runs a build and tells connected pages about the outcome. A
// failed build keeps serving the previous outputs.
func (s *Server) Rebuild(ctx context.Context) (*assets.Result, error) {
	result, err := s.pipeline.Build(ctx)
	s.reporter(result, err)

	if err != nil {
		s.hub.Broadcast(ctx, Event{Type: EventBuildError, Message: err.Error()})
		return nil, err
	}

	sent := s.hub.Broadcast(ctx, Event{Type: EventReload, Hash: result.Hash})
	log.Debug().Str("hash", result.Hash).Int("clients", sent).Msg("Broadcast reload")
	return result, nil
}

// Watch rebuilds whenever files below the configured watch directories
// change, until ctx is cancelled.
func (s *Server) Watch(ctx context.Context) error {
	dirs := make([]string, 0, len(s.cfg.Watch))
	for _, dir := range s.cfg.Watch {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.pipeline.Context(), dir)
		}
		dirs = append(dirs, dir)
	}

	watcher := NewWatcher(dirs, []string{s.pipeline.OutputDir()}, func(ctx context.Context, paths []string) {
		log.Info().Strs("paths", paths).Msg("Rebuilding")
		if _, err := s.Rebuild(ctx); err != nil {
			log.Error().Err(err).Msg("Rebuild failed")
		}
	})
	return watcher.Run(ctx)
}

func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	})
	return middleware.Handler
}
