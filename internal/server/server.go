/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server exposes script upload, analysis and description lookup
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/store"
)

const (
	defaultMaxUploadBytes = 32 << 20
	shutdownTimeout       = 10 * time.Second
)

// Store is the persistence the API needs.
type Store interface {
	SaveScripts(ctx context.Context, scripts []store.Script) error
	ListScripts(ctx context.Context) ([]store.Script, error)
	SaveDescriptions(ctx context.Context, runID string, described []enricher.DescribedColumn) error
	ListDescriptions(ctx context.Context, tableName string) ([]store.Description, error)
}

// Describer generates descriptions for extracted columns.
type Describer interface {
	DescribeColumns(ctx context.Context, records []lineage.ColumnRecord, params enricher.DescribeParams) ([]enricher.DescribedColumn, error)
}

// Config holds HTTP settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	MaxUploadBytes int64
}

// Server serves the HTTP API.
type Server struct {
	cfg       Config
	store     Store
	extractor *lineage.Extractor
	describer Describer
	limiter   *rateLimiter
}

// New creates a Server. describer may be nil, in which case analysis
// requests fail with 500.
func New(cfg Config, st Store, extractor *lineage.Extractor, describer Describer) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if extractor == nil {
		extractor = lineage.NewExtractor(lineage.Config{})
	}
	return &Server{
		cfg:       cfg,
		store:     st,
		extractor: extractor,
		describer: describer,
		limiter:   newRateLimiter(cfg.RateLimit),
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(zap.L()),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", s.handleIndex)
	r.Post("/upload-sql/", s.handleUpload)
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Get("/analyze-sql/", s.handleAnalyze)
		r.Post("/analyze-sql/", s.handleAnalyze)
	})
	r.Get("/get-descriptions/", s.handleGetDescriptions)
	return r
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
	}

	eg.Go(func() error {
		zap.S().Infof("HTTP API listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		zap.S().Info("Shutting down HTTP API...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
