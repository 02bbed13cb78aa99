// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api serves the hub over HTTP: signed calls, side-effect free calls
// and read endpoints over the governance state
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/outbox"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	DefaultListenAddress = "127.0.0.1:8545"
	// HubServiceName is the name reported by the gRPC health service
	HubServiceName = "arbiter.v1.Hub"

	defaultRateLimit = 20
	defaultRateBurst = 40
	maxBodyBytes     = 1 << 20
)

type Config struct {
	Logger   *slog.Logger
	Router   *router.Router
	Database *database.Database
	Outbox   *outbox.Outbox
	// Health reports whether the hub can serve. Nil means always healthy.
	Health        func(context.Context) error
	ListenAddress string
	// RateLimit is the sustained requests per second allowed per client.
	// A negative value disables limiting.
	RateLimit float64
	RateBurst int
}

type Server struct {
	config     Config
	logger     *slog.Logger
	handler    http.Handler
	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

func New(cfg Config) (*Server, error) {
	if cfg.Router == nil {
		return nil, errors.New("api: router is required")
	}
	if cfg.Database == nil {
		return nil, errors.New("api: database is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	s := &Server{
		config: cfg,
		logger: cfg.Logger.With("component", "api"),
	}
	s.handler = s.buildHandler()
	return s, nil
}

// Handler returns the complete HTTP handler, including the gRPC health and
// reflection services
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.config.RateLimit > 0 {
		r.Use(newRateLimiter(s.config.RateLimit, s.config.RateBurst).middleware)
	}
	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(api chi.Router) {
		api.Get("/hub", s.handleHub)
		api.Get("/routes", s.handleRoutes)
		api.Get("/proposals", s.handleProposals)
		api.Route("/proposals/{id}", func(p chi.Router) {
			p.Get("/", s.handleProposal)
			p.Get("/actions", s.handleProposalActions)
			p.Get("/results", s.handleActionResults)
			p.Get("/votes/{voter}", s.handleVote)
		})
		api.Get("/delegations/{address}", s.handleDelegation)
		api.Get("/accounts/{address}", s.handleAccount)
		api.Get("/outbox", s.handleOutbox)
		api.Post("/call", s.handleCall)
		api.Post("/static", s.handleStatic)
	})

	mux := http.NewServeMux()
	mux.Handle("/", r)
	mux.Handle(grpchealth.NewHandler(&healthChecker{server: s}))
	reflector := grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName)
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))
	// h2c so gRPC clients can reach the health service without TLS
	return h2c.NewHandler(mux, &http2.Server{})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug(
			"request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return errors.New("api server already started")
	}
	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.logger.Info("starting API listener on " + listener.Addr().String())
	srv := s.httpServer
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.config.ListenAddress
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the listener down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// reader returns a client for side-effect free reads
func (s *Server) reader() *governance.Client {
	return governance.NewClient(s.config.Router, common.Address{})
}

type healthChecker struct {
	server *Server
}

func (h *healthChecker) Check(ctx context.Context, req *grpchealth.CheckRequest) (*grpchealth.CheckResponse, error) {
	if req.Service != "" && req.Service != HubServiceName {
		return &grpchealth.CheckResponse{Status: grpchealth.StatusUnknown}, nil
	}
	if err := h.server.healthy(ctx); err != nil {
		return &grpchealth.CheckResponse{Status: grpchealth.StatusNotServing}, nil
	}
	return &grpchealth.CheckResponse{Status: grpchealth.StatusServing}, nil
}

func (s *Server) healthy(ctx context.Context) error {
	if s.config.Health == nil {
		return nil
	}
	return s.config.Health(ctx)
}
