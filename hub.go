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

// Package arbiter composes the governance hub: storage, the selector router,
// the governance modules behind it, the cross-chain outbox and the API.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/arbiter/api"
	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/event"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/outbox"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/common"
)

const defaultShutdownTimeout = 30 * time.Second

var ErrHubStopped = errors.New("hub stopped")

// Hub is the externally addressed governance entry point
type Hub struct {
	config        Config
	db            *database.Database
	eventBus      *event.EventBus
	router        *router.Router
	modules       *governance.Modules
	codec         *xcm.Codec
	outbox        *outbox.Outbox
	relayer       *outbox.Relayer
	api           *api.Server
	metrics       *governance.Metrics
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	shutdownOnce  sync.Once
	mu            sync.Mutex
	running       bool
	stopped       bool
}

// New opens storage and wires every component. Nothing runs in the
// background until Run is called.
func New(cfg Config) (*Hub, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	h := &Hub{
		config: cfg,
		done:   make(chan struct{}),
	}
	if err := h.init(); err != nil {
		_ = h.Stop()
		return nil, err
	}
	return h, nil
}

func (h *Hub) init() error {
	ctx := context.Background()
	logger := h.config.logger
	if h.config.tracing {
		if err := h.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:        h.config.dataDir,
		BlobPlugin:     h.config.blobPlugin,
		MetadataPlugin: h.config.metadataPlugin,
		Logger:         logger,
		PromRegistry:   h.config.promRegistry,
	})
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	h.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		// Metadata is written ahead of blob data, so the blob side is the
		// authoritative commit point
		logger.Warn(
			"database commit timestamps disagree, reconciling",
			"error",
			err,
		)
		if err := db.ReconcileCommitTimestamp(); err != nil {
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	h.eventBus = event.NewEventBus(h.config.promRegistry, logger)
	h.router, err = router.New(router.Config{
		Database:     h.db,
		EventBus:     h.eventBus,
		Logger:       logger,
		PromRegistry: h.config.promRegistry,
		Owner:        h.config.owner,
		Address:      h.config.address,
		Clock:        h.config.clock,
	})
	if err != nil {
		return err
	}
	h.outbox = outbox.New(h.db, logger, h.config.promRegistry)
	h.codec = xcm.NewCodec(h.config.resolver)
	h.modules = governance.NewModules(governance.Config{
		Logger:       logger,
		VotingPeriod: h.config.votingPeriod,
		QuorumVotes:  h.config.quorumVotes,
		Outbox:       h.outbox,
		Codec:        h.codec,
	})
	if err := h.modules.Deploy(h.router); err != nil {
		return fmt.Errorf("failed to deploy modules: %w", err)
	}
	if h.config.provision {
		if err := h.modules.Provision(ctx, h.router, h.config.owner); err != nil {
			return fmt.Errorf("failed to provision routing table: %w", err)
		}
		logger.Info(
			"provisioned routing table",
			"component", "hub",
			"owner", h.config.owner.Hex(),
		)
	}
	if h.config.promRegistry != nil {
		h.metrics = governance.NewMetrics(h.eventBus, h.config.promRegistry)
	}
	submitter := h.config.submitter
	if submitter == nil {
		submitter = outbox.LogSubmitter{Logger: logger}
	}
	h.relayer, err = outbox.NewRelayer(outbox.RelayerConfig{
		Outbox:       h.outbox,
		Database:     h.db,
		Submitter:    submitter,
		EventBus:     h.eventBus,
		Logger:       logger,
		Clock:        h.config.clock,
		PollInterval: h.config.pollInterval,
		MaxAttempts:  h.config.maxAttempts,
	})
	if err != nil {
		return err
	}
	if h.config.listenAddress != "" {
		h.api, err = api.New(api.Config{
			Logger:        logger,
			Router:        h.router,
			Database:      h.db,
			Outbox:        h.outbox,
			Health:        h.Healthy,
			ListenAddress: h.config.listenAddress,
			RateLimit:     h.config.rateLimit,
			RateBurst:     h.config.rateBurst,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Run starts the relayer and the API and blocks until ctx is done or Stop
// is called
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	if h.running {
		h.mu.Unlock()
		return errors.New("hub already running")
	}
	h.running = true
	h.mu.Unlock()
	if err := h.relayer.Start(ctx); err != nil {
		return errors.Join(err, h.Stop())
	}
	if h.api != nil {
		if err := h.api.Start(); err != nil {
			return errors.Join(err, h.Stop())
		}
	}
	h.config.logger.Info(
		"hub started",
		"component", "hub",
		"address", h.config.address.Hex(),
	)
	select {
	case <-ctx.Done():
		return h.Stop()
	case <-h.done:
		return nil
	}
}

func (h *Hub) Stop() error {
	var err error
	h.shutdownOnce.Do(func() {
		err = h.shutdown()
	})
	return err
}

func (h *Hub) shutdown() error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	shutdownTimeout := defaultShutdownTimeout
	if h.config.shutdownTimeout > 0 {
		shutdownTimeout = h.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	logger := h.config.logger

	logger.Debug("starting graceful shutdown", "component", "hub")

	// Stop accepting calls before the relayer so no message is queued
	// behind a stopped worker
	if h.api != nil {
		if stopErr := h.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if h.relayer != nil {
		h.relayer.Stop()
	}
	if h.metrics != nil {
		h.metrics.Close()
	}
	if h.eventBus != nil {
		h.eventBus.Stop()
	}
	if h.db != nil {
		if closeErr := h.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}
	for _, fn := range h.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	h.shutdownFuncs = nil

	logger.Debug("graceful shutdown complete", "component", "hub")
	close(h.done)
	return err
}

// Healthy reports whether the hub can serve calls
func (h *Hub) Healthy(context.Context) error {
	h.mu.Lock()
	stopped := h.stopped
	h.mu.Unlock()
	if stopped {
		return ErrHubStopped
	}
	if _, err := h.db.ProposalCount(nil); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Dispatch runs a state-changing call against the hub
func (h *Hub) Dispatch(ctx context.Context, call router.Call) ([]byte, error) {
	return h.router.Dispatch(ctx, call)
}

// StaticCall runs a call whose effects are discarded
func (h *Hub) StaticCall(ctx context.Context, call router.Call) ([]byte, error) {
	return h.router.StaticCall(ctx, call)
}

// Client returns a typed governance client calling as from
func (h *Hub) Client(from common.Address) *governance.Client {
	return governance.NewClient(h, from)
}

func (h *Hub) Address() common.Address {
	return h.config.address
}

func (h *Hub) Database() *database.Database {
	return h.db
}

func (h *Hub) EventBus() *event.EventBus {
	return h.eventBus
}

func (h *Hub) Router() *router.Router {
	return h.router
}

func (h *Hub) Modules() *governance.Modules {
	return h.modules
}

func (h *Hub) Codec() *xcm.Codec {
	return h.codec
}

func (h *Hub) Outbox() *outbox.Outbox {
	return h.outbox
}

func (h *Hub) Relayer() *outbox.Relayer {
	return h.relayer
}

// API returns the API server, or nil when no listen address is configured
func (h *Hub) API() *api.Server {
	return h.api
}
