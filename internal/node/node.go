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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/arbiter"
	"github.com/blinklabs-io/arbiter/internal/config"
	"github.com/blinklabs-io/arbiter/substrate"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHub builds a hub from cfg. The returned cleanup func closes any
// substrate connections and must be called after the hub has stopped.
func NewHub(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*arbiter.Hub, func(), error) {
	opts := []arbiter.ConfigOptionFunc{
		arbiter.WithLogger(logger),
		arbiter.WithPromRegistry(promRegistry),
		arbiter.WithDataDir(cfg.DatabasePath),
		arbiter.WithBlobPlugin(cfg.BlobPlugin),
		arbiter.WithMetadataPlugin(cfg.MetadataPlugin),
		arbiter.WithVotingPeriod(config.Duration(cfg.VotingPeriod)),
		arbiter.WithQuorumVotes(cfg.QuorumVotes),
		arbiter.WithListenAddress(cfg.ListenAddress),
		arbiter.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		arbiter.WithRelayer(config.Duration(cfg.RelayInterval), cfg.RelayAttempts),
		arbiter.WithProvision(cfg.Provision),
		arbiter.WithTracing(cfg.Tracing),
		arbiter.WithTracingStdout(cfg.TracingStdout),
		arbiter.WithShutdownTimeout(config.Duration(cfg.ShutdownTimeout)),
	}
	if cfg.Owner != "" {
		opts = append(opts, arbiter.WithOwner(common.HexToAddress(cfg.Owner)))
	}
	if cfg.HubAddress != "" {
		opts = append(opts, arbiter.WithAddress(common.HexToAddress(cfg.HubAddress)))
	}
	var clients []*substrate.Client
	cleanup := func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}
	if cfg.SubstrateURL != "" {
		client := substrate.NewClient(cfg.SubstrateURL, substrate.WithLogger(logger))
		clients = append(clients, client)
		opts = append(opts, arbiter.WithResolver(substrate.FallbackResolver{
			Primary:  substrate.NewRuntimeResolver(client, cfg.XcmVersion),
			Fallback: xcm.NewStaticResolver(),
		}))
	}
	if cfg.BridgeURL != "" {
		client := substrate.NewClient(cfg.BridgeURL, substrate.WithLogger(logger))
		clients = append(clients, client)
		opts = append(opts, arbiter.WithSubmitter(substrate.NewSubmitter(client, cfg.SubmitMethod)))
	}
	hub, err := arbiter.New(arbiter.NewConfig(opts...))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return hub, cleanup, nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	// Enable metrics with default prometheus registry
	hub, cleanup, err := NewHub(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer cleanup()
	shutdownTimeout := config.Duration(cfg.ShutdownTimeout)
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component",
			"node",
		)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
				os.Exit(1)
			}
		}()
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	err = hub.Run(signalCtx)
	if signalCtx.Err() != nil {
		logger.Info("signal received, shut down", "component", "node")
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("metrics server shutdown error", "error", shutdownErr)
		}
	}
	if err != nil {
		logger.Error("hub error", "error", err, "component", "node")
		return errors.Join(err, hub.Stop())
	}
	logger.Info("shutdown complete", "component", "node")
	return nil
}
