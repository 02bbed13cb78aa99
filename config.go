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

package arbiter

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/arbiter/outbox"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultHubAddress is the address the hub answers on unless configured
var DefaultHubAddress = router.ModuleAddress("hub")

type Config struct {
	promRegistry   prometheus.Registerer
	logger         *slog.Logger
	clock          func() time.Time
	resolver       xcm.Resolver
	submitter      outbox.Submitter
	dataDir        string
	blobPlugin     string
	metadataPlugin string
	listenAddress  string
	owner          common.Address
	address        common.Address
	votingPeriod   time.Duration
	quorumVotes    uint64
	rateLimit      float64
	rateBurst      int
	pollInterval   time.Duration
	maxAttempts    uint32
	provision      bool
	tracing        bool
	tracingStdout  bool
	// Shutdown timeout (0 = 30s)
	shutdownTimeout time.Duration
}

// ConfigOptionFunc is a type that represents functions that modify the hub config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new hub config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		address: DefaultHubAddress,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *Config) validate() error {
	if c.address == (common.Address{}) {
		return errors.New("hub address must not be the zero address")
	}
	if c.provision && c.owner == (common.Address{}) {
		return errors.New("provisioning requires an owner address")
	}
	if c.votingPeriod < 0 {
		return errors.New("voting period must not be negative")
	}
	if c.votingPeriod > 0 && c.votingPeriod < time.Second {
		return errors.New("voting period must be at least one second")
	}
	return nil
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to register metrics with
func WithPromRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the persistent data directory. An empty value keeps
// all state in memory.
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithOwner specifies the operator allowed to set routing entries
func WithOwner(owner common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.owner = owner
	}
}

// WithAddress specifies the address the hub answers on
func WithAddress(addr common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.address = addr
	}
}

func WithVotingPeriod(period time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.votingPeriod = period
	}
}

func WithQuorumVotes(votes uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.quorumVotes = votes
	}
}

// WithClock overrides the time source used for call times and relay retries
func WithClock(clock func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithResolver specifies where runtime call indexes and the XCM version come
// from. The static table is used when unset.
func WithResolver(resolver xcm.Resolver) ConfigOptionFunc {
	return func(c *Config) {
		c.resolver = resolver
	}
}

// WithSubmitter specifies the cross-chain transport for relayed messages.
// Messages are logged when unset.
func WithSubmitter(submitter outbox.Submitter) ConfigOptionFunc {
	return func(c *Config) {
		c.submitter = submitter
	}
}

// WithListenAddress specifies the API listen address. An empty value
// disables the API.
func WithListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.listenAddress = addr
	}
}

// WithRateLimit specifies the per-client API request rate and burst
func WithRateLimit(perSecond float64, burst int) ConfigOptionFunc {
	return func(c *Config) {
		c.rateLimit = perSecond
		c.rateBurst = burst
	}
}

// WithRelayer specifies the outbox poll interval and the number of submit
// attempts before a message is dropped
func WithRelayer(pollInterval time.Duration, maxAttempts uint32) ConfigOptionFunc {
	return func(c *Config) {
		c.pollInterval = pollInterval
		c.maxAttempts = maxAttempts
	}
}

// WithProvision registers every module selector on behalf of the owner at
// startup
func WithProvision(provision bool) ConfigOptionFunc {
	return func(c *Config) {
		c.provision = provision
	}
}

// WithTracing enables span export over OTLP/HTTP. The exporter endpoint comes
// from the standard OTEL_EXPORTER_OTLP_* environment variables.
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout writes spans to stdout instead. Tracing must also be enabled.
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown.
// Default is 30 seconds.
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
