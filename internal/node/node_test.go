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
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/arbiter/internal/config"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(
		m,
		goleak.IgnoreAnyFunction("github.com/dgraph-io/ristretto/v2.(*Cache[...]).processItems"),
		goleak.IgnoreAnyFunction("github.com/dgraph-io/ristretto/v2.(*defaultPolicy[...]).processItems"),
		goleak.IgnoreAnyFunction("github.com/dgraph-io/badger/v4/y.(*WaterMark).process"),
		goleak.IgnoreAnyFunction("database/sql.(*DB).connectionOpener"),
	)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DatabasePath = ""
	cfg.ListenAddress = ""
	cfg.Owner = "0x00000000000000000000000000000000000000a1"
	cfg.Provision = true
	cfg.VotingPeriod = "1h"
	cfg.QuorumVotes = 2
	return cfg
}

func TestNewHub(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	hub, cleanup, err := NewHub(testConfig(), logger, prometheus.NewRegistry())
	require.NoError(t, err)
	defer cleanup()
	defer hub.Stop() //nolint:errcheck

	ctx := context.Background()
	client := hub.Client(common.HexToAddress("0x0000000000000000000000000000000000000a11"))
	period, err := client.VotingPeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3600), period)
	available, err := client.IsXcmAvailable(ctx)
	require.NoError(t, err)
	assert.True(t, available)
	assert.Equal(t, router.ModuleAddress("hub"), hub.Address())
}

func TestNewHubUnreachableNode(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := testConfig()
	cfg.HubAddress = "0x00000000000000000000000000000000000000ff"
	// Nothing listens here, so the codec reports itself unavailable
	cfg.SubstrateURL = "ws://127.0.0.1:1"
	hub, cleanup, err := NewHub(cfg, logger, nil)
	require.NoError(t, err)
	defer cleanup()
	defer hub.Stop() //nolint:errcheck

	assert.Equal(t, common.HexToAddress(cfg.HubAddress), hub.Address())
	available, err := hub.Client(common.Address{}).IsXcmAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, available)
}
