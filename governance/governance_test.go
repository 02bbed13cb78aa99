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

package governance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/event"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/outbox"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
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

var (
	testOwner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol     = common.HexToAddress("0x0000000000000000000000000000000000000ca1")
	dave      = common.HexToAddress("0x0000000000000000000000000000000000000da4")
	erin      = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	hubAddr   = router.ModuleAddress("hub")
	startTime = time.Unix(1_700_000_000, 0)
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db       *database.Database
	eventBus *event.EventBus
	router   *router.Router
	modules  *governance.Modules
	outbox   *outbox.Outbox
	clock    *testClock
	registry *prometheus.Registry
}

type envOption func(*governance.Config)

func withQuorum(votes uint64) envOption {
	return func(cfg *governance.Config) {
		cfg.QuorumVotes = votes
	}
}

func withCodec(codec *xcm.Codec) envOption {
	return func(cfg *governance.Config) {
		cfg.Codec = codec
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	eventBus := event.NewEventBus(nil, nil)
	t.Cleanup(func() {
		eventBus.Stop()
		_ = db.Close()
	})
	clock := &testClock{now: startTime}
	reg := prometheus.NewRegistry()
	r, err := router.New(router.Config{
		Database:     db,
		EventBus:     eventBus,
		PromRegistry: reg,
		Owner:        testOwner,
		Address:      hubAddr,
		Clock:        clock.Now,
	})
	require.NoError(t, err)
	ob := outbox.New(db, nil, reg)
	cfg := governance.Config{Outbox: ob}
	for _, opt := range opts {
		opt(&cfg)
	}
	modules := governance.NewModules(cfg)
	require.NoError(t, modules.Deploy(r))
	require.NoError(t, modules.Provision(context.Background(), r, testOwner))
	return &testEnv{
		db:       db,
		eventBus: eventBus,
		router:   r,
		modules:  modules,
		outbox:   ob,
		clock:    clock,
		registry: reg,
	}
}

func (e *testEnv) client(from common.Address) *governance.Client {
	return governance.NewClient(e.router, from)
}

func remark(t *testing.T, text string) governance.Action {
	t.Helper()
	payload, err := xcm.NewCodec(nil).Remark(context.Background(), 1000, text)
	require.NoError(t, err)
	return governance.Action{
		TargetChainId: 1000,
		Payload:       payload,
		Description:   "remark " + text,
	}
}

func localAction(target common.Address) governance.Action {
	return governance.Action{Target: target, Description: "noop"}
}

// propose creates a proposal from alice with a single local action
func (e *testEnv) propose(t *testing.T, actions ...governance.Action) uint64 {
	t.Helper()
	if len(actions) == 0 {
		actions = []governance.Action{localAction(erin)}
	}
	id, err := e.client(alice).CreateProposal(context.Background(), "test proposal", actions)
	require.NoError(t, err)
	return id
}

// pass votes for a proposal, closes voting and tallies it
func (e *testEnv) pass(t *testing.T, actions ...governance.Action) uint64 {
	t.Helper()
	ctx := context.Background()
	id := e.propose(t, actions...)
	require.NoError(t, e.client(bob).Vote(ctx, id, true))
	e.clock.Advance(governance.DefaultVotingPeriod)
	status, err := e.client(carol).TallyProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, uint8(2), status)
	return id
}
