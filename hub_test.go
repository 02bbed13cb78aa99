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

package arbiter_test

import (
	"context"
	"math/big"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/arbiter"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/outbox"
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

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
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

type recordingSubmitter struct {
	mu   sync.Mutex
	msgs []outbox.Message
}

func (r *recordingSubmitter) Submit(_ context.Context, msg outbox.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return "receipt-" + msg.ID, nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestConfigValidation(t *testing.T) {
	_, err := arbiter.New(arbiter.NewConfig(arbiter.WithProvision(true)))
	require.Error(t, err)
	_, err = arbiter.New(arbiter.NewConfig(arbiter.WithAddress(common.Address{})))
	require.Error(t, err)
	_, err = arbiter.New(arbiter.NewConfig(arbiter.WithVotingPeriod(time.Millisecond)))
	require.Error(t, err)
}

func TestHubUnprovisioned(t *testing.T) {
	hub, err := arbiter.New(arbiter.NewConfig(arbiter.WithOwner(owner)))
	require.NoError(t, err)
	defer hub.Stop() //nolint:errcheck
	assert.Equal(t, arbiter.DefaultHubAddress, hub.Address())
	assert.Nil(t, hub.API())
	_, err = hub.Client(alice).ProposalCount(context.Background())
	require.ErrorIs(t, err, router.ErrImplementationNotSet)

	ctx := context.Background()
	require.NoError(t, hub.Modules().Provision(ctx, hub.Router(), owner))
	count, err := hub.Client(alice).ProposalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestHubLifecycle(t *testing.T) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	submitter := &recordingSubmitter{}
	hub, err := arbiter.New(arbiter.NewConfig(
		arbiter.WithOwner(owner),
		arbiter.WithProvision(true),
		arbiter.WithClock(clock.Now),
		arbiter.WithSubmitter(submitter),
		arbiter.WithQuorumVotes(1),
		arbiter.WithListenAddress("127.0.0.1:0"),
		arbiter.WithRelayer(10*time.Millisecond, 3),
		arbiter.WithPromRegistry(prometheus.NewRegistry()),
	))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() {
		runErr <- hub.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return hub.API().Addr() != "127.0.0.1:0"
	}, 5*time.Second, 10*time.Millisecond)

	payload, err := hub.Codec().Remark(ctx, 1000, "hello")
	require.NoError(t, err)
	id, err := hub.Client(alice).CreateProposal(ctx, "remark on asset hub", []governance.Action{
		{TargetChainId: 1000, Payload: payload, Description: "remark"},
	})
	require.NoError(t, err)
	require.NoError(t, hub.Client(bob).Vote(ctx, id, true))
	clock.Advance(governance.DefaultVotingPeriod)
	status, err := hub.Client(bob).TallyProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Passed", governance.StatusName(status))
	results, err := hub.Client(bob).ExecuteProposal(ctx, id, big.NewInt(0))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Error)

	require.Eventually(t, func() bool {
		return submitter.count() == 1
	}, 5*time.Second, 10*time.Millisecond)
	submitter.mu.Lock()
	msg := submitter.msgs[0]
	submitter.mu.Unlock()
	assert.Equal(t, id, msg.ProposalID)
	assert.Equal(t, results[0].MessageId, msg.ID)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + hub.API().Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("hub did not stop")
	}
	require.ErrorIs(t, hub.Healthy(context.Background()), arbiter.ErrHubStopped)
	require.ErrorIs(t, hub.Run(context.Background()), arbiter.ErrHubStopped)
	require.NoError(t, hub.Stop())
}
