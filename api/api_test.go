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

package api_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blinklabs-io/arbiter/api"
	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/event"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/outbox"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
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
	testOwner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	hubAddr   = router.ModuleAddress("hub")
)

type testEnv struct {
	db      *database.Database
	router  *router.Router
	outbox  *outbox.Outbox
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg api.Config) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	eventBus := event.NewEventBus(nil, nil)
	t.Cleanup(func() {
		eventBus.Stop()
		_ = db.Close()
	})
	r, err := router.New(router.Config{
		Database: db,
		EventBus: eventBus,
		Owner:    testOwner,
		Address:  hubAddr,
	})
	require.NoError(t, err)
	ob := outbox.New(db, nil, nil)
	modules := governance.NewModules(governance.Config{Outbox: ob})
	require.NoError(t, modules.Deploy(r))
	require.NoError(t, modules.Provision(context.Background(), r, testOwner))
	cfg.Router = r
	cfg.Database = db
	cfg.Outbox = ob
	if cfg.RateLimit == 0 {
		cfg.RateLimit = -1
	}
	srv, err := api.New(cfg)
	require.NoError(t, err)
	return &testEnv{db: db, router: r, outbox: ob, handler: srv.Handler()}
}

func (e *testEnv) get(t *testing.T, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signedCall(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, input []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := api.CallRequest{Input: input, Nonce: hexutil.Uint64(nonce)}
	require.NoError(t, api.Sign(&req, hubAddr, key))
	return e.post(t, "/v1/call", req)
}

func createInput(t *testing.T, description string) []byte {
	t.Helper()
	payload, err := xcm.NewCodec(nil).Remark(context.Background(), 1000, "hello")
	require.NoError(t, err)
	input, err := governance.ProposalABI.Pack("createProposal", description, []governance.Action{
		{TargetChainId: 1000, Payload: payload, Description: "remark"},
	})
	require.NoError(t, err)
	return input
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Kind
}

func TestSignRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	req := api.CallRequest{Input: []byte{1, 2, 3, 4}, Nonce: 7}
	require.NoError(t, api.Sign(&req, hubAddr, key))
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), req.From)
	signer, err := api.RecoverSender(&req, hubAddr)
	require.NoError(t, err)
	assert.Equal(t, req.From, signer)

	// A different hub produces a different digest
	other, err := api.RecoverSender(&req, router.ModuleAddress("other"))
	require.NoError(t, err)
	assert.NotEqual(t, req.From, other)

	req.Signature = req.Signature[:10]
	_, err = api.RecoverSender(&req, hubAddr)
	assert.ErrorIs(t, err, api.ErrBadSignature)
}

func TestSignedCall(t *testing.T) {
	env := newTestEnv(t, api.Config{})
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)

	rec := env.signedCall(t, key, 1, createInput(t, "first"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.CallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	out, err := governance.ProposalABI.Unpack("createProposal", resp.Output)
	require.NoError(t, err)
	require.Len(t, out, 1)

	var proposal api.ProposalResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/proposals/1", &proposal))
	assert.Equal(t, uint64(1), proposal.ID)
	assert.Equal(t, sender, proposal.Proposer)
	assert.Equal(t, "first", proposal.Description)
	assert.Equal(t, "Active", proposal.Status)
	assert.Equal(t, uint64(1), proposal.ActionCount)
	assert.Equal(t, governance.DefaultVotingPeriod, proposal.EndTime.Sub(proposal.StartTime))

	var account api.AccountResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/accounts/"+sender.Hex(), &account))
	assert.Equal(t, uint64(1), account.Nonce)
	assert.Equal(t, "0", account.Balance)

	// Replaying the same nonce fails
	rec = env.signedCall(t, key, 1, createInput(t, "replay"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(t, rec))

	rec = env.signedCall(t, key, 2, createInput(t, "second"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proposals []api.ProposalResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/proposals", &proposals))
	require.Len(t, proposals, 2)
	assert.Equal(t, uint64(2), proposals[0].ID)
	assert.Equal(t, uint64(1), proposals[1].ID)
	require.Equal(t, http.StatusOK, env.get(t, "/v1/proposals?limit=1&before=2", &proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, uint64(1), proposals[0].ID)
}

func TestSignedCallRejected(t *testing.T) {
	env := newTestEnv(t, api.Config{})
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	req := api.CallRequest{Input: createInput(t, "forged"), Nonce: 1}
	require.NoError(t, api.Sign(&req, hubAddr, key))
	req.From = crypto.PubkeyToAddress(other.PublicKey)
	rec := env.post(t, "/v1/call", req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "authorization", errorKind(t, rec))

	rec = env.post(t, "/v1/call", map[string]any{"input": "0x01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.post(t, "/v1/call", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Failed module calls map through the error kind
	input, err := governance.ProposalABI.Pack("vote", common.Big1, true)
	require.NoError(t, err)
	rec = env.signedCall(t, key, 1, input)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var proposals []api.ProposalResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/proposals", &proposals))
	assert.Empty(t, proposals)
}

func TestStaticCall(t *testing.T) {
	env := newTestEnv(t, api.Config{})
	input, err := governance.ProposalABI.Pack("votingPeriod")
	require.NoError(t, err)
	rec := env.post(t, "/v1/static", api.StaticRequest{Input: input})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.CallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	out, err := governance.ProposalABI.Unpack("votingPeriod", resp.Output)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(604800), out[0].(*big.Int).Int64())
}

func TestReads(t *testing.T) {
	env := newTestEnv(t, api.Config{})

	var hub api.HubResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/hub", &hub))
	assert.Equal(t, hubAddr, hub.Address)
	assert.Equal(t, testOwner, hub.Owner)
	assert.Equal(t, uint64(0), hub.ProposalCount)
	assert.Equal(t, uint64(governance.DefaultVotingPeriod/time.Second), hub.VotingPeriod)
	assert.Equal(t, "0", hub.Treasury)
	assert.True(t, hub.XcmAvailable)

	var routes []api.RouteResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/routes", &routes))
	selectors, _ := governance.NewModules(governance.Config{}).RoutingTable()
	assert.Len(t, routes, len(selectors))

	assert.Equal(t, http.StatusNotFound, env.get(t, "/v1/proposals/9", nil))
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/v1/proposals/abc", nil))
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/v1/accounts/nope", nil))

	var delegation api.DelegationResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/delegations/"+testOwner.Hex(), &delegation))
	assert.Nil(t, delegation.Delegate)
	assert.Empty(t, delegation.Delegators)

	var msgs []api.MessageResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/outbox", &msgs))
	assert.Empty(t, msgs)
}

func TestDelegationAndVoteReads(t *testing.T) {
	env := newTestEnv(t, api.Config{})
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	ctx := context.Background()

	require.NoError(t, governance.NewClient(env.router, sender).Delegate(ctx, testOwner))
	var delegation api.DelegationResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/delegations/"+sender.Hex(), &delegation))
	require.NotNil(t, delegation.Delegate)
	assert.Equal(t, testOwner, *delegation.Delegate)
	require.Equal(t, http.StatusOK, env.get(t, "/v1/delegations/"+testOwner.Hex(), &delegation))
	assert.Equal(t, []common.Address{sender}, delegation.Delegators)

	owner := governance.NewClient(env.router, testOwner)
	id, err := owner.CreateProposal(ctx, "vote", []governance.Action{{Target: sender}})
	require.NoError(t, err)
	require.NoError(t, owner.Vote(ctx, id, true))
	var vote struct {
		HasVoted bool `json:"hasVoted"`
	}
	require.Equal(t, http.StatusOK, env.get(t, "/v1/proposals/1/votes/"+testOwner.Hex(), &vote))
	assert.True(t, vote.HasVoted)
	require.Equal(t, http.StatusOK, env.get(t, "/v1/proposals/1/votes/"+sender.Hex(), &vote))
	assert.False(t, vote.HasVoted)

	var actions []api.ActionResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/proposals/1/actions", &actions))
	require.Len(t, actions, 1)
	assert.Equal(t, sender, actions[0].Target)
	var results []api.ActionResultResponse
	require.Equal(t, http.StatusOK, env.get(t, "/v1/proposals/1/results", &results))
	assert.Empty(t, results)
}

func TestHealth(t *testing.T) {
	healthy := true
	env := newTestEnv(t, api.Config{
		Health: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("database closed")
		},
	})
	assert.Equal(t, http.StatusOK, env.get(t, "/healthz", nil))
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, env.get(t, "/healthz", nil))
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, api.Config{RateLimit: 1, RateBurst: 2})
	assert.Equal(t, http.StatusOK, env.get(t, "/healthz", nil))
	assert.Equal(t, http.StatusOK, env.get(t, "/healthz", nil))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestServerLifecycle(t *testing.T) {
	env := newTestEnv(t, api.Config{})
	srv, err := api.New(api.Config{
		Router:        env.router,
		Database:      env.db,
		ListenAddress: "127.0.0.1:0",
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	require.Error(t, srv.Start())
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
