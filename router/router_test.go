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

package router_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/errs"
	"github.com/blinklabs-io/arbiter/event"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOwner  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testUser   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testHub    = router.ModuleAddress("hub")
	testModule = router.ModuleAddress("counter")
	testNow    = time.Unix(1_700_000_000, 0)
)

var counterABI = router.MustParseABI(`[
	{"type":"function","name":"add","stateMutability":"nonpayable",
	 "inputs":[{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"addThenFail","stateMutability":"nonpayable",
	 "inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"get","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"deposit","stateMutability":"payable",
	 "inputs":[],"outputs":[]},
	{"type":"function","name":"explode","stateMutability":"nonpayable",
	 "inputs":[],"outputs":[]},
	{"type":"function","name":"forward","stateMutability":"nonpayable",
	 "inputs":[{"name":"input","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes"}]}
]`)

var errCounterFailed = errors.New("counter failed")

// counterModule keeps a per-caller balance in the shared database
type counterModule struct{}

func (counterModule) Name() string { return "counter" }

func (counterModule) ABI() *abi.ABI { return counterABI }

func (counterModule) Handle(
	frame *router.Frame,
	method *abi.Method,
	args []any,
) ([]any, error) {
	caller := types.Address(frame.Caller)
	switch method.Name {
	case "add", "addThenFail":
		amount := args[0].(*big.Int)
		if err := frame.DB.AddBalance(caller, amount, frame.Txn); err != nil {
			return nil, err
		}
		frame.Emit("counter.added", amount.Uint64())
		if method.Name == "addThenFail" {
			return nil, errCounterFailed
		}
		bal, err := frame.DB.GetBalance(caller, frame.Txn)
		if err != nil {
			return nil, err
		}
		return []any{bal}, nil
	case "get":
		bal, err := frame.DB.GetBalance(types.Address(args[0].(common.Address)), frame.Txn)
		if err != nil {
			return nil, err
		}
		return []any{bal}, nil
	case "deposit":
		return nil, nil
	case "explode":
		panic("counter exploded")
	case "forward":
		ret, err := frame.Call(args[0].([]byte), nil)
		if err != nil {
			return nil, err
		}
		return []any{ret}, nil
	}
	return nil, errors.New("unexpected method")
}

type testEnv struct {
	db       *database.Database
	eventBus *event.EventBus
	router   *router.Router
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	eventBus := event.NewEventBus(nil, nil)
	t.Cleanup(func() {
		eventBus.Stop()
		_ = db.Close()
	})
	reg := prometheus.NewRegistry()
	r, err := router.New(router.Config{
		Database:     db,
		EventBus:     eventBus,
		PromRegistry: reg,
		Owner:        testOwner,
		Address:      testHub,
		Clock:        func() time.Time { return testNow },
	})
	require.NoError(t, err)
	require.NoError(t, r.Deploy(testModule, counterModule{}))
	return &testEnv{db: db, eventBus: eventBus, router: r, registry: reg}
}

func (e *testEnv) register(t *testing.T) {
	t.Helper()
	selectors := router.MethodSelectors(counterABI)
	implementations := make([]common.Address, len(selectors))
	for i := range implementations {
		implementations[i] = testModule
	}
	require.NoError(t, e.router.SetImplementations(
		context.Background(),
		testOwner,
		selectors,
		implementations,
	))
}

func pack(t *testing.T, method string, args ...any) []byte {
	t.Helper()
	input, err := counterABI.Pack(method, args...)
	require.NoError(t, err)
	return input
}

func TestSelectorOf(t *testing.T) {
	sel := router.SelectorOf("transfer(address,uint256)")
	assert.Equal(t, "0xa9059cbb", sel.String())
	parsed, err := router.ParseSelector("0xa9059cbb")
	require.NoError(t, err)
	assert.Equal(t, sel, parsed)
	_, err = router.ParseSelector("0xa905")
	assert.ErrorIs(t, err, router.ErrInvalidSelector)
}

func TestDispatchWithoutRouteFails(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Input:  pack(t, "add", big.NewInt(1)),
	})
	require.ErrorIs(t, err, router.ErrImplementationNotSet)
	assert.Equal(t, errs.KindDependency, errs.KindOf(err))
}

func TestDispatchRoutesToModule(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	_, evtCh := env.eventBus.Subscribe("counter.added")
	ret, err := env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Input:  pack(t, "add", big.NewInt(5)),
	})
	require.NoError(t, err)
	out, err := counterABI.Unpack("add", ret)
	require.NoError(t, err)
	assert.Equal(t, int64(5), out[0].(*big.Int).Int64())
	select {
	case evt := <-evtCh:
		assert.Equal(t, uint64(5), evt.Data)
		assert.Equal(t, testNow, evt.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	count, err := testutil.GatherAndCount(env.registry, "arbiter_router_calls_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestDispatchFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	_, evtCh := env.eventBus.Subscribe("counter.added")
	_, err := env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Input:  pack(t, "addThenFail", big.NewInt(7)),
	})
	require.ErrorIs(t, err, errCounterFailed)
	bal, err := env.db.GetBalance(types.Address(testUser), nil)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
	assert.Empty(t, evtCh)
}

func TestSetImplementationsRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	err := env.router.SetImplementations(
		context.Background(),
		testUser,
		[]router.Selector{router.SelectorOf("add(uint256)")},
		[]common.Address{testModule},
	)
	require.ErrorIs(t, err, router.ErrNotOwner)
	assert.Equal(t, errs.KindAuthorization, errs.KindOf(err))
	_, err = env.router.Implementation(router.SelectorOf("add(uint256)"))
	assert.ErrorIs(t, err, router.ErrImplementationNotSet)
}

func TestSetImplementationsLengthMismatch(t *testing.T) {
	env := newTestEnv(t)
	err := env.router.SetImplementations(
		context.Background(),
		testOwner,
		[]router.Selector{router.SelectorOf("add(uint256)")},
		nil,
	)
	require.ErrorIs(t, err, router.ErrLengthMismatch)
}

func TestSetImplementationsOverwrites(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	other := router.ModuleAddress("other")
	sel := router.SelectorOf("get(address)")
	require.NoError(t, env.router.SetImplementations(
		context.Background(),
		testOwner,
		[]router.Selector{sel},
		[]common.Address{other},
	))
	impl, err := env.router.Implementation(sel)
	require.NoError(t, err)
	assert.Equal(t, other, impl)
	// Registered but not deployed
	_, err = env.router.StaticCall(context.Background(), router.Call{
		Caller: testUser,
		Input:  pack(t, "get", testUser),
	})
	assert.ErrorIs(t, err, router.ErrImplementationNotSet)
	routes, err := env.router.Routes()
	require.NoError(t, err)
	assert.Len(t, routes, len(counterABI.Methods))
	for _, route := range routes {
		if route.Selector == sel {
			assert.Empty(t, route.Module)
			continue
		}
		assert.Equal(t, "counter", route.Module)
		assert.NotEmpty(t, route.Signature)
	}
}

func TestSetImplementationsRejectsReservedSelector(t *testing.T) {
	env := newTestEnv(t)
	err := env.router.SetImplementations(
		context.Background(),
		testOwner,
		[]router.Selector{router.SelectorOf("owner()")},
		[]common.Address{testModule},
	)
	assert.ErrorIs(t, err, router.ErrReservedSelector)
}

func TestHubFunctions(t *testing.T) {
	env := newTestEnv(t)
	input, err := router.HubABI.Pack("owner")
	require.NoError(t, err)
	ret, err := env.router.StaticCall(context.Background(), router.Call{Input: input})
	require.NoError(t, err)
	out, err := router.HubABI.Unpack("owner", ret)
	require.NoError(t, err)
	assert.Equal(t, testOwner, out[0])

	input, err = router.HubABI.Pack("implementation", [4]byte(router.SelectorOf("add(uint256)")))
	require.NoError(t, err)
	ret, err = env.router.StaticCall(context.Background(), router.Call{Input: input})
	require.NoError(t, err)
	out, err = router.HubABI.Unpack("implementation", ret)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, out[0])
}

func TestFundCreditsTreasury(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Value:  big.NewInt(1000),
	})
	require.NoError(t, err)
	bal, err := env.db.GetBalance(types.Address(testHub), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.Int64())
}

func TestValueRequiresPayable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	_, err := env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Input:  pack(t, "add", big.NewInt(1)),
		Value:  big.NewInt(1),
	})
	require.ErrorIs(t, err, router.ErrNotPayable)
	_, err = env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Input:  pack(t, "deposit"),
		Value:  big.NewInt(3),
	})
	require.NoError(t, err)
	bal, err := env.db.GetBalance(types.Address(testHub), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal.Int64())
}

func TestStaticCallDiscardsWrites(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ret, err := env.router.StaticCall(context.Background(), router.Call{
		Caller: testUser,
		Input:  pack(t, "add", big.NewInt(9)),
	})
	require.NoError(t, err)
	out, err := counterABI.Unpack("add", ret)
	require.NoError(t, err)
	assert.Equal(t, int64(9), out[0].(*big.Int).Int64())
	bal, err := env.db.GetBalance(types.Address(testUser), nil)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
	_, err = env.router.StaticCall(context.Background(), router.Call{
		Input: pack(t, "deposit"),
		Value: big.NewInt(1),
	})
	assert.ErrorIs(t, err, router.ErrStaticCallValue)
}

func TestInvalidCallData(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	_, err := env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Input:  []byte{0x01, 0x02},
	})
	require.ErrorIs(t, err, router.ErrInvalidCallData)
	input := pack(t, "add", big.NewInt(1))
	_, err = env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Input:  input[:10],
	})
	require.ErrorIs(t, err, router.ErrInvalidCallData)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestNonceIsConsumedOnce(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	call := func(nonce uint64) error {
		_, err := env.router.Dispatch(context.Background(), router.Call{
			Caller: testUser,
			Input:  pack(t, "add", big.NewInt(1)),
			Nonce:  &nonce,
		})
		return err
	}
	require.NoError(t, call(1))
	assert.ErrorIs(t, call(1), router.ErrInvalidNonce)
	assert.ErrorIs(t, call(3), router.ErrInvalidNonce)
	require.NoError(t, call(2))
	nonce, err := env.db.GetAccountNonce(types.Address(testUser), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)
}

func TestDeployRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	err := env.router.Deploy(testModule, counterModule{})
	assert.ErrorIs(t, err, router.ErrModuleExists)
	err = env.router.Deploy(testHub, counterModule{})
	assert.ErrorIs(t, err, router.ErrInvalidModule)
}

func TestDispatchSurvivesModulePanic(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	assert.Panics(t, func() {
		_, _ = env.router.Dispatch(context.Background(), router.Call{
			Caller: testUser,
			Input:  pack(t, "explode"),
		})
	})
	assert.Panics(t, func() {
		_, _ = env.router.StaticCall(context.Background(), router.Call{
			Caller: testUser,
			Input:  pack(t, "explode"),
		})
	})
	// Neither the router lock nor the database connection is left held
	_, err := env.router.Dispatch(context.Background(), router.Call{
		Caller: testUser,
		Input:  pack(t, "add", big.NewInt(2)),
	})
	require.NoError(t, err)
	bal, err := env.db.GetBalance(types.Address(testUser), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), bal.Int64())
}

func TestFrameCallRunsAsHub(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()
	_, evtCh := env.eventBus.Subscribe("counter.added")

	out, err := env.router.Dispatch(ctx, router.Call{
		Caller: testUser,
		Input:  pack(t, "forward", pack(t, "add", big.NewInt(5))),
	})
	require.NoError(t, err)
	ret, err := counterABI.Unpack("forward", out)
	require.NoError(t, err)
	inner, err := counterABI.Unpack("add", ret[0].([]byte))
	require.NoError(t, err)
	assert.Equal(t, int64(5), inner[0].(*big.Int).Int64())
	hubBal, err := env.db.GetBalance(types.Address(testHub), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), hubBal.Int64())
	userBal, err := env.db.GetBalance(types.Address(testUser), nil)
	require.NoError(t, err)
	assert.Zero(t, userBal.Sign())
	select {
	case evt := <-evtCh:
		assert.Equal(t, uint64(5), evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for nested event")
	}

	// A failing nested call fails the outer one
	_, err = env.router.Dispatch(ctx, router.Call{
		Caller: testUser,
		Input:  pack(t, "forward", pack(t, "addThenFail", big.NewInt(1))),
	})
	require.ErrorIs(t, err, errCounterFailed)
	hubBal, err = env.db.GetBalance(types.Address(testHub), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), hubBal.Int64())

	input := pack(t, "add", big.NewInt(1))
	for range 10 {
		input = pack(t, "forward", input)
	}
	_, err = env.router.Dispatch(ctx, router.Call{Caller: testUser, Input: input})
	require.ErrorIs(t, err, router.ErrCallDepth)
}

func TestNewFrameBuffersEvents(t *testing.T) {
	env := newTestEnv(t)
	txn := env.db.Transaction(true)
	defer func() { _ = txn.Rollback() }()
	frame := router.NewFrame(context.Background(), env.db, txn, testUser, testNow)
	assert.Zero(t, frame.Depth())
	assert.False(t, frame.IsModule(testModule))

	frame.Emit("counter.added", uint64(1))
	require.NoError(t, frame.Savepoint("mark"))
	frame.Emit("counter.added", uint64(2))
	require.Len(t, frame.Events(), 2)
	assert.Equal(t, testNow, frame.Events()[1].Timestamp)
	require.NoError(t, frame.RollbackTo("mark"))
	require.Len(t, frame.Events(), 1)
	assert.Equal(t, uint64(1), frame.Events()[0].Data)

	_, err := frame.Call(pack(t, "add", big.NewInt(1)), nil)
	assert.ErrorIs(t, err, router.ErrNoRouter)
}
