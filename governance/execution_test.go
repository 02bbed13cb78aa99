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
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errContractFailed = errors.New("contract failed")

var (
	recorderAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	failerAddr   = common.HexToAddress("0x00000000000000000000000000000000000c0de2")
	sideEffect   = common.HexToAddress("0x00000000000000000000000000000000000005e1")
)

// recorder counts its calls in the balance of sideEffect
type recorder struct {
	payloads [][]byte
}

func (r *recorder) Invoke(frame *router.Frame, _ *big.Int, payload []byte) error {
	r.payloads = append(r.payloads, payload)
	return frame.DB.AddBalance(types.Address(sideEffect), big.NewInt(1), frame.Txn)
}

func failer(frame *router.Frame, _ *big.Int, _ []byte) error {
	if err := frame.DB.AddBalance(types.Address(sideEffect), big.NewInt(100), frame.Txn); err != nil {
		return err
	}
	return errContractFailed
}

func (e *testEnv) fund(t *testing.T, amount int64) {
	t.Helper()
	_, err := e.router.Dispatch(context.Background(), router.Call{
		Caller: dave,
		Value:  big.NewInt(amount),
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, who common.Address) int64 {
	t.Helper()
	bal, err := e.db.GetBalance(types.Address(who), nil)
	require.NoError(t, err)
	return bal.Int64()
}

func TestExecuteRequiresPassed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	_, err := env.client(bob).ExecuteProposal(ctx, id, nil)
	require.ErrorIs(t, err, governance.ErrNotPassed)

	env.clock.Advance(governance.DefaultVotingPeriod)
	_, err = env.client(bob).TallyProposal(ctx, id)
	require.NoError(t, err)
	_, err = env.client(bob).ExecuteProposal(ctx, id, nil)
	require.ErrorIs(t, err, governance.ErrNotPassed)

	_, err = env.client(bob).ExecuteProposal(ctx, 99, nil)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
}

func TestExecuteLocalActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := &recorder{}
	env.modules.Execution.RegisterContract(recorderAddr, rec)
	env.fund(t, 50)

	id := env.pass(t,
		governance.Action{Target: erin, Value: big.NewInt(30)},
		governance.Action{Target: recorderAddr, Payload: []byte{0xca, 0xfe}},
	)
	results, err := env.client(bob).ExecuteProposal(ctx, id, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.True(t, r.Success, r.Error)
		assert.Equal(t, uint32(i), r.ActionIndex)
		assert.Zero(t, r.ChainId)
	}
	assert.Equal(t, int64(30), env.balance(t, erin))
	assert.Equal(t, int64(20), env.balance(t, hubAddr))
	assert.Equal(t, [][]byte{{0xca, 0xfe}}, rec.payloads)

	info, err := env.client(bob).GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusExecuted, info.Status)
	assert.Equal(t, env.clock.Now().Unix(), info.ExecutedTime.Int64())
}

func TestExecuteIsBestEffort(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.modules.Execution.RegisterContract(failerAddr, governance.LocalContractFunc(failer))
	env.fund(t, 10)

	id := env.pass(t,
		governance.Action{Target: failerAddr, Value: big.NewInt(5)},
		governance.Action{Target: erin, Value: big.NewInt(1000)},
		governance.Action{Target: erin, Value: big.NewInt(4)},
		governance.Action{TargetChainId: 1000, Payload: []byte("not a payload")},
	)
	results, err := env.client(bob).ExecuteProposal(ctx, id, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, errContractFailed.Error())
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, governance.ErrTreasuryBalance.Error())
	assert.True(t, results[2].Success)
	assert.False(t, results[3].Success)
	assert.Contains(t, results[3].Error, xcm.ErrInvalidPayload.Error())
	assert.Equal(t, uint32(1000), results[3].ChainId)

	// The failed contract call is undone including its value transfer
	assert.Zero(t, env.balance(t, sideEffect))
	assert.Zero(t, env.balance(t, failerAddr))
	assert.Equal(t, int64(4), env.balance(t, erin))
	assert.Equal(t, int64(6), env.balance(t, hubAddr))

	stored, err := env.client(bob).GetActionResults(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, results, stored)
}

func TestExecuteRemoteAction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, queued := env.eventBus.Subscribe(governance.RemoteActionSubmittedEventType)
	action := remark(t, "hello")
	id := env.pass(t, action)

	results, err := env.client(bob).ExecuteProposal(ctx, id, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Error)
	assert.NotEmpty(t, results[0].MessageId)

	pending, err := env.outbox.Pending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	msg := pending[0]
	payload, err := xcm.Unpack(action.Payload)
	require.NoError(t, err)
	assert.Equal(t, results[0].MessageId, msg.ID)
	assert.Equal(t, id, msg.ProposalID)
	assert.Equal(t, uint32(1000), msg.ChainID)
	assert.Equal(t, payload.Destination, msg.Destination)
	assert.Equal(t, payload.Message, msg.Payload)

	evt := <-queued
	data := evt.Data.(governance.RemoteActionSubmittedEvent)
	assert.Equal(t, msg.ID, data.MessageID)
}

func TestExecuteTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.pass(t, remark(t, "once"))
	_, err := env.client(bob).ExecuteProposal(ctx, id, nil)
	require.NoError(t, err)

	_, err = env.client(bob).ExecuteProposal(ctx, id, nil)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)

	pending, err := env.outbox.Pending(10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestExecuteIsPayable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.pass(t, governance.Action{Target: erin, Value: big.NewInt(7)})
	results, err := env.client(bob).ExecuteProposal(ctx, id, big.NewInt(7))
	require.NoError(t, err)
	assert.True(t, results[0].Success, results[0].Error)
	assert.Equal(t, int64(7), env.balance(t, erin))

	treasury, err := env.client(bob).TreasuryBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, treasury.Sign())
}

func TestExecuteFailureRollsBackValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	_, err := env.client(bob).ExecuteProposal(ctx, id, big.NewInt(9))
	require.ErrorIs(t, err, governance.ErrNotPassed)
	assert.Zero(t, env.balance(t, hubAddr))
}

func TestExecutionReads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.client(bob)

	env.fund(t, 12)
	treasury, err := client.TreasuryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), treasury.Int64())

	available, err := client.IsXcmAvailable(ctx)
	require.NoError(t, err)
	assert.True(t, available)

	dest, err := client.EncodeParachainDestination(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, "0x03010100a10f", hexutil.Encode(dest))
	dest, err = client.EncodeParachainDestination(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "0x030100", hexutil.Encode(dest))
}

type downResolver struct{}

func (downResolver) CallIndex(context.Context, string, string) (xcm.CallIndex, error) {
	return xcm.CallIndex{}, errors.New("connection refused")
}

func (downResolver) XcmVersion(context.Context) (uint32, error) {
	return 0, errors.New("connection refused")
}

func TestXcmUnavailable(t *testing.T) {
	env := newTestEnv(t, withCodec(xcm.NewCodec(downResolver{})))
	available, err := env.client(bob).IsXcmAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, available)
}

func TestExecuteCallsBackIntoHub(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, delegated := env.eventBus.Subscribe(governance.DelegationChangedEventType)
	env.fund(t, 10)
	delegateBob, err := governance.DelegationABI.Pack("delegate", bob)
	require.NoError(t, err)
	delegateSelf, err := governance.DelegationABI.Pack("delegate", hubAddr)
	require.NoError(t, err)
	executeFirst, err := governance.ExecutionABI.Pack("executeProposal", big.NewInt(1))
	require.NoError(t, err)

	id := env.pass(t,
		governance.Action{Target: hubAddr, Payload: delegateBob},
		governance.Action{Target: hubAddr, Value: big.NewInt(5)},
		governance.Action{Target: hubAddr, Payload: delegateSelf},
		governance.Action{Target: hubAddr, Payload: executeFirst},
		governance.Action{Target: governance.DelegationModuleAddress, Payload: delegateBob},
	)
	require.Equal(t, uint64(1), id)
	results, err := env.client(bob).ExecuteProposal(ctx, id, nil)
	require.NoError(t, err)
	require.Len(t, results, 5)

	// The hub is the caller of the routed payload
	assert.True(t, results[0].Success, results[0].Error)
	delegate, err := env.client(bob).GetDelegate(ctx, hubAddr)
	require.NoError(t, err)
	assert.Equal(t, bob, delegate)
	select {
	case evt := <-delegated:
		data := evt.Data.(governance.DelegationChangedEvent)
		assert.Equal(t, hubAddr, data.Delegator)
		assert.Equal(t, bob, data.Delegate)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delegation event")
	}

	// A bare transfer to the hub funds it, leaving the treasury unchanged
	assert.True(t, results[1].Success, results[1].Error)
	assert.Equal(t, int64(10), env.balance(t, hubAddr))

	assert.False(t, results[2].Success)
	assert.Contains(t, results[2].Error, governance.ErrSelfDelegation.Error())

	// Re-entering the executing proposal is refused
	assert.False(t, results[3].Success)
	assert.Contains(t, results[3].Error, governance.ErrAlreadyExecuted.Error())

	assert.False(t, results[4].Success)
	assert.Contains(t, results[4].Error, governance.ErrModuleTarget.Error())
	delegators, err := env.client(bob).Delegators(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{hubAddr}, delegators)
}
