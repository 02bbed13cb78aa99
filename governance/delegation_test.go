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
	"testing"

	"github.com/blinklabs-io/arbiter/errs"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelegateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.client(bob).Delegate(ctx, bob)
	require.ErrorIs(t, err, governance.ErrSelfDelegation)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	err = env.client(bob).Delegate(ctx, common.Address{})
	require.ErrorIs(t, err, governance.ErrInvalidDelegatee)

	delegated, err := env.client(bob).HasDelegated(ctx, bob)
	require.NoError(t, err)
	assert.False(t, delegated)
}

func TestDelegateAndQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.client(bob).Delegate(ctx, carol))

	delegate, err := env.client(alice).GetDelegate(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, carol, delegate)
	delegate, err = env.client(alice).GetDelegate(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, delegate)

	delegated, err := env.client(alice).HasDelegated(ctx, bob)
	require.NoError(t, err)
	assert.True(t, delegated)

	count, err := env.client(alice).GetDelegatorCount(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	first, err := env.client(alice).GetDelegatorAtIndex(ctx, carol, 0)
	require.NoError(t, err)
	assert.Equal(t, bob, first)

	_, err = env.client(alice).GetDelegatorAtIndex(ctx, carol, 1)
	require.ErrorIs(t, err, governance.ErrIndexOutOfRange)
	_, err = env.client(alice).GetDelegatorAtIndex(ctx, dave, 0)
	require.ErrorIs(t, err, governance.ErrIndexOutOfRange)
}

func TestUndelegateWithoutDelegate(t *testing.T) {
	env := newTestEnv(t)
	err := env.client(bob).Undelegate(context.Background())
	require.ErrorIs(t, err, governance.ErrNotDelegating)
	assert.Equal(t, errs.KindStateConflict, errs.KindOf(err))
}

func TestUndelegateSwapsLastIntoSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	delegators := []common.Address{alice, bob, dave, erin}
	for _, who := range delegators {
		require.NoError(t, env.client(who).Delegate(ctx, carol))
	}
	list, err := env.client(carol).Delegators(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, delegators, list)

	require.NoError(t, env.client(bob).Undelegate(ctx))

	list, err = env.client(carol).Delegators(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice, erin, dave}, list)
	assert.NotContains(t, list, bob)

	// Removing the last element leaves the others in place
	require.NoError(t, env.client(dave).Undelegate(ctx))
	list, err = env.client(carol).Delegators(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice, erin}, list)

	delegated, err := env.client(bob).HasDelegated(ctx, bob)
	require.NoError(t, err)
	assert.False(t, delegated)
}

func TestRedelegateMovesBetweenIndexes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.client(alice).Delegate(ctx, carol))
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	require.NoError(t, env.client(alice).Delegate(ctx, dave))

	carolList, err := env.client(erin).Delegators(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{bob}, carolList)
	daveList, err := env.client(erin).Delegators(ctx, dave)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice}, daveList)

	delegate, err := env.client(erin).GetDelegate(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, dave, delegate)
}

func TestRedelegateToSameDelegate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.client(alice).Delegate(ctx, carol))
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	require.NoError(t, env.client(alice).Delegate(ctx, carol))

	list, err := env.client(erin).Delegators(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice, bob}, list)
}

func TestDelegationEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, evtCh := env.eventBus.Subscribe(governance.DelegationChangedEventType)
	require.NoError(t, env.client(alice).Delegate(ctx, carol))
	require.NoError(t, env.client(alice).Delegate(ctx, dave))
	require.NoError(t, env.client(alice).Undelegate(ctx))

	expected := []governance.DelegationChangedEvent{
		{Delegator: alice, Delegate: carol},
		{Delegator: alice, Previous: carol, Delegate: dave},
		{Delegator: alice, Previous: dave},
	}
	for _, want := range expected {
		evt := <-evtCh
		assert.Equal(t, want, evt.Data)
	}
}

func TestFailedDelegationLeavesIndexIntact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.client(alice).Delegate(ctx, carol))
	require.Error(t, env.client(alice).Delegate(ctx, alice))

	delegate, err := env.client(erin).GetDelegate(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, carol, delegate)
	count, err := env.client(erin).GetDelegatorCount(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
