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
	"time"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/errs"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProposal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, evtCh := env.eventBus.Subscribe(governance.ProposalCreatedEventType)

	first := env.propose(t)
	second := env.propose(t, localAction(bob), remark(t, "hi"))
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	count, err := env.client(bob).ProposalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	info, err := env.client(bob).GetProposal(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Id.Uint64())
	assert.Equal(t, alice, info.Proposer)
	assert.Equal(t, "test proposal", info.Description)
	assert.Equal(t, models.ProposalStatusActive, info.Status)
	assert.Equal(t, startTime.Unix(), info.StartTime.Int64())
	assert.Equal(t, startTime.Add(7*24*time.Hour).Unix(), info.EndTime.Int64())
	assert.Equal(t, uint64(2), info.ActionCount.Uint64())
	assert.Zero(t, info.ForVotes.Sign())

	actions, err := env.client(bob).GetProposalActions(ctx, second)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, bob, actions[0].Target)
	assert.True(t, actions[0].IsLocal())
	assert.Equal(t, uint32(1000), actions[1].TargetChainId)
	assert.Equal(t, remark(t, "hi").Payload, actions[1].Payload)

	select {
	case evt := <-evtCh:
		data := evt.Data.(governance.ProposalCreatedEvent)
		assert.Equal(t, first, data.ProposalID)
		assert.Equal(t, alice, data.Proposer)
	case <-time.After(time.Second):
		t.Fatal("no proposal created event")
	}

	period, err := env.client(bob).VotingPeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7*24*3600), period)
}

func TestCreateProposalLeavesActionsUntouched(t *testing.T) {
	env := newTestEnv(t)
	actions := []governance.Action{localAction(bob)}
	require.Nil(t, actions[0].Value)
	_, err := env.client(alice).CreateProposal(context.Background(), "untouched", actions)
	require.NoError(t, err)
	assert.Nil(t, actions[0].Value)
}

func TestCreateProposalWithoutActions(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.client(alice).CreateProposal(context.Background(), "empty", nil)
	require.ErrorIs(t, err, governance.ErrEmptyActions)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	count, err := env.client(alice).ProposalCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetProposalNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.client(alice).GetProposal(context.Background(), 9)
	assert.ErrorIs(t, err, governance.ErrProposalNotFound)
}

func TestVote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)

	require.NoError(t, env.client(alice).Vote(ctx, id, true))
	require.NoError(t, env.client(bob).Vote(ctx, id, true))
	require.NoError(t, env.client(carol).Vote(ctx, id, false))

	err := env.client(bob).Vote(ctx, id, false)
	require.ErrorIs(t, err, governance.ErrAlreadyVoted)
	assert.Equal(t, errs.KindStateConflict, errs.KindOf(err))

	info, err := env.client(dave).GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.ForVotes.Uint64())
	assert.Equal(t, uint64(1), info.AgainstVotes.Uint64())

	voted, err := env.client(dave).HasVoted(ctx, id, carol)
	require.NoError(t, err)
	assert.True(t, voted)
	voted, err = env.client(dave).HasVoted(ctx, id, dave)
	require.NoError(t, err)
	assert.False(t, voted)

	env.clock.Advance(governance.DefaultVotingPeriod)
	status, err := env.client(dave).TallyProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPassed, status)
}

func TestVoteAfterVotingEnds(t *testing.T) {
	env := newTestEnv(t)
	id := env.propose(t)
	env.clock.Advance(governance.DefaultVotingPeriod)
	err := env.client(bob).Vote(context.Background(), id, true)
	assert.ErrorIs(t, err, governance.ErrNotActive)
}

func TestVoteUnknownProposal(t *testing.T) {
	env := newTestEnv(t)
	err := env.client(bob).Vote(context.Background(), 42, true)
	assert.ErrorIs(t, err, governance.ErrProposalNotFound)
}

func TestVoteWhileDelegated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	err := env.client(bob).Vote(ctx, id, true)
	require.ErrorIs(t, err, governance.ErrDelegatedVote)

	voted, err := env.client(bob).HasVoted(ctx, id, bob)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestUndelegateAfterProxyVote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	weight, skipped, err := env.client(carol).VoteByProxy(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), weight)
	assert.Zero(t, skipped)

	require.NoError(t, env.client(bob).Undelegate(ctx))
	err = env.client(bob).Vote(ctx, id, false)
	assert.ErrorIs(t, err, governance.ErrAlreadyVoted)
}

func TestVoteByProxy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	for _, who := range []common.Address{alice, bob, dave} {
		require.NoError(t, env.client(who).Delegate(ctx, carol))
	}
	weight, skipped, err := env.client(carol).VoteByProxy(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), weight)
	assert.Zero(t, skipped)

	info, err := env.client(carol).GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), info.ForVotes.Uint64())
	for _, who := range []common.Address{alice, bob, carol, dave} {
		voted, err := env.client(carol).HasVoted(ctx, id, who)
		require.NoError(t, err)
		assert.True(t, voted, who.Hex())
	}
}

func TestVoteByProxySkipsVotedDelegators(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Vote(ctx, id, false))
	for _, who := range []common.Address{alice, bob, dave} {
		require.NoError(t, env.client(who).Delegate(ctx, carol))
	}
	weight, skipped, err := env.client(carol).VoteByProxy(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), weight)
	assert.Equal(t, uint64(1), skipped)

	info, err := env.client(carol).GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.ForVotes.Uint64())
	assert.Equal(t, uint64(1), info.AgainstVotes.Uint64())
}

func TestVoteByProxyNothingLeft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	_, _, err := env.client(carol).VoteByProxy(ctx, id, true)
	require.NoError(t, err)

	weight, skipped, err := env.client(carol).VoteByProxy(ctx, id, true)
	require.NoError(t, err)
	assert.Zero(t, weight)
	assert.Equal(t, uint64(1), skipped)

	info, err := env.client(carol).GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.ForVotes.Uint64())
}

func TestVoteByProxyWhileDelegated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	require.NoError(t, env.client(carol).Delegate(ctx, dave))
	_, _, err := env.client(carol).VoteByProxy(ctx, id, true)
	assert.ErrorIs(t, err, governance.ErrDelegatedVote)
}

func TestVoteByProxyNotActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	env.clock.Advance(governance.DefaultVotingPeriod + time.Second)
	_, _, err := env.client(carol).VoteByProxy(ctx, id, true)
	require.ErrorIs(t, err, governance.ErrNotActive)

	voted, err := env.client(carol).HasVoted(ctx, id, bob)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestVoteWeightNeverExceedsVoters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(alice).Vote(ctx, id, true))
	require.NoError(t, env.client(alice).Delegate(ctx, carol))
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	_, _, err := env.client(carol).VoteByProxy(ctx, id, true)
	require.NoError(t, err)
	_, _, err = env.client(carol).VoteByProxy(ctx, id, false)
	require.NoError(t, err)
	require.NoError(t, env.client(bob).Undelegate(ctx))
	require.ErrorIs(t, env.client(bob).Vote(ctx, id, true), governance.ErrAlreadyVoted)
	require.NoError(t, env.client(dave).Vote(ctx, id, false))

	info, err := env.client(dave).GetProposal(ctx, id)
	require.NoError(t, err)
	voters, err := env.db.CountVoteRecords(id, nil)
	require.NoError(t, err)
	total := info.ForVotes.Uint64() + info.AgainstVotes.Uint64()
	assert.LessOrEqual(t, total, voters)
	assert.Equal(t, uint64(4), voters)
}

func TestTallyProposal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Vote(ctx, id, true))

	_, err := env.client(carol).TallyProposal(ctx, id)
	require.ErrorIs(t, err, governance.ErrVotingStillOpen)

	env.clock.Advance(governance.DefaultVotingPeriod - time.Second)
	_, err = env.client(carol).TallyProposal(ctx, id)
	require.ErrorIs(t, err, governance.ErrVotingStillOpen)

	env.clock.Advance(time.Second)
	status, err := env.client(carol).TallyProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPassed, status)

	_, err = env.client(carol).TallyProposal(ctx, id)
	require.ErrorIs(t, err, governance.ErrAlreadyTallied)
	assert.Equal(t, errs.KindStateConflict, errs.KindOf(err))
}

func TestTallyTieFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Vote(ctx, id, true))
	require.NoError(t, env.client(carol).Vote(ctx, id, false))
	env.clock.Advance(governance.DefaultVotingPeriod)
	status, err := env.client(carol).TallyProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusFailed, status)
}

func TestTallyNoVotesFails(t *testing.T) {
	env := newTestEnv(t)
	id := env.propose(t)
	env.clock.Advance(governance.DefaultVotingPeriod)
	status, err := env.client(carol).TallyProposal(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusFailed, status)
}

func TestTallyQuorum(t *testing.T) {
	env := newTestEnv(t, withQuorum(3))
	ctx := context.Background()
	short := env.propose(t)
	met := env.propose(t)
	require.NoError(t, env.client(bob).Vote(ctx, short, true))
	require.NoError(t, env.client(carol).Vote(ctx, short, true))
	for _, who := range []common.Address{bob, carol, dave} {
		require.NoError(t, env.client(who).Vote(ctx, met, who != dave))
	}
	env.clock.Advance(governance.DefaultVotingPeriod)

	info, err := env.client(bob).GetProposal(ctx, short)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.QuorumVotes.Uint64())

	status, err := env.client(bob).TallyProposal(ctx, short)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusFailed, status)
	status, err = env.client(bob).TallyProposal(ctx, met)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPassed, status)
}

func TestUnprovisionedHub(t *testing.T) {
	env := newTestEnv(t)
	sel := router.SelectorOf("vote(uint256,bool)")
	require.NoError(t, env.router.SetImplementations(
		context.Background(),
		testOwner,
		[]router.Selector{sel},
		[]common.Address{{}},
	))
	err := env.client(bob).Vote(context.Background(), 1, true)
	require.ErrorIs(t, err, router.ErrImplementationNotSet)
	assert.Equal(t, errs.KindDependency, errs.KindOf(err))
}

func TestGovernanceMetrics(t *testing.T) {
	env := newTestEnv(t)
	metrics := governance.NewMetrics(env.eventBus, env.registry)
	defer metrics.Close()
	ctx := context.Background()
	id := env.propose(t)
	require.NoError(t, env.client(bob).Delegate(ctx, carol))
	_, _, err := env.client(carol).VoteByProxy(ctx, id, true)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return counterSum(env, "arbiter_governance_proposals_created_total") == 1 &&
			counterSum(env, "arbiter_governance_votes_total") == 2 &&
			counterSum(env, "arbiter_governance_delegation_changes_total") == 1
	}, time.Second, 10*time.Millisecond)
}

// counterSum adds up every series of a counter family
func counterSum(env *testEnv, name string) float64 {
	families, err := env.registry.Gather()
	if err != nil {
		return -1
	}
	var sum float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}
