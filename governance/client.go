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

package governance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller is the hub entry point a Client sends calls through
type Caller interface {
	Dispatch(ctx context.Context, call router.Call) ([]byte, error)
	StaticCall(ctx context.Context, call router.Call) ([]byte, error)
}

// Client calls the governance modules through the hub as one account
type Client struct {
	hub  Caller
	from common.Address
}

func NewClient(hub Caller, from common.Address) *Client {
	return &Client{hub: hub, from: from}
}

// From returns the account the client calls as
func (c *Client) From() common.Address {
	return c.from
}

// As returns a client for the same hub calling as from
func (c *Client) As(from common.Address) *Client {
	return &Client{hub: c.hub, from: from}
}

func (c *Client) transact(
	ctx context.Context,
	contract *abi.ABI,
	value *big.Int,
	name string,
	args ...any,
) ([]any, error) {
	input, err := contract.Pack(name, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	ret, err := c.hub.Dispatch(ctx, router.Call{Caller: c.from, Input: input, Value: value})
	if err != nil {
		return nil, err
	}
	return contract.Unpack(name, ret)
}

func (c *Client) call(ctx context.Context, contract *abi.ABI, name string, args ...any) ([]any, error) {
	input, err := contract.Pack(name, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	ret, err := c.hub.StaticCall(ctx, router.Call{Caller: c.from, Input: input})
	if err != nil {
		return nil, err
	}
	return contract.Unpack(name, ret)
}

func (c *Client) CreateProposal(ctx context.Context, description string, actions []Action) (uint64, error) {
	packed := make([]Action, len(actions))
	for i, action := range actions {
		if action.Value == nil {
			action.Value = new(big.Int)
		}
		packed[i] = action
	}
	out, err := c.transact(ctx, ProposalABI, nil, "createProposal", description, packed)
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (c *Client) Vote(ctx context.Context, proposalID uint64, support bool) error {
	_, err := c.transact(ctx, ProposalABI, nil, "vote", big64(proposalID), support)
	return err
}

// VoteByProxy returns the weight added and the number of delegators skipped
// because they had already voted
func (c *Client) VoteByProxy(ctx context.Context, proposalID uint64, support bool) (uint64, uint64, error) {
	out, err := c.transact(ctx, ProposalABI, nil, "voteByProxy", big64(proposalID), support)
	if err != nil {
		return 0, 0, err
	}
	return out[0].(*big.Int).Uint64(), out[1].(*big.Int).Uint64(), nil
}

// TallyProposal returns the resulting status
func (c *Client) TallyProposal(ctx context.Context, proposalID uint64) (uint8, error) {
	out, err := c.transact(ctx, ProposalABI, nil, "tallyProposal", big64(proposalID))
	if err != nil {
		return 0, err
	}
	return out[0].(uint8), nil
}

// ExecuteProposal executes a passed proposal, crediting value to the
// treasury first
func (c *Client) ExecuteProposal(ctx context.Context, proposalID uint64, value *big.Int) ([]ActionResult, error) {
	out, err := c.transact(ctx, ExecutionABI, value, "executeProposal", big64(proposalID))
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]ActionResult)).(*[]ActionResult), nil
}

func (c *Client) Delegate(ctx context.Context, to common.Address) error {
	_, err := c.transact(ctx, DelegationABI, nil, "delegate", to)
	return err
}

func (c *Client) Undelegate(ctx context.Context) error {
	_, err := c.transact(ctx, DelegationABI, nil, "undelegate")
	return err
}

func (c *Client) GetProposal(ctx context.Context, proposalID uint64) (ProposalInfo, error) {
	out, err := c.call(ctx, ProposalABI, "getProposal", big64(proposalID))
	if err != nil {
		return ProposalInfo{}, err
	}
	return *abi.ConvertType(out[0], new(ProposalInfo)).(*ProposalInfo), nil
}

func (c *Client) GetProposalActions(ctx context.Context, proposalID uint64) ([]Action, error) {
	out, err := c.call(ctx, ProposalABI, "getProposalActions", big64(proposalID))
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]Action)).(*[]Action), nil
}

func (c *Client) ProposalCount(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, ProposalABI, "proposalCount")
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (c *Client) HasVoted(ctx context.Context, proposalID uint64, voter common.Address) (bool, error) {
	out, err := c.call(ctx, ProposalABI, "hasVoted", big64(proposalID), voter)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// VotingPeriod returns the voting period in seconds
func (c *Client) VotingPeriod(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, ProposalABI, "votingPeriod")
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (c *Client) GetDelegate(ctx context.Context, who common.Address) (common.Address, error) {
	out, err := c.call(ctx, DelegationABI, "getDelegate", who)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (c *Client) HasDelegated(ctx context.Context, who common.Address) (bool, error) {
	out, err := c.call(ctx, DelegationABI, "hasDelegated", who)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *Client) GetDelegatorCount(ctx context.Context, who common.Address) (uint64, error) {
	out, err := c.call(ctx, DelegationABI, "getDelegatorCount", who)
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (c *Client) GetDelegatorAtIndex(ctx context.Context, who common.Address, index uint64) (common.Address, error) {
	out, err := c.call(ctx, DelegationABI, "getDelegatorAtIndex", who, big64(index))
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// Delegators lists the delegators of who in index order
func (c *Client) Delegators(ctx context.Context, who common.Address) ([]common.Address, error) {
	count, err := c.GetDelegatorCount(ctx, who)
	if err != nil {
		return nil, err
	}
	ret := make([]common.Address, 0, count)
	for i := range count {
		addr, err := c.GetDelegatorAtIndex(ctx, who, i)
		if err != nil {
			return nil, err
		}
		ret = append(ret, addr)
	}
	return ret, nil
}

func (c *Client) GetActionResults(ctx context.Context, proposalID uint64) ([]ActionResult, error) {
	out, err := c.call(ctx, ExecutionABI, "getActionResults", big64(proposalID))
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]ActionResult)).(*[]ActionResult), nil
}

func (c *Client) TreasuryBalance(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, ExecutionABI, "treasuryBalance")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (c *Client) IsXcmAvailable(ctx context.Context) (bool, error) {
	out, err := c.call(ctx, ExecutionABI, "isXcmAvailable")
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *Client) EncodeParachainDestination(ctx context.Context, paraID uint32) ([]byte, error) {
	out, err := c.call(ctx, ExecutionABI, "encodeParachainDestination", paraID)
	if err != nil {
		return nil, err
	}
	return out[0].([]byte), nil
}
