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

// Package governance implements the proposal, delegation and execution
// modules that run behind the hub router
package governance

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DefaultVotingPeriod is the time a proposal stays open for votes
const DefaultVotingPeriod = 7 * 24 * time.Hour

const (
	ProposalModuleName   = "proposal"
	DelegationModuleName = "delegation"
	ExecutionModuleName  = "execution"
)

var (
	ProposalModuleAddress   = router.ModuleAddress(ProposalModuleName)
	DelegationModuleAddress = router.ModuleAddress(DelegationModuleName)
	ExecutionModuleAddress  = router.ModuleAddress(ExecutionModuleName)
)

var errUnknownMethod = errors.New("unknown method")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// uint64Arg converts a uint256 argument that must fit in 64 bits
func uint64Arg(v any, notFit error) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil || !n.IsUint64() {
		return 0, notFit
	}
	return n.Uint64(), nil
}

func big64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func bigTime(v int64) *big.Int {
	return big.NewInt(v)
}

func loadProposal(frame *router.Frame, arg any) (*models.Proposal, error) {
	id, err := uint64Arg(arg, ErrProposalNotFound)
	if err != nil {
		return nil, err
	}
	proposal, err := frame.DB.GetProposal(id, frame.Txn)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
		}
		return nil, err
	}
	return proposal, nil
}

func proposalInfo(p *models.Proposal) ProposalInfo {
	return ProposalInfo{
		Id:           big64(p.ID),
		Proposer:     p.Proposer.Common(),
		Description:  p.Description,
		ForVotes:     big64(p.ForVotes),
		AgainstVotes: big64(p.AgainstVotes),
		QuorumVotes:  big64(p.QuorumVotes),
		StartTime:    bigTime(p.StartTime),
		EndTime:      bigTime(p.EndTime),
		Status:       p.Status,
		ExecutedTime: bigTime(p.ExecutedTime),
		ActionCount:  big64(uint64(p.ActionCount)),
	}
}

func actionFromModel(a models.ProposalAction) Action {
	value := a.Value.Big()
	if value == nil {
		value = new(big.Int)
	}
	return Action{
		TargetChainId: a.TargetChainID,
		Target:        a.Target.Common(),
		Value:         value,
		Payload:       a.Payload,
		Description:   a.Description,
	}
}

func actionToModel(proposalID uint64, index uint32, a Action) models.ProposalAction {
	value := a.Value
	if value == nil {
		value = new(big.Int)
	}
	return models.ProposalAction{
		ProposalID:    proposalID,
		ActionIndex:   index,
		TargetChainID: a.TargetChainId,
		Target:        types.Address(a.Target),
		Value:         types.NewBigInt(value),
		Payload:       a.Payload,
		Description:   a.Description,
	}
}

func resultFromModel(r models.ActionResult) ActionResult {
	return ActionResult{
		ActionIndex: r.ActionIndex,
		ChainId:     r.TargetChainID,
		Success:     r.Success,
		Error:       r.Error,
		MessageId:   r.MessageID,
	}
}

// Selectors returns every selector a module answers, ordered by signature
func Selectors(m router.Module) []router.Selector {
	return router.MethodSelectors(m.ABI())
}

func methodError(m router.Module, method *abi.Method) error {
	return fmt.Errorf("%w: %s.%s", errUnknownMethod, m.Name(), method.Name)
}
