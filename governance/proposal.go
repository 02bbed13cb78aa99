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
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type ProposalConfig struct {
	Logger       *slog.Logger
	VotingPeriod time.Duration
	// QuorumVotes is snapshotted into each new proposal. A proposal passes
	// only when at least this many votes were cast.
	QuorumVotes uint64
}

// ProposalModule owns proposals, their vote totals and the per voter vote
// records
type ProposalModule struct {
	logger       *slog.Logger
	votingPeriod time.Duration
	quorumVotes  uint64
}

func NewProposalModule(cfg ProposalConfig) *ProposalModule {
	m := &ProposalModule{
		logger:       cfg.Logger,
		votingPeriod: cfg.VotingPeriod,
		quorumVotes:  cfg.QuorumVotes,
	}
	if m.logger == nil {
		m.logger = discardLogger()
	}
	m.logger = m.logger.With("component", "governance", "module", ProposalModuleName)
	if m.votingPeriod <= 0 {
		m.votingPeriod = DefaultVotingPeriod
	}
	return m
}

func (m *ProposalModule) Name() string { return ProposalModuleName }

func (m *ProposalModule) ABI() *abi.ABI { return ProposalABI }

func (m *ProposalModule) VotingPeriod() time.Duration {
	return m.votingPeriod
}

func (m *ProposalModule) Handle(frame *router.Frame, method *abi.Method, args []any) ([]any, error) {
	switch method.Name {
	case "createProposal":
		actions := *abi.ConvertType(args[1], new([]Action)).(*[]Action)
		id, err := m.createProposal(frame, args[0].(string), actions)
		if err != nil {
			return nil, err
		}
		return []any{big64(id)}, nil
	case "vote":
		return nil, m.vote(frame, args[0], args[1].(bool))
	case "voteByProxy":
		weight, skipped, err := m.voteByProxy(frame, args[0], args[1].(bool))
		if err != nil {
			return nil, err
		}
		return []any{big64(weight), big64(skipped)}, nil
	case "tallyProposal":
		status, err := m.tallyProposal(frame, args[0])
		if err != nil {
			return nil, err
		}
		return []any{status}, nil
	case "getProposal":
		p, err := loadProposal(frame, args[0])
		if err != nil {
			return nil, err
		}
		return []any{proposalInfo(p)}, nil
	case "getProposalActions":
		p, err := loadProposal(frame, args[0])
		if err != nil {
			return nil, err
		}
		actions, err := frame.DB.GetProposalActions(p.ID, frame.Txn)
		if err != nil {
			return nil, err
		}
		ret := make([]Action, 0, len(actions))
		for _, a := range actions {
			ret = append(ret, actionFromModel(a))
		}
		return []any{ret}, nil
	case "proposalCount":
		count, err := frame.DB.ProposalCount(frame.Txn)
		if err != nil {
			return nil, err
		}
		return []any{big64(count)}, nil
	case "hasVoted":
		id, err := uint64Arg(args[0], ErrProposalNotFound)
		if err != nil {
			return nil, err
		}
		record, err := frame.DB.GetVoteRecord(id, types.Address(args[1].(common.Address)), frame.Txn)
		if err != nil {
			return nil, err
		}
		return []any{record != nil}, nil
	case "votingPeriod":
		return []any{bigTime(int64(m.votingPeriod / time.Second))}, nil
	}
	return nil, methodError(m, method)
}

func (m *ProposalModule) createProposal(
	frame *router.Frame,
	description string,
	actions []Action,
) (uint64, error) {
	if len(actions) == 0 {
		return 0, ErrEmptyActions
	}
	if uint64(len(actions)) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: too many actions", ErrInvalidAction)
	}
	for i, a := range actions {
		if a.Value != nil && a.Value.Sign() < 0 {
			return 0, fmt.Errorf("%w: action %d has a negative value", ErrInvalidAction, i)
		}
	}
	id, err := frame.DB.NextProposalID(frame.Txn)
	if err != nil {
		return 0, err
	}
	now := frame.Now.Unix()
	proposal := &models.Proposal{
		ID:          id,
		Proposer:    types.Address(frame.Caller),
		Description: description,
		QuorumVotes: m.quorumVotes,
		StartTime:   now,
		EndTime:     frame.Now.Add(m.votingPeriod).Unix(),
		Status:      models.ProposalStatusActive,
		ActionCount: uint32(len(actions)), // #nosec G115
	}
	rows := make([]models.ProposalAction, 0, len(actions))
	for i, a := range actions {
		rows = append(rows, actionToModel(id, uint32(i), a)) // #nosec G115
	}
	if err := frame.DB.CreateProposal(proposal, rows, frame.Txn); err != nil {
		return 0, fmt.Errorf("create proposal: %w", err)
	}
	frame.Emit(ProposalCreatedEventType, ProposalCreatedEvent{
		ProposalID:  id,
		Proposer:    frame.Caller,
		Description: description,
		ActionCount: len(actions),
		EndTime:     proposal.EndTime,
	})
	m.logger.Debug(
		"created proposal",
		"proposal_id", id,
		"proposer", frame.Caller.Hex(),
		"actions", len(actions),
	)
	return id, nil
}

// activeProposal loads a proposal that is still accepting votes
func (m *ProposalModule) activeProposal(frame *router.Frame, arg any) (*models.Proposal, error) {
	p, err := loadProposal(frame, arg)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalStatusActive || frame.Now.Unix() >= p.EndTime {
		return nil, fmt.Errorf("%w: %d", ErrNotActive, p.ID)
	}
	return p, nil
}

func hasDelegate(frame *router.Frame, who common.Address) (bool, error) {
	_, err := frame.DB.GetDelegation(types.Address(who), frame.Txn)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, models.ErrDelegationNotFound) {
		return false, nil
	}
	return false, err
}

func (m *ProposalModule) markVoted(
	frame *router.Frame,
	proposalID uint64,
	voter common.Address,
	proxy common.Address,
	support bool,
) error {
	return frame.DB.AddVoteRecord(&models.VoteRecord{
		ProposalID: proposalID,
		Voter:      types.Address(voter),
		Support:    support,
		Proxy:      types.Address(proxy),
		Time:       frame.Now.Unix(),
	}, frame.Txn)
}

func addVotes(p *models.Proposal, support bool, weight uint64) {
	if support {
		p.ForVotes += weight
	} else {
		p.AgainstVotes += weight
	}
}

func (m *ProposalModule) vote(frame *router.Frame, arg any, support bool) error {
	p, err := m.activeProposal(frame, arg)
	if err != nil {
		return err
	}
	record, err := frame.DB.GetVoteRecord(p.ID, types.Address(frame.Caller), frame.Txn)
	if err != nil {
		return err
	}
	if record != nil {
		return fmt.Errorf("%w: %s on %d", ErrAlreadyVoted, frame.Caller.Hex(), p.ID)
	}
	delegated, err := hasDelegate(frame, frame.Caller)
	if err != nil {
		return err
	}
	if delegated {
		return fmt.Errorf("%w: %s", ErrDelegatedVote, frame.Caller.Hex())
	}
	if err := m.markVoted(frame, p.ID, frame.Caller, common.Address{}, support); err != nil {
		return err
	}
	addVotes(p, support, 1)
	if err := frame.DB.UpdateProposal(p, frame.Txn); err != nil {
		return err
	}
	frame.Emit(VoteCastEventType, VoteCastEvent{
		ProposalID: p.ID,
		Voter:      frame.Caller,
		Support:    support,
	})
	return nil
}

// voteByProxy votes for the caller and every current delegator of the
// caller. Voters that already have a vote record are skipped, which is not
// an error.
func (m *ProposalModule) voteByProxy(
	frame *router.Frame,
	arg any,
	support bool,
) (uint64, uint64, error) {
	p, err := m.activeProposal(frame, arg)
	if err != nil {
		return 0, 0, err
	}
	delegated, err := hasDelegate(frame, frame.Caller)
	if err != nil {
		return 0, 0, err
	}
	if delegated {
		return 0, 0, fmt.Errorf("%w: %s", ErrDelegatedVote, frame.Caller.Hex())
	}
	var weight, skipped uint64
	record, err := frame.DB.GetVoteRecord(p.ID, types.Address(frame.Caller), frame.Txn)
	if err != nil {
		return 0, 0, err
	}
	if record == nil {
		if err := m.markVoted(frame, p.ID, frame.Caller, common.Address{}, support); err != nil {
			return 0, 0, err
		}
		weight++
	}
	delegators, err := frame.DB.GetDelegators(types.Address(frame.Caller), frame.Txn)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range delegators {
		if d.Delegate.Common() != frame.Caller {
			continue
		}
		record, err := frame.DB.GetVoteRecord(p.ID, d.Delegator, frame.Txn)
		if err != nil {
			return 0, 0, err
		}
		if record != nil {
			skipped++
			continue
		}
		if err := m.markVoted(frame, p.ID, d.Delegator.Common(), frame.Caller, support); err != nil {
			return 0, 0, err
		}
		weight++
	}
	addVotes(p, support, weight)
	if err := frame.DB.UpdateProposal(p, frame.Txn); err != nil {
		return 0, 0, err
	}
	frame.Emit(ProxyVoteCastEventType, ProxyVoteCastEvent{
		ProposalID: p.ID,
		Delegate:   frame.Caller,
		Support:    support,
		Weight:     weight,
		Skipped:    skipped,
	})
	if skipped > 0 {
		m.logger.Debug(
			"skipped delegators that already voted",
			"proposal_id", p.ID,
			"delegate", frame.Caller.Hex(),
			"skipped", skipped,
		)
	}
	return weight, skipped, nil
}

func (m *ProposalModule) tallyProposal(frame *router.Frame, arg any) (uint8, error) {
	p, err := loadProposal(frame, arg)
	if err != nil {
		return 0, err
	}
	if frame.Now.Unix() < p.EndTime {
		return 0, fmt.Errorf(
			"%w: %d closes at %s",
			ErrVotingStillOpen,
			p.ID,
			time.Unix(p.EndTime, 0).UTC().Format(time.RFC3339),
		)
	}
	if p.Status != models.ProposalStatusActive {
		return 0, fmt.Errorf("%w: %d", ErrAlreadyTallied, p.ID)
	}
	p.Status = models.ProposalStatusFailed
	if p.ForVotes > p.AgainstVotes && p.ForVotes+p.AgainstVotes >= p.QuorumVotes {
		p.Status = models.ProposalStatusPassed
	}
	if err := frame.DB.UpdateProposal(p, frame.Txn); err != nil {
		return 0, err
	}
	frame.Emit(ProposalTalliedEventType, ProposalTalliedEvent{
		ProposalID:   p.ID,
		Status:       p.Status,
		ForVotes:     p.ForVotes,
		AgainstVotes: p.AgainstVotes,
	})
	m.logger.Info(
		"tallied proposal",
		"proposal_id", p.ID,
		"status", StatusName(p.Status),
		"for", p.ForVotes,
		"against", p.AgainstVotes,
	)
	return p.Status, nil
}

// StatusName returns the display name of a proposal status
func StatusName(status uint8) string {
	switch status {
	case models.ProposalStatusPending:
		return "Pending"
	case models.ProposalStatusActive:
		return "Active"
	case models.ProposalStatusPassed:
		return "Passed"
	case models.ProposalStatusFailed:
		return "Failed"
	case models.ProposalStatusExecuted:
		return "Executed"
	default:
		return fmt.Sprintf("Unknown(%d)", status)
	}
}
