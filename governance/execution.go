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
	"math/big"
	"sync"

	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/outbox"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// LocalContract is code reachable as the target of a local action. It runs
// inside the executing call and its writes are undone if it fails.
type LocalContract interface {
	Invoke(frame *router.Frame, value *big.Int, payload []byte) error
}

type LocalContractFunc func(frame *router.Frame, value *big.Int, payload []byte) error

func (f LocalContractFunc) Invoke(frame *router.Frame, value *big.Int, payload []byte) error {
	return f(frame, value, payload)
}

type ExecutionConfig struct {
	Logger *slog.Logger
	Outbox *outbox.Outbox
	Codec  *xcm.Codec
}

// ExecutionModule replays the actions of passed proposals. Local actions
// move treasury funds and invoke registered contracts. Remote actions are
// queued in the outbox for the relayer. A failed action is recorded and does
// not stop the remaining ones.
type ExecutionModule struct {
	logger    *slog.Logger
	outbox    *outbox.Outbox
	codec     *xcm.Codec
	mu        sync.RWMutex
	contracts map[common.Address]LocalContract
}

func NewExecutionModule(cfg ExecutionConfig) *ExecutionModule {
	m := &ExecutionModule{
		logger:    cfg.Logger,
		outbox:    cfg.Outbox,
		codec:     cfg.Codec,
		contracts: make(map[common.Address]LocalContract),
	}
	if m.logger == nil {
		m.logger = discardLogger()
	}
	m.logger = m.logger.With("component", "governance", "module", ExecutionModuleName)
	if m.codec == nil {
		m.codec = xcm.NewCodec(nil)
	}
	return m
}

func (m *ExecutionModule) Name() string { return ExecutionModuleName }

func (m *ExecutionModule) ABI() *abi.ABI { return ExecutionABI }

// RegisterContract makes contract the code behind local actions targeting
// addr
func (m *ExecutionModule) RegisterContract(addr common.Address, contract LocalContract) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[addr] = contract
}

func (m *ExecutionModule) contract(addr common.Address) LocalContract {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contracts[addr]
}

func (m *ExecutionModule) Handle(frame *router.Frame, method *abi.Method, args []any) ([]any, error) {
	switch method.Name {
	case "executeProposal":
		results, err := m.executeProposal(frame, args[0])
		if err != nil {
			return nil, err
		}
		return []any{results}, nil
	case "getActionResults":
		p, err := loadProposal(frame, args[0])
		if err != nil {
			return nil, err
		}
		rows, err := frame.DB.GetActionResults(p.ID, frame.Txn)
		if err != nil {
			return nil, err
		}
		results := make([]ActionResult, 0, len(rows))
		for _, r := range rows {
			results = append(results, resultFromModel(r))
		}
		return []any{results}, nil
	case "treasuryBalance":
		balance, err := frame.DB.GetBalance(types.Address(frame.Hub), frame.Txn)
		if err != nil {
			return nil, err
		}
		return []any{balance}, nil
	case "isXcmAvailable":
		return []any{m.codec.Available(frame.Context())}, nil
	case "encodeParachainDestination":
		dest, err := xcm.EncodeDestination(args[0].(uint32))
		if err != nil {
			return nil, err
		}
		return []any{dest}, nil
	}
	return nil, methodError(m, method)
}

func (m *ExecutionModule) executeProposal(frame *router.Frame, arg any) ([]ActionResult, error) {
	p, err := loadProposal(frame, arg)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case models.ProposalStatusPassed:
	case models.ProposalStatusExecuted:
		return nil, fmt.Errorf("%w: %d", ErrAlreadyExecuted, p.ID)
	default:
		return nil, fmt.Errorf("%w: %d is %s", ErrNotPassed, p.ID, StatusName(p.Status))
	}
	actions, err := frame.DB.GetProposalActions(p.ID, frame.Txn)
	if err != nil {
		return nil, err
	}
	// Marked before the actions run so an action calling back into the hub
	// cannot execute the proposal again
	p.Status = models.ProposalStatusExecuted
	p.ExecutedTime = frame.Now.Unix()
	if err := frame.DB.UpdateProposal(p, frame.Txn); err != nil {
		return nil, err
	}
	rows := make([]models.ActionResult, 0, len(actions))
	var failed int
	for _, action := range actions {
		row := models.ActionResult{
			ProposalID:    p.ID,
			ActionIndex:   action.ActionIndex,
			TargetChainID: action.TargetChainID,
		}
		var actionErr error
		if action.TargetChainID == 0 {
			actionErr = m.executeLocal(frame, p.ID, action)
		} else {
			row.MessageID, actionErr = m.submitRemote(frame, p.ID, action)
		}
		if actionErr != nil {
			var fatal *fatalError
			if errors.As(actionErr, &fatal) {
				return nil, fatal.err
			}
			failed++
			row.Error = actionErr.Error()
			frame.Emit(ActionFailedEventType, ActionFailedEvent{
				ProposalID:  p.ID,
				ActionIndex: action.ActionIndex,
				ChainID:     action.TargetChainID,
				Error:       row.Error,
			})
			m.logger.Warn(
				"proposal action failed",
				"proposal_id", p.ID,
				"action_index", action.ActionIndex,
				"chain_id", action.TargetChainID,
				"error", actionErr,
			)
		} else {
			row.Success = true
		}
		rows = append(rows, row)
	}
	if err := frame.DB.AddActionResults(rows, frame.Txn); err != nil {
		return nil, err
	}
	frame.Emit(ProposalExecutedEventType, ProposalExecutedEvent{
		ProposalID: p.ID,
		Succeeded:  len(rows) - failed,
		Failed:     failed,
	})
	m.logger.Info(
		"executed proposal",
		"proposal_id", p.ID,
		"actions", len(rows),
		"failed", failed,
	)
	results := make([]ActionResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, resultFromModel(r))
	}
	return results, nil
}

// fatalError aborts the whole execution instead of failing one action
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

func (m *ExecutionModule) executeLocal(
	frame *router.Frame,
	proposalID uint64,
	action models.ProposalAction,
) error {
	savepoint := fmt.Sprintf("action_%d_%d", frame.Depth(), action.ActionIndex)
	if err := frame.Savepoint(savepoint); err != nil {
		return &fatalError{err: err}
	}
	value := action.Value.Big()
	if value == nil {
		value = new(big.Int)
	}
	err := m.runLocal(frame, action.Target.Common(), value, action.Payload)
	if err != nil {
		if rbErr := frame.RollbackTo(savepoint); rbErr != nil {
			return &fatalError{err: rbErr}
		}
		return err
	}
	frame.Emit(LocalActionExecutedEventType, LocalActionExecutedEvent{
		ProposalID:  proposalID,
		ActionIndex: action.ActionIndex,
		Target:      action.Target.Common(),
		Value:       new(big.Int).Set(value),
		Data:        action.Payload,
	})
	return nil
}

func (m *ExecutionModule) runLocal(
	frame *router.Frame,
	target common.Address,
	value *big.Int,
	payload []byte,
) error {
	if target != frame.Hub && frame.IsModule(target) {
		return fmt.Errorf("%w: %s", ErrModuleTarget, target.Hex())
	}
	if value.Sign() > 0 {
		err := frame.DB.AddBalance(types.Address(frame.Hub), new(big.Int).Neg(value), frame.Txn)
		if err != nil {
			if errors.Is(err, database.ErrInsufficientBalance) {
				return fmt.Errorf("%w: need %s", ErrTreasuryBalance, value)
			}
			return err
		}
		if err := frame.DB.AddBalance(types.Address(target), value, frame.Txn); err != nil {
			return err
		}
	}
	if target == frame.Hub {
		// The value already moved back to the treasury above
		if _, err := frame.Call(payload, value); err != nil {
			return fmt.Errorf("call hub: %w", err)
		}
		return nil
	}
	contract := m.contract(target)
	if contract == nil {
		return nil
	}
	if err := contract.Invoke(frame, value, payload); err != nil {
		return fmt.Errorf("call %s: %w", target.Hex(), err)
	}
	return nil
}

// submitRemote queues the message half of the payload for the relayer and
// returns the outbox message id
func (m *ExecutionModule) submitRemote(
	frame *router.Frame,
	proposalID uint64,
	action models.ProposalAction,
) (string, error) {
	payload, err := xcm.Unpack(action.Payload)
	if err != nil {
		return "", err
	}
	if m.outbox == nil {
		return "", ErrOutboxNotPresent
	}
	msg, err := m.outbox.Enqueue(frame.Txn, outbox.Message{
		ProposalID:  proposalID,
		ActionIndex: action.ActionIndex,
		ChainID:     action.TargetChainID,
		Destination: payload.Destination,
		Payload:     payload.Message,
	}, frame.Now)
	if err != nil {
		return "", &fatalError{err: err}
	}
	frame.Emit(outbox.MessageQueuedEventType, msg)
	frame.Emit(RemoteActionSubmittedEventType, RemoteActionSubmittedEvent{
		ProposalID:  proposalID,
		ActionIndex: action.ActionIndex,
		ChainID:     action.TargetChainID,
		Destination: payload.Destination,
		Message:     payload.Message,
		MessageID:   msg.ID,
	})
	return msg.ID, nil
}
