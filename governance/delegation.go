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

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DelegationModule keeps the delegator to delegate edges and, per delegate,
// a dense slot-addressed index of its delegators. Removing a delegator moves
// the delegate's last delegator into the freed slot.
type DelegationModule struct {
	logger *slog.Logger
}

func NewDelegationModule(logger *slog.Logger) *DelegationModule {
	if logger == nil {
		logger = discardLogger()
	}
	return &DelegationModule{
		logger: logger.With("component", "governance", "module", DelegationModuleName),
	}
}

func (m *DelegationModule) Name() string { return DelegationModuleName }

func (m *DelegationModule) ABI() *abi.ABI { return DelegationABI }

func (m *DelegationModule) Handle(frame *router.Frame, method *abi.Method, args []any) ([]any, error) {
	switch method.Name {
	case "delegate":
		return nil, m.delegate(frame, args[0].(common.Address))
	case "undelegate":
		return nil, m.undelegate(frame)
	case "getDelegate":
		delegation, err := m.current(frame, args[0].(common.Address))
		if err != nil {
			return nil, err
		}
		if delegation == nil {
			return []any{common.Address{}}, nil
		}
		return []any{delegation.Delegate.Common()}, nil
	case "hasDelegated":
		delegation, err := m.current(frame, args[0].(common.Address))
		if err != nil {
			return nil, err
		}
		return []any{delegation != nil}, nil
	case "getDelegatorCount":
		count, err := frame.DB.GetDelegatorCount(types.Address(args[0].(common.Address)), frame.Txn)
		if err != nil {
			return nil, err
		}
		return []any{big64(count)}, nil
	case "getDelegatorAtIndex":
		who := types.Address(args[0].(common.Address))
		count, err := frame.DB.GetDelegatorCount(who, frame.Txn)
		if err != nil {
			return nil, err
		}
		index, err := uint64Arg(args[1], ErrIndexOutOfRange)
		if err != nil {
			return nil, err
		}
		if index >= count {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, count)
		}
		delegation, err := frame.DB.GetDelegationAtSlot(who, index, frame.Txn)
		if err != nil {
			return nil, fmt.Errorf("delegator index of %s at %d: %w", who, index, err)
		}
		return []any{delegation.Delegator.Common()}, nil
	}
	return nil, methodError(m, method)
}

// current returns nil when who has no delegate
func (m *DelegationModule) current(frame *router.Frame, who common.Address) (*models.Delegation, error) {
	delegation, err := frame.DB.GetDelegation(types.Address(who), frame.Txn)
	if err != nil {
		if errors.Is(err, models.ErrDelegationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return delegation, nil
}

func (m *DelegationModule) delegate(frame *router.Frame, to common.Address) error {
	if to == frame.Caller {
		return ErrSelfDelegation
	}
	if to == (common.Address{}) {
		return ErrInvalidDelegatee
	}
	existing, err := m.current(frame, frame.Caller)
	if err != nil {
		return err
	}
	var previous common.Address
	if existing != nil {
		previous = existing.Delegate.Common()
		if previous == to {
			return nil
		}
		if err := m.remove(frame, existing); err != nil {
			return err
		}
	}
	count, err := frame.DB.GetDelegatorCount(types.Address(to), frame.Txn)
	if err != nil {
		return err
	}
	if err := frame.DB.SetDelegation(&models.Delegation{
		Delegator: types.Address(frame.Caller),
		Delegate:  types.Address(to),
		Slot:      count,
	}, frame.Txn); err != nil {
		return err
	}
	if err := frame.DB.SetDelegatorCount(types.Address(to), count+1, frame.Txn); err != nil {
		return err
	}
	frame.Emit(DelegationChangedEventType, DelegationChangedEvent{
		Delegator: frame.Caller,
		Previous:  previous,
		Delegate:  to,
	})
	m.logger.Debug(
		"delegated",
		"delegator", frame.Caller.Hex(),
		"delegate", to.Hex(),
		"slot", count,
	)
	return nil
}

func (m *DelegationModule) undelegate(frame *router.Frame) error {
	existing, err := m.current(frame, frame.Caller)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrNotDelegating, frame.Caller.Hex())
	}
	if err := m.remove(frame, existing); err != nil {
		return err
	}
	frame.Emit(DelegationChangedEventType, DelegationChangedEvent{
		Delegator: frame.Caller,
		Previous:  existing.Delegate.Common(),
	})
	return nil
}

// remove drops d from its delegate's index, moving the last delegator into
// the freed slot
func (m *DelegationModule) remove(frame *router.Frame, d *models.Delegation) error {
	count, err := frame.DB.GetDelegatorCount(d.Delegate, frame.Txn)
	if err != nil {
		return err
	}
	if count == 0 || d.Slot >= count {
		return fmt.Errorf(
			"delegator index of %s is corrupt: slot %d of %d",
			d.Delegate,
			d.Slot,
			count,
		)
	}
	last := count - 1
	if err := frame.DB.DeleteDelegation(d.Delegator, frame.Txn); err != nil {
		return err
	}
	if d.Slot != last {
		moved, err := frame.DB.GetDelegationAtSlot(d.Delegate, last, frame.Txn)
		if err != nil {
			return fmt.Errorf("load last delegator of %s: %w", d.Delegate, err)
		}
		moved.Slot = d.Slot
		if err := frame.DB.SetDelegation(moved, frame.Txn); err != nil {
			return err
		}
	}
	return frame.DB.SetDelegatorCount(d.Delegate, last, frame.Txn)
}
