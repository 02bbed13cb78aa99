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

package models

import (
	"errors"

	"github.com/blinklabs-io/arbiter/database/types"
)

var ErrDelegationNotFound = errors.New("delegation not found")

// Delegation is the active delegator to delegate edge. Slot is the position
// of the delegator in the delegate's dense reverse index.
type Delegation struct {
	Delegator types.Address `gorm:"primarykey;size:20"`
	Delegate  types.Address `gorm:"uniqueIndex:idx_delegation_slot,priority:1;size:20;not null"`
	Slot      uint64        `gorm:"uniqueIndex:idx_delegation_slot,priority:2;not null"`
}

func (Delegation) TableName() string {
	return "delegation"
}

// DelegatorIndex holds the size of a delegate's reverse index
type DelegatorIndex struct {
	Delegate types.Address `gorm:"primarykey;size:20"`
	Count    uint64        `gorm:"not null"`
}

func (DelegatorIndex) TableName() string {
	return "delegator_index"
}
