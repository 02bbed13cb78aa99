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

var ErrProposalNotFound = errors.New("proposal not found")

// Proposal status values
const (
	ProposalStatusPending  uint8 = 0
	ProposalStatusActive   uint8 = 1
	ProposalStatusPassed   uint8 = 2
	ProposalStatusFailed   uint8 = 3
	ProposalStatusExecuted uint8 = 4
)

// Proposal is a governance proposal and its running vote totals. Times are
// unix seconds.
type Proposal struct {
	ID           uint64        `gorm:"primarykey;autoIncrement:false"`
	Proposer     types.Address `gorm:"index;size:20;not null"`
	Description  string        `gorm:"not null"`
	ForVotes     uint64        `gorm:"not null"`
	AgainstVotes uint64        `gorm:"not null"`
	QuorumVotes  uint64        `gorm:"not null"`
	StartTime    int64         `gorm:"not null"`
	EndTime      int64         `gorm:"index;not null"`
	Status       uint8         `gorm:"index;not null"`
	ExecutedTime int64
	ActionCount  uint32 `gorm:"not null"`
}

func (Proposal) TableName() string {
	return "proposal"
}

// ProposalAction is one ordered action attached to a proposal
type ProposalAction struct {
	ID            uint          `gorm:"primarykey"`
	ProposalID    uint64        `gorm:"uniqueIndex:idx_action_proposal_index,priority:1;not null"`
	ActionIndex   uint32        `gorm:"uniqueIndex:idx_action_proposal_index,priority:2;not null"`
	TargetChainID uint32        `gorm:"not null"`
	Target        types.Address `gorm:"size:20;not null"`
	Value         types.BigInt  `gorm:"size:80;not null"`
	Payload       []byte
	Description   string
}

func (ProposalAction) TableName() string {
	return "proposal_action"
}

// ActionResult records the outcome of executing one proposal action
type ActionResult struct {
	ID            uint   `gorm:"primarykey"`
	ProposalID    uint64 `gorm:"uniqueIndex:idx_result_proposal_index,priority:1;not null"`
	ActionIndex   uint32 `gorm:"uniqueIndex:idx_result_proposal_index,priority:2;not null"`
	TargetChainID uint32 `gorm:"not null"`
	Success       bool   `gorm:"not null"`
	Error         string
	MessageID     string `gorm:"size:36"`
}

func (ActionResult) TableName() string {
	return "action_result"
}
