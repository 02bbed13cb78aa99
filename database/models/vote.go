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

import "github.com/blinklabs-io/arbiter/database/types"

// VoteRecord marks that a voter has voted on a proposal. Records are never
// removed. Proxy holds the delegate that cast the vote, or the zero address
// for a direct vote.
type VoteRecord struct {
	ID         uint          `gorm:"primarykey"`
	ProposalID uint64        `gorm:"uniqueIndex:idx_vote_proposal_voter,priority:1;not null"`
	Voter      types.Address `gorm:"uniqueIndex:idx_vote_proposal_voter,priority:2;size:20;not null"`
	Support    bool          `gorm:"not null"`
	Proxy      types.Address `gorm:"index;size:20;not null"`
	Time       int64         `gorm:"not null"`
}

func (VoteRecord) TableName() string {
	return "vote_record"
}
