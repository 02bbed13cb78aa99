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
	"math/big"

	"github.com/blinklabs-io/arbiter/event"
	"github.com/ethereum/go-ethereum/common"
)

const (
	ProposalCreatedEventType       event.EventType = "governance.proposal_created"
	VoteCastEventType              event.EventType = "governance.vote_cast"
	ProxyVoteCastEventType         event.EventType = "governance.proxy_vote_cast"
	ProposalTalliedEventType       event.EventType = "governance.proposal_tallied"
	LocalActionExecutedEventType   event.EventType = "governance.local_action_executed"
	RemoteActionSubmittedEventType event.EventType = "governance.remote_action_submitted"
	ActionFailedEventType          event.EventType = "governance.action_failed"
	ProposalExecutedEventType      event.EventType = "governance.proposal_executed"
	DelegationChangedEventType     event.EventType = "governance.delegation_changed"
)

type ProposalCreatedEvent struct {
	ProposalID  uint64
	Proposer    common.Address
	Description string
	ActionCount int
	EndTime     int64
}

type VoteCastEvent struct {
	ProposalID uint64
	Voter      common.Address
	Support    bool
}

// ProxyVoteCastEvent reports the weight a delegate added and how many of its
// delegators were skipped because they had already voted
type ProxyVoteCastEvent struct {
	ProposalID uint64
	Delegate   common.Address
	Support    bool
	Weight     uint64
	Skipped    uint64
}

type ProposalTalliedEvent struct {
	ProposalID   uint64
	Status       uint8
	ForVotes     uint64
	AgainstVotes uint64
}

type LocalActionExecutedEvent struct {
	ProposalID  uint64
	ActionIndex uint32
	Target      common.Address
	Value       *big.Int
	Data        []byte
}

type RemoteActionSubmittedEvent struct {
	ProposalID  uint64
	ActionIndex uint32
	ChainID     uint32
	Destination []byte
	Message     []byte
	MessageID   string
}

type ActionFailedEvent struct {
	ProposalID  uint64
	ActionIndex uint32
	ChainID     uint32
	Error       string
}

type ProposalExecutedEvent struct {
	ProposalID uint64
	Succeeded  int
	Failed     int
}

// DelegationChangedEvent has a zero Delegate after undelegate and a zero
// Previous on a first delegation
type DelegationChangedEvent struct {
	Delegator common.Address
	Previous  common.Address
	Delegate  common.Address
}
