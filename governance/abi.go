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

	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/common"
)

const actionTuple = `{"name":"actions","type":"tuple[]","components":[
	{"name":"targetChainId","type":"uint32"},
	{"name":"target","type":"address"},
	{"name":"value","type":"uint256"},
	{"name":"payload","type":"bytes"},
	{"name":"description","type":"string"}]}`

const proposalABIJSON = `[
	{"type":"function","name":"createProposal","stateMutability":"nonpayable",
	 "inputs":[{"name":"description","type":"string"},` + actionTuple + `],
	 "outputs":[{"name":"proposalId","type":"uint256"}]},
	{"type":"function","name":"vote","stateMutability":"nonpayable",
	 "inputs":[{"name":"proposalId","type":"uint256"},{"name":"support","type":"bool"}],
	 "outputs":[]},
	{"type":"function","name":"voteByProxy","stateMutability":"nonpayable",
	 "inputs":[{"name":"proposalId","type":"uint256"},{"name":"support","type":"bool"}],
	 "outputs":[{"name":"weight","type":"uint256"},{"name":"skipped","type":"uint256"}]},
	{"type":"function","name":"tallyProposal","stateMutability":"nonpayable",
	 "inputs":[{"name":"proposalId","type":"uint256"}],
	 "outputs":[{"name":"status","type":"uint8"}]},
	{"type":"function","name":"getProposal","stateMutability":"view",
	 "inputs":[{"name":"proposalId","type":"uint256"}],
	 "outputs":[{"name":"proposal","type":"tuple","components":[
		{"name":"id","type":"uint256"},
		{"name":"proposer","type":"address"},
		{"name":"description","type":"string"},
		{"name":"forVotes","type":"uint256"},
		{"name":"againstVotes","type":"uint256"},
		{"name":"quorumVotes","type":"uint256"},
		{"name":"startTime","type":"uint256"},
		{"name":"endTime","type":"uint256"},
		{"name":"status","type":"uint8"},
		{"name":"executedTime","type":"uint256"},
		{"name":"actionCount","type":"uint256"}]}]},
	{"type":"function","name":"getProposalActions","stateMutability":"view",
	 "inputs":[{"name":"proposalId","type":"uint256"}],
	 "outputs":[` + actionTuple + `]},
	{"type":"function","name":"proposalCount","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"hasVoted","stateMutability":"view",
	 "inputs":[{"name":"proposalId","type":"uint256"},{"name":"voter","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"votingPeriod","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const delegationABIJSON = `[
	{"type":"function","name":"delegate","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"}],"outputs":[]},
	{"type":"function","name":"undelegate","stateMutability":"nonpayable",
	 "inputs":[],"outputs":[]},
	{"type":"function","name":"getDelegate","stateMutability":"view",
	 "inputs":[{"name":"who","type":"address"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getDelegatorCount","stateMutability":"view",
	 "inputs":[{"name":"who","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getDelegatorAtIndex","stateMutability":"view",
	 "inputs":[{"name":"who","type":"address"},{"name":"index","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"hasDelegated","stateMutability":"view",
	 "inputs":[{"name":"who","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

const executionABIJSON = `[
	{"type":"function","name":"executeProposal","stateMutability":"payable",
	 "inputs":[{"name":"proposalId","type":"uint256"}],
	 "outputs":[{"name":"results","type":"tuple[]","components":[
		{"name":"actionIndex","type":"uint32"},
		{"name":"chainId","type":"uint32"},
		{"name":"success","type":"bool"},
		{"name":"error","type":"string"},
		{"name":"messageId","type":"string"}]}]},
	{"type":"function","name":"getActionResults","stateMutability":"view",
	 "inputs":[{"name":"proposalId","type":"uint256"}],
	 "outputs":[{"name":"results","type":"tuple[]","components":[
		{"name":"actionIndex","type":"uint32"},
		{"name":"chainId","type":"uint32"},
		{"name":"success","type":"bool"},
		{"name":"error","type":"string"},
		{"name":"messageId","type":"string"}]}]},
	{"type":"function","name":"treasuryBalance","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isXcmAvailable","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"encodeParachainDestination","stateMutability":"view",
	 "inputs":[{"name":"paraId","type":"uint32"}],
	 "outputs":[{"name":"","type":"bytes"}]}
]`

var (
	ProposalABI   = router.MustParseABI(proposalABIJSON)
	DelegationABI = router.MustParseABI(delegationABIJSON)
	ExecutionABI  = router.MustParseABI(executionABIJSON)
)

// Action is one proposal action in its ABI form. A zero TargetChainId is a
// local action.
type Action struct {
	TargetChainId uint32
	Target        common.Address
	Value         *big.Int
	Payload       []byte
	Description   string
}

// IsLocal reports whether the action runs on the governance chain
func (a Action) IsLocal() bool {
	return a.TargetChainId == 0
}

// ProposalInfo is the ABI form of a proposal record
type ProposalInfo struct {
	Id           *big.Int
	Proposer     common.Address
	Description  string
	ForVotes     *big.Int
	AgainstVotes *big.Int
	QuorumVotes  *big.Int
	StartTime    *big.Int
	EndTime      *big.Int
	Status       uint8
	ExecutedTime *big.Int
	ActionCount  *big.Int
}

// ActionResult is the outcome of executing one action. MessageId is the
// outbox message id of a submitted remote action.
type ActionResult struct {
	ActionIndex uint32
	ChainId     uint32
	Success     bool
	Error       string
	MessageId   string
}
