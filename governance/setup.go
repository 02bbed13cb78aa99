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
	"log/slog"
	"time"

	"github.com/blinklabs-io/arbiter/outbox"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	Logger       *slog.Logger
	VotingPeriod time.Duration
	QuorumVotes  uint64
	Outbox       *outbox.Outbox
	Codec        *xcm.Codec
}

// Modules is the set of governance modules served behind one hub
type Modules struct {
	Proposal   *ProposalModule
	Delegation *DelegationModule
	Execution  *ExecutionModule
}

func NewModules(cfg Config) *Modules {
	return &Modules{
		Proposal: NewProposalModule(ProposalConfig{
			Logger:       cfg.Logger,
			VotingPeriod: cfg.VotingPeriod,
			QuorumVotes:  cfg.QuorumVotes,
		}),
		Delegation: NewDelegationModule(cfg.Logger),
		Execution: NewExecutionModule(ExecutionConfig{
			Logger: cfg.Logger,
			Outbox: cfg.Outbox,
			Codec:  cfg.Codec,
		}),
	}
}

// Deployment pairs a module with the address it is deployed at
type Deployment struct {
	Address common.Address
	Module  router.Module
}

func (m *Modules) Deployments() []Deployment {
	return []Deployment{
		{Address: ProposalModuleAddress, Module: m.Proposal},
		{Address: DelegationModuleAddress, Module: m.Delegation},
		{Address: ExecutionModuleAddress, Module: m.Execution},
	}
}

// Deploy makes every module reachable through r. Routing entries are set
// separately by the owner.
func (m *Modules) Deploy(r *router.Router) error {
	for _, d := range m.Deployments() {
		if err := r.Deploy(d.Address, d.Module); err != nil {
			return err
		}
	}
	return nil
}

// RoutingTable returns the selectors of every module and the module address
// each one routes to
func (m *Modules) RoutingTable() ([]router.Selector, []common.Address) {
	var selectors []router.Selector
	var addrs []common.Address
	for _, d := range m.Deployments() {
		for _, sel := range Selectors(d.Module) {
			selectors = append(selectors, sel)
			addrs = append(addrs, d.Address)
		}
	}
	return selectors, addrs
}

// Provision registers the whole routing table on behalf of owner
func (m *Modules) Provision(ctx context.Context, r *router.Router, owner common.Address) error {
	selectors, addrs := m.RoutingTable()
	return r.SetImplementations(ctx, owner, selectors, addrs)
}
