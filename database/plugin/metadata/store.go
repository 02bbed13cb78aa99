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

package metadata

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/plugin"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(*gorm.DB, int64) error
	Transaction() *gorm.DB

	// Counters
	NextCounter(string, *gorm.DB) (uint64, error)
	GetCounter(string, *gorm.DB) (uint64, error)

	// Proposals and votes
	CreateProposal(*models.Proposal, []models.ProposalAction, *gorm.DB) error
	UpdateProposal(*models.Proposal, *gorm.DB) error
	GetProposal(uint64, *gorm.DB) (*models.Proposal, error)
	GetProposalActions(uint64, *gorm.DB) ([]models.ProposalAction, error)
	GetVoteRecord(uint64, types.Address, *gorm.DB) (*models.VoteRecord, error)
	AddVoteRecord(*models.VoteRecord, *gorm.DB) error
	CountVoteRecords(uint64, *gorm.DB) (uint64, error)
	AddActionResults([]models.ActionResult, *gorm.DB) error
	GetActionResults(uint64, *gorm.DB) ([]models.ActionResult, error)

	// Delegation
	GetDelegation(types.Address, *gorm.DB) (*models.Delegation, error)
	GetDelegationAtSlot(types.Address, uint64, *gorm.DB) (*models.Delegation, error)
	SetDelegation(*models.Delegation, *gorm.DB) error
	DeleteDelegation(types.Address, *gorm.DB) error
	GetDelegatorCount(types.Address, *gorm.DB) (uint64, error)
	SetDelegatorCount(types.Address, uint64, *gorm.DB) error
	GetDelegators(types.Address, *gorm.DB) ([]models.Delegation, error)

	// Routing
	GetRoutingEntry([]byte, *gorm.DB) (*models.RoutingEntry, error)
	SetRoutingEntries([]models.RoutingEntry, *gorm.DB) error
	GetRoutingEntries(*gorm.DB) ([]models.RoutingEntry, error)

	// Accounts
	GetBalance(types.Address, *gorm.DB) (*big.Int, error)
	SetBalance(types.Address, *big.Int, *gorm.DB) error
	GetAccountNonce(types.Address, *gorm.DB) (uint64, error)
	SetAccountNonce(types.Address, uint64, *gorm.DB) error
}

// New returns the started metadata plugin selected by name
func New(
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	p, err := plugin.StartPlugin(
		plugin.PluginTypeMetadata,
		pluginName,
		plugin.Env{Logger: logger, PromRegistry: promRegistry},
	)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
