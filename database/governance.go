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

package database

import (
	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"gorm.io/gorm"
)

func metadataTxn(txn *Txn) *gorm.DB {
	if txn == nil {
		return nil
	}
	return txn.Metadata()
}

// NextProposalID allocates the next proposal ID. IDs start at 1.
func (d *Database) NextProposalID(txn *Txn) (uint64, error) {
	var id uint64
	err := d.withTxn(txn, func(txn *Txn) error {
		var err error
		id, err = d.metadata.NextCounter(models.CounterProposal, txn.Metadata())
		return err
	})
	return id, err
}

// ProposalCount returns the number of proposals created so far
func (d *Database) ProposalCount(txn *Txn) (uint64, error) {
	return d.metadata.GetCounter(models.CounterProposal, metadataTxn(txn))
}

func (d *Database) CreateProposal(
	proposal *models.Proposal,
	actions []models.ProposalAction,
	txn *Txn,
) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.CreateProposal(proposal, actions, txn.Metadata())
	})
}

func (d *Database) UpdateProposal(proposal *models.Proposal, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.UpdateProposal(proposal, txn.Metadata())
	})
}

func (d *Database) GetProposal(id uint64, txn *Txn) (*models.Proposal, error) {
	return d.metadata.GetProposal(id, metadataTxn(txn))
}

func (d *Database) GetProposalActions(
	proposalID uint64,
	txn *Txn,
) ([]models.ProposalAction, error) {
	return d.metadata.GetProposalActions(proposalID, metadataTxn(txn))
}

// GetVoteRecord returns nil when the voter has not voted on the proposal
func (d *Database) GetVoteRecord(
	proposalID uint64,
	voter types.Address,
	txn *Txn,
) (*models.VoteRecord, error) {
	return d.metadata.GetVoteRecord(proposalID, voter, metadataTxn(txn))
}

func (d *Database) AddVoteRecord(record *models.VoteRecord, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.AddVoteRecord(record, txn.Metadata())
	})
}

func (d *Database) CountVoteRecords(proposalID uint64, txn *Txn) (uint64, error) {
	return d.metadata.CountVoteRecords(proposalID, metadataTxn(txn))
}

func (d *Database) AddActionResults(results []models.ActionResult, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.AddActionResults(results, txn.Metadata())
	})
}

func (d *Database) GetActionResults(
	proposalID uint64,
	txn *Txn,
) ([]models.ActionResult, error) {
	return d.metadata.GetActionResults(proposalID, metadataTxn(txn))
}
