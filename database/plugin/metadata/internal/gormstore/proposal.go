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

package gormstore

import (
	"errors"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextCounter increments the named counter and returns its new value. A
// counter that has never been used starts at 0.
func (s *Store) NextCounter(name string, txn *gorm.DB) (uint64, error) {
	db := s.resolveDB(txn)
	var counter models.Counter
	result := db.Where("name = ?", name).First(&counter)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, result.Error
		}
		counter = models.Counter{Name: name}
	}
	counter.Value++
	result = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&counter)
	if result.Error != nil {
		return 0, result.Error
	}
	return counter.Value, nil
}

// GetCounter returns the current value of the named counter
func (s *Store) GetCounter(name string, txn *gorm.DB) (uint64, error) {
	var counter models.Counter
	result := s.resolveDB(txn).Where("name = ?", name).First(&counter)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return counter.Value, nil
}

func (s *Store) CreateProposal(
	proposal *models.Proposal,
	actions []models.ProposalAction,
	txn *gorm.DB,
) error {
	db := s.resolveDB(txn)
	if result := db.Create(proposal); result.Error != nil {
		return result.Error
	}
	if len(actions) == 0 {
		return nil
	}
	if result := db.Create(&actions); result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *Store) UpdateProposal(proposal *models.Proposal, txn *gorm.DB) error {
	result := s.resolveDB(txn).Save(proposal)
	return result.Error
}

func (s *Store) GetProposal(id uint64, txn *gorm.DB) (*models.Proposal, error) {
	var proposal models.Proposal
	result := s.resolveDB(txn).Where("id = ?", id).First(&proposal)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrProposalNotFound
		}
		return nil, result.Error
	}
	return &proposal, nil
}

func (s *Store) GetProposalActions(
	proposalID uint64,
	txn *gorm.DB,
) ([]models.ProposalAction, error) {
	var actions []models.ProposalAction
	result := s.resolveDB(txn).
		Where("proposal_id = ?", proposalID).
		Order("action_index ASC").
		Find(&actions)
	if result.Error != nil {
		return nil, result.Error
	}
	return actions, nil
}

// GetVoteRecord returns the vote record for a voter, or nil if the voter has
// not voted on the proposal
func (s *Store) GetVoteRecord(
	proposalID uint64,
	voter types.Address,
	txn *gorm.DB,
) (*models.VoteRecord, error) {
	var record models.VoteRecord
	result := s.resolveDB(txn).
		Where("proposal_id = ? AND voter = ?", proposalID, voter).
		First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

func (s *Store) AddVoteRecord(record *models.VoteRecord, txn *gorm.DB) error {
	result := s.resolveDB(txn).Create(record)
	return result.Error
}

func (s *Store) CountVoteRecords(proposalID uint64, txn *gorm.DB) (uint64, error) {
	var count int64
	result := s.resolveDB(txn).
		Model(&models.VoteRecord{}).
		Where("proposal_id = ?", proposalID).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return uint64(count), nil //nolint:gosec // count is never negative
}

func (s *Store) AddActionResults(results []models.ActionResult, txn *gorm.DB) error {
	if len(results) == 0 {
		return nil
	}
	result := s.resolveDB(txn).Create(&results)
	return result.Error
}

func (s *Store) GetActionResults(
	proposalID uint64,
	txn *gorm.DB,
) ([]models.ActionResult, error) {
	var results []models.ActionResult
	result := s.resolveDB(txn).
		Where("proposal_id = ?", proposalID).
		Order("action_index ASC").
		Find(&results)
	if result.Error != nil {
		return nil, result.Error
	}
	return results, nil
}
