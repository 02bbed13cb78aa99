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

func (s *Store) GetDelegation(
	delegator types.Address,
	txn *gorm.DB,
) (*models.Delegation, error) {
	var delegation models.Delegation
	result := s.resolveDB(txn).
		Where("delegator = ?", delegator).
		First(&delegation)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrDelegationNotFound
		}
		return nil, result.Error
	}
	return &delegation, nil
}

func (s *Store) GetDelegationAtSlot(
	delegate types.Address,
	slot uint64,
	txn *gorm.DB,
) (*models.Delegation, error) {
	var delegation models.Delegation
	result := s.resolveDB(txn).
		Where("delegate = ? AND slot = ?", delegate, slot).
		First(&delegation)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrDelegationNotFound
		}
		return nil, result.Error
	}
	return &delegation, nil
}

// SetDelegation creates or replaces the delegation edge for its delegator
func (s *Store) SetDelegation(delegation *models.Delegation, txn *gorm.DB) error {
	result := s.resolveDB(txn).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "delegator"}},
		DoUpdates: clause.AssignmentColumns([]string{"delegate", "slot"}),
	}).Create(delegation)
	return result.Error
}

func (s *Store) DeleteDelegation(delegator types.Address, txn *gorm.DB) error {
	result := s.resolveDB(txn).
		Where("delegator = ?", delegator).
		Delete(&models.Delegation{})
	return result.Error
}

func (s *Store) GetDelegatorCount(delegate types.Address, txn *gorm.DB) (uint64, error) {
	var index models.DelegatorIndex
	result := s.resolveDB(txn).
		Where("delegate = ?", delegate).
		First(&index)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return index.Count, nil
}

func (s *Store) SetDelegatorCount(
	delegate types.Address,
	count uint64,
	txn *gorm.DB,
) error {
	db := s.resolveDB(txn)
	if count == 0 {
		result := db.Where("delegate = ?", delegate).Delete(&models.DelegatorIndex{})
		return result.Error
	}
	index := models.DelegatorIndex{Delegate: delegate, Count: count}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "delegate"}},
		DoUpdates: clause.AssignmentColumns([]string{"count"}),
	}).Create(&index)
	return result.Error
}

// GetDelegators returns the delegators of a delegate in slot order
func (s *Store) GetDelegators(
	delegate types.Address,
	txn *gorm.DB,
) ([]models.Delegation, error) {
	var delegations []models.Delegation
	result := s.resolveDB(txn).
		Where("delegate = ?", delegate).
		Order("slot ASC").
		Find(&delegations)
	if result.Error != nil {
		return nil, result.Error
	}
	return delegations, nil
}
