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
	"math/big"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) GetRoutingEntry(
	selector []byte,
	txn *gorm.DB,
) (*models.RoutingEntry, error) {
	var entry models.RoutingEntry
	result := s.resolveDB(txn).Where("selector = ?", selector).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrRoutingEntryNotFound
		}
		return nil, result.Error
	}
	return &entry, nil
}

func (s *Store) SetRoutingEntries(entries []models.RoutingEntry, txn *gorm.DB) error {
	if len(entries) == 0 {
		return nil
	}
	result := s.resolveDB(txn).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "selector"}},
		DoUpdates: clause.AssignmentColumns([]string{"implementation", "updated_time"}),
	}).Create(&entries)
	return result.Error
}

func (s *Store) GetRoutingEntries(txn *gorm.DB) ([]models.RoutingEntry, error) {
	var entries []models.RoutingEntry
	result := s.resolveDB(txn).Order("selector ASC").Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

// GetBalance returns the balance of an account, zero if it has none
func (s *Store) GetBalance(account types.Address, txn *gorm.DB) (*big.Int, error) {
	var balance models.Balance
	result := s.resolveDB(txn).Where("account = ?", account).First(&balance)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return new(big.Int), nil
		}
		return nil, result.Error
	}
	return balance.Amount.Big(), nil
}

func (s *Store) SetBalance(account types.Address, amount *big.Int, txn *gorm.DB) error {
	balance := models.Balance{
		Account: account,
		Amount:  types.NewBigInt(amount),
	}
	result := s.resolveDB(txn).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(&balance)
	return result.Error
}

func (s *Store) GetAccountNonce(account types.Address, txn *gorm.DB) (uint64, error) {
	var nonce models.AccountNonce
	result := s.resolveDB(txn).Where("account = ?", account).First(&nonce)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return nonce.Nonce, nil
}

func (s *Store) SetAccountNonce(account types.Address, value uint64, txn *gorm.DB) error {
	nonce := models.AccountNonce{Account: account, Nonce: value}
	result := s.resolveDB(txn).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce"}),
	}).Create(&nonce)
	return result.Error
}
