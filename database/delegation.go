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
)

// GetDelegation returns models.ErrDelegationNotFound when the delegator has no delegate
func (d *Database) GetDelegation(
	delegator types.Address,
	txn *Txn,
) (*models.Delegation, error) {
	return d.metadata.GetDelegation(delegator, metadataTxn(txn))
}

func (d *Database) GetDelegationAtSlot(
	delegate types.Address,
	slot uint64,
	txn *Txn,
) (*models.Delegation, error) {
	return d.metadata.GetDelegationAtSlot(delegate, slot, metadataTxn(txn))
}

func (d *Database) SetDelegation(delegation *models.Delegation, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.SetDelegation(delegation, txn.Metadata())
	})
}

func (d *Database) DeleteDelegation(delegator types.Address, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.DeleteDelegation(delegator, txn.Metadata())
	})
}

func (d *Database) GetDelegatorCount(delegate types.Address, txn *Txn) (uint64, error) {
	return d.metadata.GetDelegatorCount(delegate, metadataTxn(txn))
}

func (d *Database) SetDelegatorCount(
	delegate types.Address,
	count uint64,
	txn *Txn,
) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.SetDelegatorCount(delegate, count, txn.Metadata())
	})
}

func (d *Database) GetDelegators(
	delegate types.Address,
	txn *Txn,
) ([]models.Delegation, error) {
	return d.metadata.GetDelegators(delegate, metadataTxn(txn))
}
