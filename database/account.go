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
	"math/big"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
)

func (d *Database) GetRoutingEntry(
	selector []byte,
	txn *Txn,
) (*models.RoutingEntry, error) {
	return d.metadata.GetRoutingEntry(selector, metadataTxn(txn))
}

func (d *Database) SetRoutingEntries(entries []models.RoutingEntry, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.SetRoutingEntries(entries, txn.Metadata())
	})
}

func (d *Database) GetRoutingEntries(txn *Txn) ([]models.RoutingEntry, error) {
	return d.metadata.GetRoutingEntries(metadataTxn(txn))
}

func (d *Database) GetBalance(account types.Address, txn *Txn) (*big.Int, error) {
	return d.metadata.GetBalance(account, metadataTxn(txn))
}

func (d *Database) SetBalance(account types.Address, amount *big.Int, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.SetBalance(account, amount, txn.Metadata())
	})
}

// AddBalance adds delta, which may be negative, to the balance of account.
// It returns ErrInsufficientBalance rather than letting a balance go negative.
func (d *Database) AddBalance(account types.Address, delta *big.Int, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		balance, err := d.metadata.GetBalance(account, txn.Metadata())
		if err != nil {
			return err
		}
		balance = new(big.Int).Add(balance, delta)
		if balance.Sign() < 0 {
			return ErrInsufficientBalance
		}
		return d.metadata.SetBalance(account, balance, txn.Metadata())
	})
}

func (d *Database) GetAccountNonce(account types.Address, txn *Txn) (uint64, error) {
	return d.metadata.GetAccountNonce(account, metadataTxn(txn))
}

func (d *Database) SetAccountNonce(account types.Address, nonce uint64, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.metadata.SetAccountNonce(account, nonce, txn.Metadata())
	})
}
