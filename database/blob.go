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
	"errors"

	"github.com/blinklabs-io/arbiter/database/types"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// BlobGet returns types.ErrBlobKeyNotFound for a missing key
func (d *Database) BlobGet(key []byte, txn *Txn) ([]byte, error) {
	if txn == nil {
		txn = NewBlobOnlyTxn(d, false)
		defer txn.Release()
	}
	return d.blob.Get(txn.Blob(), key)
}

func (d *Database) BlobSet(key []byte, val []byte, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		if !txn.ReadWrite() {
			return types.ErrTxnReadOnly
		}
		return d.blob.Set(txn.Blob(), key, val)
	})
}

func (d *Database) BlobDelete(key []byte, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		if !txn.ReadWrite() {
			return types.ErrTxnReadOnly
		}
		return d.blob.Delete(txn.Blob(), key)
	})
}

// BlobIterate calls fn for each key with the given prefix in key order
func (d *Database) BlobIterate(
	prefix []byte,
	fn func(key []byte, val []byte) error,
	txn *Txn,
) error {
	if txn == nil {
		txn = NewBlobOnlyTxn(d, false)
		defer txn.Release()
	}
	return d.blob.Iterate(txn.Blob(), prefix, fn)
}
