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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Address is an account identity stored as a 20-byte binary column
//
//nolint:recvcheck
type Address common.Address

func (a Address) Value() (driver.Value, error) {
	return a[:], nil
}

func (a *Address) Scan(val any) error {
	v, ok := val.([]byte)
	if !ok {
		return fmt.Errorf(
			"value was not expected type, wanted []byte, got %T",
			val,
		)
	}
	if len(v) != common.AddressLength {
		return fmt.Errorf(
			"invalid address length: %d",
			len(v),
		)
	}
	copy(a[:], v)
	return nil
}

// GormDataType returns the generic column type used in migrations
func (Address) GormDataType() string {
	return "bytes"
}

// Common returns the go-ethereum representation of the address
func (a Address) Common() common.Address {
	return common.Address(a)
}

func (a Address) String() string {
	return common.Address(a).Hex()
}

// BigInt is an arbitrary precision unsigned amount stored as a decimal string
//
//nolint:recvcheck
type BigInt struct {
	*big.Int
}

// NewBigInt returns a BigInt holding a copy of v. A nil v yields zero.
func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{Int: new(big.Int)}
	}
	return BigInt{Int: new(big.Int).Set(v)}
}

func (b BigInt) Value() (driver.Value, error) {
	if b.Int == nil {
		return "0", nil
	}
	return b.String(), nil
}

func (b *BigInt) Scan(val any) error {
	if b.Int == nil {
		b.Int = new(big.Int)
	}
	var v string
	switch tv := val.(type) {
	case string:
		v = tv
	case []byte:
		v = string(tv)
	case int64:
		b.SetInt64(tv)
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	if _, ok := b.SetString(v, 10); !ok {
		return fmt.Errorf("failed to set big.Int value from string: %s", v)
	}
	return nil
}

// GormDataType returns the generic column type used in migrations
func (BigInt) GormDataType() string {
	return "string"
}

// Big returns the underlying value, never nil
func (b BigInt) Big() *big.Int {
	if b.Int == nil {
		return new(big.Int)
	}
	return b.Int
}

// ErrBlobKeyNotFound is returned by blob operations when a key is missing
var ErrBlobKeyNotFound = errors.New("blob key not found")

// ErrNilTxn is returned when a nil transaction is provided where a valid transaction is required
var ErrNilTxn = errors.New("nil transaction")

// ErrNoStoreAvailable is returned when no blob or metadata store is available
var ErrNoStoreAvailable = errors.New("no store available")

// ErrTxnReadOnly is returned when a write is attempted in a read-only transaction
var ErrTxnReadOnly = errors.New("transaction is read-only")
