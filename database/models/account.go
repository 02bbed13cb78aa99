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

package models

import (
	"errors"

	"github.com/blinklabs-io/arbiter/database/types"
)

var ErrRoutingEntryNotFound = errors.New("routing entry not found")

// RoutingEntry maps a 4-byte function selector to its implementing module
type RoutingEntry struct {
	Selector       []byte        `gorm:"primarykey;size:4"`
	Implementation types.Address `gorm:"index;size:20;not null"`
	UpdatedTime    int64         `gorm:"not null"`
}

func (RoutingEntry) TableName() string {
	return "routing_entry"
}

// Balance is the native currency balance held by an account
type Balance struct {
	Account types.Address `gorm:"primarykey;size:20"`
	Amount  types.BigInt  `gorm:"size:80;not null"`
}

func (Balance) TableName() string {
	return "balance"
}

// AccountNonce is the last nonce consumed by a signed call from an account
type AccountNonce struct {
	Account types.Address `gorm:"primarykey;size:20"`
	Nonce   uint64        `gorm:"not null"`
}

func (AccountNonce) TableName() string {
	return "account_nonce"
}
