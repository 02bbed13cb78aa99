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

package router

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector is the 4-byte function identifier at the start of call data
type Selector [4]byte

// SelectorOf derives the selector of a canonical function signature such as
// "vote(uint256,bool)"
func SelectorOf(signature string) Selector {
	var sel Selector
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// ParseSelector parses a 0x-prefixed hex selector
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	raw, err := hexutil.Decode(s)
	if err != nil {
		return sel, fmt.Errorf("%w: %w", ErrInvalidSelector, err)
	}
	if len(raw) != len(sel) {
		return sel, fmt.Errorf("%w: %d bytes", ErrInvalidSelector, len(raw))
	}
	copy(sel[:], raw)
	return sel, nil
}

func (s Selector) String() string {
	return hexutil.Encode(s[:])
}

// Bytes returns a copy of the selector as a slice
func (s Selector) Bytes() []byte {
	return bytes.Clone(s[:])
}

// MethodSelectors returns the selectors of every method in a, ordered by
// method signature
func MethodSelectors(a *abi.ABI) []Selector {
	methods := make([]abi.Method, 0, len(a.Methods))
	for _, m := range a.Methods {
		methods = append(methods, m)
	}
	slices.SortFunc(methods, func(x, y abi.Method) int {
		return strings.Compare(x.Sig, y.Sig)
	})
	ret := make([]Selector, 0, len(methods))
	for _, m := range methods {
		var sel Selector
		copy(sel[:], m.ID)
		ret = append(ret, sel)
	}
	return ret
}

// MustParseABI parses a JSON ABI definition and panics on failure. It is
// meant for package-level ABI literals.
func MustParseABI(def string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI definition: %s", err))
	}
	return &parsed
}

// ModuleAddress derives the well-known address of a named module
func ModuleAddress(name string) common.Address {
	return common.BytesToAddress(
		crypto.Keccak256([]byte("arbiter.module." + name))[12:],
	)
}
