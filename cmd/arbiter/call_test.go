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

package main

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	action, err := parseAction("0:0x00000000000000000000000000000000000000b0:1000::pay")
	require.NoError(t, err)
	assert.True(t, action.IsLocal())
	assert.Equal(t, common.HexToAddress("0xb0"), action.Target)
	assert.Equal(t, big.NewInt(1000), action.Value)
	assert.Empty(t, action.Payload)
	assert.Equal(t, "pay", action.Description)

	action, err = parseAction("1000:::0x0102")
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), action.TargetChainId)
	assert.Equal(t, common.Address{}, action.Target)
	assert.Equal(t, 0, action.Value.Sign())
	assert.Equal(t, []byte{1, 2}, action.Payload)

	for _, bad := range []string{
		"1000",
		"x:::",
		"0:nope::",
		"0::-1:",
		"0:::zz",
	} {
		_, err := parseAction(bad)
		assert.Truef(t, errors.Is(err, errUsage), "input %q: %v", bad, err)
	}
}

func TestParseProposalID(t *testing.T) {
	id, err := parseProposalID("7")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id.Uint64())

	for _, bad := range []string{"0", "-1", "abc"} {
		_, err := parseProposalID(bad)
		assert.ErrorIs(t, err, errUsage)
	}
}
