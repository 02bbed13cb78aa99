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

package xcm

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"
)

var ss58Prefix = []byte("SS58PRE")

// Network is a substrate network and its SS58 address prefix
type Network struct {
	Name   string
	Prefix uint16
}

// Networks lists the address formats known to the address converter
var Networks = []Network{
	{Name: "polkadot", Prefix: 0},
	{Name: "kusama", Prefix: 2},
	{Name: "astar", Prefix: 5},
	{Name: "paseo", Prefix: 42},
	{Name: "moonbase", Prefix: 1287},
}

// LookupNetwork finds a network by name
func LookupNetwork(name string) (Network, bool) {
	for _, n := range Networks {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return Network{}, false
}

func ss58Checksum(data []byte) []byte {
	h := blake2b.Sum512(append(bytes.Clone(ss58Prefix), data...))
	return h[:2]
}

func encodePrefix(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0b1111_1100)>>2) | 0b0100_0000
	second := byte(prefix>>8) | byte(prefix&0b11)<<6
	return []byte{first, second}
}

// EncodeSS58 encodes a 32-byte public key with a network prefix. Prefixes
// above 16383 are not representable.
func EncodeSS58(prefix uint16, key [32]byte) (string, error) {
	if prefix > 16383 {
		return "", fmt.Errorf("%w: prefix %d", ErrInvalidAddress, prefix)
	}
	data := append(encodePrefix(prefix), key[:]...)
	data = append(data, ss58Checksum(data)...)
	return base58.Encode(data), nil
}

// DecodeSS58 returns the network prefix and public key of an SS58 address
func DecodeSS58(addr string) (uint16, [32]byte, error) {
	var key [32]byte
	data := base58.Decode(addr)
	if len(data) == 0 {
		return 0, key, fmt.Errorf("%w: not base58", ErrInvalidAddress)
	}
	var (
		prefix    uint16
		prefixLen int
	)
	if data[0]&0b0100_0000 == 0 {
		prefix = uint16(data[0])
		prefixLen = 1
	} else {
		if len(data) < 2 {
			return 0, key, fmt.Errorf("%w: truncated prefix", ErrInvalidAddress)
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	}
	if len(data) != prefixLen+32+2 {
		return 0, key, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(data))
	}
	body := data[:prefixLen+32]
	if !bytes.Equal(ss58Checksum(body), data[prefixLen+32:]) {
		return 0, key, fmt.Errorf("%w: bad checksum", ErrInvalidAddress)
	}
	copy(key[:], data[prefixLen:])
	return prefix, key, nil
}

// DecodeAddress decodes a beneficiary address. It accepts SS58 addresses,
// 0x-prefixed 32-byte account ids and 0x-prefixed 20-byte EVM addresses.
func DecodeAddress(addr string) (Junction, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		raw, err := hex.DecodeString(addr[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
		}
		switch len(raw) {
		case 32:
			return AccountID32([32]byte(raw)), nil
		case 20:
			return AccountKey20([20]byte(raw)), nil
		}
		return nil, fmt.Errorf("%w: %d byte key", ErrInvalidAddress, len(raw))
	}
	_, key, err := DecodeSS58(addr)
	if err != nil {
		return nil, err
	}
	return AccountID32(key), nil
}

// EVMToSS58 renders an EVM address as the SS58 address of its 32-byte form,
// the address left-padded with zero bytes
func EVMToSS58(addr common.Address, prefix uint16) (string, error) {
	var key [32]byte
	copy(key[12:], addr.Bytes())
	return EncodeSS58(prefix, key)
}
