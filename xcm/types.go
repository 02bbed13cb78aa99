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
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// XCM V3 enum indexes
const (
	versionV3 byte = 3

	junctionsHere byte = 0

	junctionParachain    byte = 0
	junctionAccountID32  byte = 1
	junctionAccountKey20 byte = 3

	instrWithdrawAsset byte = 0
	instrTransact      byte = 6
	instrDepositAsset  byte = 13
	instrBuyExecution  byte = 19

	assetIDConcrete     byte = 0
	fungibilityFungible byte = 0
	filterWild          byte = 1
	wildAll             byte = 0
	weightUnlimited     byte = 0
	weightLimited       byte = 1
)

// MaxJunctions is the deepest interior a V3 location can have
const MaxJunctions = 8

// Junction is one step of a location interior
type Junction interface {
	encodeJunction(*scale.Encoder) error
}

// Parachain addresses a parachain by id
type Parachain uint32

func (p Parachain) encodeJunction(enc *scale.Encoder) error {
	if err := enc.PushByte(junctionParachain); err != nil {
		return err
	}
	return enc.EncodeUintCompact(*new(big.Int).SetUint64(uint64(p)))
}

// AccountID32 addresses a 32-byte substrate account on any network
type AccountID32 [32]byte

func (a AccountID32) encodeJunction(enc *scale.Encoder) error {
	if err := enc.PushByte(junctionAccountID32); err != nil {
		return err
	}
	// network: None
	if err := enc.PushByte(0); err != nil {
		return err
	}
	return enc.Write(a[:])
}

// AccountKey20 addresses a 20-byte EVM style account on any network
type AccountKey20 [20]byte

func (a AccountKey20) encodeJunction(enc *scale.Encoder) error {
	if err := enc.PushByte(junctionAccountKey20); err != nil {
		return err
	}
	if err := enc.PushByte(0); err != nil {
		return err
	}
	return enc.Write(a[:])
}

// Location is a V3 multi-location. An empty interior is Here.
type Location struct {
	Parents  uint8
	Interior []Junction
}

// RelayRoot is the relay chain as seen from one of its parachains
var RelayRoot = Location{Parents: 1}

// Destination returns the location of a chain as seen from a parachain
// sibling. Para id 0 is the relay chain itself.
func Destination(paraID uint32) Location {
	if paraID == 0 {
		return RelayRoot
	}
	return Location{Parents: 1, Interior: []Junction{Parachain(paraID)}}
}

func (l Location) encode(enc *scale.Encoder) error {
	if len(l.Interior) > MaxJunctions {
		return fmt.Errorf("%w: %d junctions", ErrInvalidLocation, len(l.Interior))
	}
	if err := enc.PushByte(l.Parents); err != nil {
		return err
	}
	// Here is 0, X1..X8 follow
	if err := enc.PushByte(junctionsHere + byte(len(l.Interior))); err != nil {
		return err
	}
	for _, j := range l.Interior {
		if err := j.encodeJunction(enc); err != nil {
			return err
		}
	}
	return nil
}

// EncodeVersioned returns the SCALE encoding of the location wrapped as V3
func (l Location) EncodeVersioned() ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := enc.PushByte(versionV3); err != nil {
		return nil, err
	}
	if err := l.encode(enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Weight is a two dimensional execution weight
type Weight struct {
	RefTime   uint64
	ProofSize uint64
}

func (w Weight) encode(enc *scale.Encoder) error {
	if err := enc.EncodeUintCompact(*new(big.Int).SetUint64(w.RefTime)); err != nil {
		return err
	}
	return enc.EncodeUintCompact(*new(big.Int).SetUint64(w.ProofSize))
}

// Asset is a fungible amount of a concretely identified asset
type Asset struct {
	ID     Location
	Amount *big.Int
}

func (a Asset) encode(enc *scale.Encoder) error {
	if a.Amount == nil || a.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if a.Amount.BitLen() > 128 {
		return fmt.Errorf("%w: exceeds 128 bits", ErrInvalidAmount)
	}
	if err := enc.PushByte(assetIDConcrete); err != nil {
		return err
	}
	if err := a.ID.encode(enc); err != nil {
		return err
	}
	if err := enc.PushByte(fungibilityFungible); err != nil {
		return err
	}
	return enc.EncodeUintCompact(*a.Amount)
}

// OriginKind selects the origin a Transact call dispatches with
type OriginKind uint8

const (
	OriginNative OriginKind = iota
	OriginSovereignAccount
	OriginSuperuser
	OriginXcm
)

// Instruction is one step of an XCM program
type Instruction interface {
	encodeInstruction(*scale.Encoder) error
}

// WithdrawAsset moves assets from the origin into the holding register
type WithdrawAsset []Asset

func (w WithdrawAsset) encodeInstruction(enc *scale.Encoder) error {
	if err := enc.PushByte(instrWithdrawAsset); err != nil {
		return err
	}
	if err := enc.EncodeUintCompact(*big.NewInt(int64(len(w)))); err != nil {
		return err
	}
	for _, asset := range w {
		if err := asset.encode(enc); err != nil {
			return err
		}
	}
	return nil
}

// BuyExecution pays for execution out of the holding register. A nil
// WeightLimit is Unlimited.
type BuyExecution struct {
	Fees        Asset
	WeightLimit *Weight
}

func (b BuyExecution) encodeInstruction(enc *scale.Encoder) error {
	if err := enc.PushByte(instrBuyExecution); err != nil {
		return err
	}
	if err := b.Fees.encode(enc); err != nil {
		return err
	}
	if b.WeightLimit == nil {
		return enc.PushByte(weightUnlimited)
	}
	if err := enc.PushByte(weightLimited); err != nil {
		return err
	}
	return b.WeightLimit.encode(enc)
}

// DepositAllAssets deposits everything left in holding to a beneficiary
type DepositAllAssets struct {
	Beneficiary Location
}

func (d DepositAllAssets) encodeInstruction(enc *scale.Encoder) error {
	if err := enc.PushByte(instrDepositAsset); err != nil {
		return err
	}
	if err := enc.PushByte(filterWild); err != nil {
		return err
	}
	if err := enc.PushByte(wildAll); err != nil {
		return err
	}
	return d.Beneficiary.encode(enc)
}

// Transact dispatches an encoded runtime call on the destination
type Transact struct {
	OriginKind          OriginKind
	RequireWeightAtMost Weight
	Call                []byte
}

func (t Transact) encodeInstruction(enc *scale.Encoder) error {
	if err := enc.PushByte(instrTransact); err != nil {
		return err
	}
	if err := enc.PushByte(byte(t.OriginKind)); err != nil {
		return err
	}
	if err := t.RequireWeightAtMost.encode(enc); err != nil {
		return err
	}
	return encodeBytes(enc, t.Call)
}

// Program is an ordered XCM V3 instruction list
type Program []Instruction

// EncodeVersioned returns the SCALE encoding of the program wrapped as V3
func (p Program) EncodeVersioned() ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := enc.PushByte(versionV3); err != nil {
		return nil, err
	}
	if err := enc.EncodeUintCompact(*big.NewInt(int64(len(p)))); err != nil {
		return nil, err
	}
	for _, instr := range p {
		if err := instr.encodeInstruction(enc); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeBytes(enc *scale.Encoder, data []byte) error {
	if err := enc.EncodeUintCompact(*big.NewInt(int64(len(data)))); err != nil {
		return err
	}
	return enc.Write(data)
}
