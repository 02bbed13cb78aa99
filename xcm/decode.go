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
	"math/big"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// DecodeLocation decodes a V3 versioned location
func DecodeLocation(data []byte) (Location, error) {
	r := bytes.NewReader(data)
	dec := scale.NewDecoder(r)
	if err := expectVersion(dec); err != nil {
		return Location{}, err
	}
	loc, err := decodeLocation(dec)
	if err != nil {
		return Location{}, err
	}
	if r.Len() != 0 {
		return Location{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidLocation, r.Len())
	}
	return loc, nil
}

// DecodeProgram decodes a V3 versioned program made of the instructions
// this package builds
func DecodeProgram(data []byte) (Program, error) {
	r := bytes.NewReader(data)
	dec := scale.NewDecoder(r)
	if err := expectVersion(dec); err != nil {
		return nil, err
	}
	count, err := decodeLength(dec)
	if err != nil {
		return nil, err
	}
	program := make(Program, 0, min(count, 16))
	for range count {
		instr, err := decodeInstruction(dec)
		if err != nil {
			return nil, err
		}
		program = append(program, instr)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidPayload, r.Len())
	}
	return program, nil
}

// ParaID returns the parachain a destination addresses, 0 for the relay
// root. It reports false for locations that are neither.
func (l Location) ParaID() (uint32, bool) {
	if l.Parents != 1 {
		return 0, false
	}
	switch len(l.Interior) {
	case 0:
		return 0, true
	case 1:
		if p, ok := l.Interior[0].(Parachain); ok {
			return uint32(p), true
		}
	}
	return 0, false
}

func (l Location) String() string {
	if len(l.Interior) == 0 {
		return fmt.Sprintf("{parents: %d, Here}", l.Parents)
	}
	parts := make([]string, 0, len(l.Interior))
	for _, j := range l.Interior {
		parts = append(parts, fmt.Sprint(j))
	}
	return fmt.Sprintf(
		"{parents: %d, X%d(%s)}",
		l.Parents,
		len(l.Interior),
		strings.Join(parts, ", "),
	)
}

func (p Parachain) String() string {
	return fmt.Sprintf("Parachain(%d)", uint32(p))
}

func (a AccountID32) String() string {
	return "AccountId32(0x" + hex.EncodeToString(a[:]) + ")"
}

func (a AccountKey20) String() string {
	return "AccountKey20(0x" + hex.EncodeToString(a[:]) + ")"
}

func (a Asset) String() string {
	return fmt.Sprintf("%s x %s", a.ID, a.Amount)
}

func (w WithdrawAsset) String() string {
	parts := make([]string, 0, len(w))
	for _, a := range w {
		parts = append(parts, a.String())
	}
	return "WithdrawAsset[" + strings.Join(parts, "; ") + "]"
}

func (b BuyExecution) String() string {
	limit := "Unlimited"
	if b.WeightLimit != nil {
		limit = fmt.Sprintf("Limited(%d, %d)", b.WeightLimit.RefTime, b.WeightLimit.ProofSize)
	}
	return fmt.Sprintf("BuyExecution{fees: %s, weightLimit: %s}", b.Fees, limit)
}

func (d DepositAllAssets) String() string {
	return fmt.Sprintf("DepositAsset{assets: Wild(All), beneficiary: %s}", d.Beneficiary)
}

func (t Transact) String() string {
	return fmt.Sprintf(
		"Transact{originKind: %d, requireWeightAtMost: (%d, %d), call: 0x%s}",
		t.OriginKind,
		t.RequireWeightAtMost.RefTime,
		t.RequireWeightAtMost.ProofSize,
		hex.EncodeToString(t.Call),
	)
}

func expectVersion(dec *scale.Decoder) error {
	version, err := dec.ReadOneByte()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if version != versionV3 {
		return fmt.Errorf("%w: version %d", ErrUnsupported, version)
	}
	return nil
}

func decodeCompact(dec *scale.Decoder) (*big.Int, error) {
	v, err := dec.DecodeUintCompact()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return v, nil
}

func decodeCompactUint64(dec *scale.Decoder) (uint64, error) {
	v, err := decodeCompact(dec)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: compact value overflows u64", ErrInvalidPayload)
	}
	return v.Uint64(), nil
}

// decodeLength limits lengths to what the remaining input could hold
func decodeLength(dec *scale.Decoder) (int, error) {
	v, err := decodeCompactUint64(dec)
	if err != nil {
		return 0, err
	}
	if v > 1<<20 {
		return 0, fmt.Errorf("%w: length %d", ErrInvalidPayload, v)
	}
	return int(v), nil
}

func readByte(dec *scale.Decoder) (byte, error) {
	b, err := dec.ReadOneByte()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return b, nil
}

func readBytes(dec *scale.Decoder, n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if err := dec.Read(buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return buf, nil
}

func decodeLocation(dec *scale.Decoder) (Location, error) {
	parents, err := readByte(dec)
	if err != nil {
		return Location{}, err
	}
	count, err := readByte(dec)
	if err != nil {
		return Location{}, err
	}
	if count > MaxJunctions {
		return Location{}, fmt.Errorf("%w: junctions variant %d", ErrInvalidLocation, count)
	}
	loc := Location{Parents: parents}
	for range count {
		j, err := decodeJunction(dec)
		if err != nil {
			return Location{}, err
		}
		loc.Interior = append(loc.Interior, j)
	}
	return loc, nil
}

func decodeJunction(dec *scale.Decoder) (Junction, error) {
	kind, err := readByte(dec)
	if err != nil {
		return nil, err
	}
	switch kind {
	case junctionParachain:
		id, err := decodeCompactUint64(dec)
		if err != nil {
			return nil, err
		}
		if id > 0xffffffff {
			return nil, fmt.Errorf("%w: para id %d", ErrInvalidLocation, id)
		}
		return Parachain(uint32(id)), nil
	case junctionAccountID32, junctionAccountKey20:
		network, err := readByte(dec)
		if err != nil {
			return nil, err
		}
		if network != 0 {
			return nil, fmt.Errorf("%w: account network", ErrUnsupported)
		}
		if kind == junctionAccountID32 {
			raw, err := readBytes(dec, 32)
			if err != nil {
				return nil, err
			}
			return AccountID32([32]byte(raw)), nil
		}
		raw, err := readBytes(dec, 20)
		if err != nil {
			return nil, err
		}
		return AccountKey20([20]byte(raw)), nil
	}
	return nil, fmt.Errorf("%w: junction %d", ErrUnsupported, kind)
}

func decodeWeight(dec *scale.Decoder) (Weight, error) {
	refTime, err := decodeCompactUint64(dec)
	if err != nil {
		return Weight{}, err
	}
	proofSize, err := decodeCompactUint64(dec)
	if err != nil {
		return Weight{}, err
	}
	return Weight{RefTime: refTime, ProofSize: proofSize}, nil
}

func decodeAsset(dec *scale.Decoder) (Asset, error) {
	id, err := readByte(dec)
	if err != nil {
		return Asset{}, err
	}
	if id != assetIDConcrete {
		return Asset{}, fmt.Errorf("%w: abstract asset id", ErrUnsupported)
	}
	loc, err := decodeLocation(dec)
	if err != nil {
		return Asset{}, err
	}
	fun, err := readByte(dec)
	if err != nil {
		return Asset{}, err
	}
	if fun != fungibilityFungible {
		return Asset{}, fmt.Errorf("%w: non-fungible asset", ErrUnsupported)
	}
	amount, err := decodeCompact(dec)
	if err != nil {
		return Asset{}, err
	}
	return Asset{ID: loc, Amount: amount}, nil
}

func decodeInstruction(dec *scale.Decoder) (Instruction, error) {
	kind, err := readByte(dec)
	if err != nil {
		return nil, err
	}
	switch kind {
	case instrWithdrawAsset:
		count, err := decodeLength(dec)
		if err != nil {
			return nil, err
		}
		assets := make(WithdrawAsset, 0, min(count, 16))
		for range count {
			asset, err := decodeAsset(dec)
			if err != nil {
				return nil, err
			}
			assets = append(assets, asset)
		}
		return assets, nil
	case instrBuyExecution:
		fees, err := decodeAsset(dec)
		if err != nil {
			return nil, err
		}
		limit, err := readByte(dec)
		if err != nil {
			return nil, err
		}
		instr := BuyExecution{Fees: fees}
		switch limit {
		case weightUnlimited:
		case weightLimited:
			w, err := decodeWeight(dec)
			if err != nil {
				return nil, err
			}
			instr.WeightLimit = &w
		default:
			return nil, fmt.Errorf("%w: weight limit %d", ErrUnsupported, limit)
		}
		return instr, nil
	case instrDepositAsset:
		filter, err := readByte(dec)
		if err != nil {
			return nil, err
		}
		wild, err := readByte(dec)
		if err != nil {
			return nil, err
		}
		if filter != filterWild || wild != wildAll {
			return nil, fmt.Errorf("%w: asset filter", ErrUnsupported)
		}
		loc, err := decodeLocation(dec)
		if err != nil {
			return nil, err
		}
		return DepositAllAssets{Beneficiary: loc}, nil
	case instrTransact:
		origin, err := readByte(dec)
		if err != nil {
			return nil, err
		}
		w, err := decodeWeight(dec)
		if err != nil {
			return nil, err
		}
		n, err := decodeLength(dec)
		if err != nil {
			return nil, err
		}
		call, err := readBytes(dec, n)
		if err != nil {
			return nil, err
		}
		return Transact{
			OriginKind:          OriginKind(origin),
			RequireWeightAtMost: w,
			Call:                call,
		}, nil
	}
	return nil, fmt.Errorf("%w: instruction %d", ErrUnsupported, kind)
}
