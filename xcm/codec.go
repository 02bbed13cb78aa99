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

// Package xcm builds cross-chain payloads. A payload is the ABI encoding of
// (bytes destination, bytes message), where both halves are SCALE encoded
// XCM V3 values.
package xcm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	// DefaultFee is the execution fee bought out of a transfer
	DefaultFee = 200_000_000

	TransactRefTime   = 1_000_000_000
	TransactProofSize = 50_000

	PalletSystem    = "System"
	RemarkWithEvent = "remark_with_event"
)

// TransactWeight is the weight limit of remark transacts
var TransactWeight = Weight{RefTime: TransactRefTime, ProofSize: TransactProofSize}

// NativeAsset identifies the relay chain native asset
var NativeAsset = Location{Parents: 1}

// CallIndex is the pallet and call index pair that prefixes an encoded call
type CallIndex [2]byte

// Resolver resolves the call encoding rules of a remote chain
type Resolver interface {
	CallIndex(ctx context.Context, pallet string, call string) (CallIndex, error)
	XcmVersion(ctx context.Context) (uint32, error)
}

// StaticResolver answers from fixed tables
type StaticResolver struct {
	mu      sync.RWMutex
	calls   map[string]CallIndex
	version uint32
}

// NewStaticResolver returns a resolver that knows System.remark_with_event
// at 0x0007 and XCM V3
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		calls: map[string]CallIndex{
			PalletSystem + "." + RemarkWithEvent: {0x00, 0x07},
		},
		version: uint32(versionV3),
	}
}

// SetCallIndex overrides or adds a call index
func (s *StaticResolver) SetCallIndex(pallet string, call string, idx CallIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[pallet+"."+call] = idx
}

func (s *StaticResolver) CallIndex(_ context.Context, pallet string, call string) (CallIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.calls[pallet+"."+call]
	if !ok {
		return CallIndex{}, fmt.Errorf("%w: unknown call %s.%s", ErrCodecUnavailable, pallet, call)
	}
	return idx, nil
}

func (s *StaticResolver) XcmVersion(context.Context) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

// Codec turns remark and transfer intents into payloads
type Codec struct {
	resolver Resolver
	fee      *big.Int
}

type CodecOptionFunc func(*Codec)

// WithFee overrides the execution fee bought by transfers
func WithFee(fee *big.Int) CodecOptionFunc {
	return func(c *Codec) {
		c.fee = new(big.Int).Set(fee)
	}
}

func NewCodec(resolver Resolver, opts ...CodecOptionFunc) *Codec {
	if resolver == nil {
		resolver = NewStaticResolver()
	}
	c := &Codec{
		resolver: resolver,
		fee:      big.NewInt(DefaultFee),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fee returns the execution fee bought by transfers
func (c *Codec) Fee() *big.Int {
	return new(big.Int).Set(c.fee)
}

// Available reports whether the remote encoding rules can be resolved
func (c *Codec) Available(ctx context.Context) bool {
	return c.checkVersion(ctx) == nil
}

func (c *Codec) checkVersion(ctx context.Context) error {
	version, err := c.resolver.XcmVersion(ctx)
	if err != nil {
		return unavailable(err)
	}
	if version < uint32(versionV3) {
		return fmt.Errorf("%w: remote supports XCM v%d", ErrCodecUnavailable, version)
	}
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, ErrCodecUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCodecUnavailable, err)
}

// RemarkCall encodes System.remark_with_event(text) for the remote chain
func (c *Codec) RemarkCall(ctx context.Context, text string) ([]byte, error) {
	idx, err := c.resolver.CallIndex(ctx, PalletSystem, RemarkWithEvent)
	if err != nil {
		return nil, unavailable(err)
	}
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := enc.Write(idx[:]); err != nil {
		return nil, err
	}
	if err := encodeBytes(enc, []byte(text)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RemarkProgram is a single Transact of the remark call
func (c *Codec) RemarkProgram(ctx context.Context, text string) (Program, error) {
	call, err := c.RemarkCall(ctx, text)
	if err != nil {
		return nil, err
	}
	return Program{
		Transact{
			OriginKind:          OriginSovereignAccount,
			RequireWeightAtMost: TransactWeight,
			Call:                call,
		},
	}, nil
}

// TransferProgram withdraws amount, buys execution with the fee out of it
// and deposits the remainder to beneficiary. An amount below the fee still
// encodes; it fails on the remote side.
func (c *Codec) TransferProgram(beneficiary Junction, amount *big.Int) (Program, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if beneficiary == nil {
		return nil, fmt.Errorf("%w: missing beneficiary", ErrInvalidAddress)
	}
	return Program{
		WithdrawAsset{{ID: NativeAsset, Amount: new(big.Int).Set(amount)}},
		BuyExecution{Fees: Asset{ID: NativeAsset, Amount: c.Fee()}},
		DepositAllAssets{
			Beneficiary: Location{Interior: []Junction{beneficiary}},
		},
	}, nil
}

// Remark builds the packed payload that posts text on the chain at paraID
func (c *Codec) Remark(ctx context.Context, paraID uint32, text string) ([]byte, error) {
	if err := c.checkVersion(ctx); err != nil {
		return nil, err
	}
	program, err := c.RemarkProgram(ctx, text)
	if err != nil {
		return nil, err
	}
	return c.build(Destination(paraID), program)
}

// Transfer builds the packed payload that moves amount of the native asset
// from the sovereign account to recipient on the chain at paraID
func (c *Codec) Transfer(
	ctx context.Context,
	paraID uint32,
	recipient string,
	amount *big.Int,
) ([]byte, error) {
	beneficiary, err := DecodeAddress(recipient)
	if err != nil {
		return nil, err
	}
	program, err := c.TransferProgram(beneficiary, amount)
	if err != nil {
		return nil, err
	}
	if err := c.checkVersion(ctx); err != nil {
		return nil, err
	}
	return c.build(Destination(paraID), program)
}

func (c *Codec) build(dest Location, program Program) ([]byte, error) {
	destBytes, err := dest.EncodeVersioned()
	if err != nil {
		return nil, err
	}
	msgBytes, err := program.EncodeVersioned()
	if err != nil {
		return nil, err
	}
	return Pack(destBytes, msgBytes)
}

// EncodeDestination returns the versioned destination bytes for paraID
func EncodeDestination(paraID uint32) ([]byte, error) {
	return Destination(paraID).EncodeVersioned()
}

var envelope = func() abi.Arguments {
	bytesType, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "destination", Type: bytesType},
		{Name: "message", Type: bytesType},
	}
}()

// Payload is an unpacked cross-chain payload
type Payload struct {
	Destination []byte
	Message     []byte
}

// Pack ABI encodes a destination and message pair
func Pack(destination []byte, message []byte) ([]byte, error) {
	return envelope.Pack(destination, message)
}

// Unpack reverses Pack. Both halves must be non-empty.
func Unpack(payload []byte) (Payload, error) {
	values, err := envelope.Unpack(payload)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	dest, _ := values[0].([]byte)
	msg, _ := values[1].([]byte)
	if len(dest) == 0 || len(msg) == 0 {
		return Payload{}, fmt.Errorf("%w: empty destination or message", ErrInvalidPayload)
	}
	return Payload{Destination: dest, Message: msg}, nil
}
