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

package api

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/arbiter/errs"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrBadSignature  = errs.New(errs.KindAuthorization, "signature does not match sender")
	ErrBadRequest    = errs.New(errs.KindValidation, "malformed request")
	ErrNotFound      = errs.New(errs.KindValidation, "not found")
	ErrRateLimited   = errs.New(errs.KindUnknown, "rate limit exceeded")
	ErrMissingSender = errs.New(errs.KindValidation, "missing sender")
)

// CallRequest is a signed hub call
type CallRequest struct {
	From      common.Address `json:"from"`
	Input     hexutil.Bytes  `json:"input"`
	Value     *hexutil.Big   `json:"value,omitempty"`
	Nonce     hexutil.Uint64 `json:"nonce"`
	Signature hexutil.Bytes  `json:"signature"`
}

func (c *CallRequest) value() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value.ToInt()
}

// CallDigest is the message a sender signs: the hub address, the call input,
// the value as a 32-byte big-endian word and the nonce as 8 big-endian bytes
func CallDigest(hub common.Address, input []byte, value *big.Int, nonce uint64) []byte {
	if value == nil {
		value = new(big.Int)
	}
	msg := make([]byte, 0, common.AddressLength+len(input)+32+8)
	msg = append(msg, hub.Bytes()...)
	msg = append(msg, input...)
	msg = append(msg, math.U256Bytes(new(big.Int).Set(value))...)
	msg = binary.BigEndian.AppendUint64(msg, nonce)
	return msg
}

// Sign fills in From and Signature of req with key, signing the EIP-191
// personal message hash of the call digest
func Sign(req *CallRequest, hub common.Address, key *ecdsa.PrivateKey) error {
	req.From = crypto.PubkeyToAddress(key.PublicKey)
	hash := accounts.TextHash(CallDigest(hub, req.Input, req.value(), uint64(req.Nonce)))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return err
	}
	sig[crypto.RecoveryIDOffset] += 27
	req.Signature = sig
	return nil
}

// RecoverSender returns the account that signed req. Both 0/1 and 27/28
// recovery ids are accepted.
func RecoverSender(req *CallRequest, hub common.Address) (common.Address, error) {
	if len(req.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature is %d bytes", ErrBadSignature, len(req.Signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, req.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	hash := accounts.TextHash(CallDigest(hub, req.Input, req.value(), uint64(req.Nonce)))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
