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

package substrate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/arbiter/outbox"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const DefaultSubmitMethod = "arbiter_submitXcm"

// SubmitRequest is the single parameter sent to the bridge
type SubmitRequest struct {
	ID          string        `json:"id"`
	ProposalID  uint64        `json:"proposalId"`
	ActionIndex uint32        `json:"actionIndex"`
	ChainID     uint32        `json:"chainId"`
	Destination hexutil.Bytes `json:"destination"`
	Message     hexutil.Bytes `json:"message"`
}

// Submitter forwards outbox messages to a relay bridge over JSON-RPC
type Submitter struct {
	client *Client
	method string
}

func NewSubmitter(client *Client, method string) *Submitter {
	if method == "" {
		method = DefaultSubmitMethod
	}
	return &Submitter{client: client, method: method}
}

// Submit returns the bridge receipt. A string result is used as is, any
// other JSON result is returned in its raw form.
func (s *Submitter) Submit(ctx context.Context, msg outbox.Message) (string, error) {
	req := SubmitRequest{
		ID:          msg.ID,
		ProposalID:  msg.ProposalID,
		ActionIndex: msg.ActionIndex,
		ChainID:     msg.ChainID,
		Destination: msg.Destination,
		Message:     msg.Payload,
	}
	var raw json.RawMessage
	if err := s.client.Call(ctx, s.method, &raw, req); err != nil {
		return "", fmt.Errorf("submit message %s: %w", msg.ID, err)
	}
	var receipt string
	if err := json.Unmarshal(raw, &receipt); err == nil {
		return receipt, nil
	}
	return string(raw), nil
}
