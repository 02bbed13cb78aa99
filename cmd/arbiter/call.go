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
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/blinklabs-io/arbiter/api"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

const privateKeyEnv = "ARBITER_PRIVATE_KEY"

// hubCall is one prepared hub call
type hubCall struct {
	contract *abi.ABI
	method   string
	args     []any
	value    *big.Int
}

func (c hubCall) input() ([]byte, error) {
	return c.contract.Pack(c.method, c.args...)
}

func loadKey(cmd *cobra.Command) (*ecdsa.PrivateKey, error) {
	keyHex, _ := cmd.Flags().GetString("key")
	if keyHex == "" {
		keyHex = os.Getenv(privateKeyEnv)
	}
	if keyHex == "" {
		return nil, fmt.Errorf("%w: a private key is required (--key or %s)", errUsage, privateKeyEnv)
	}
	return crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
}

func parseValue(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: bad value %q", errUsage, s)
	}
	return v, nil
}

func parseProposalID(s string) (*big.Int, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: bad proposal id %q", errUsage, s)
	}
	return new(big.Int).SetUint64(id), nil
}

// sendCall signs call with the sender's next nonce, posts it and prints the
// decoded outputs
func sendCall(cmd *cobra.Command, call hubCall) error {
	key, err := loadKey(cmd)
	if err != nil {
		return err
	}
	client := newAPIClient(cmd, mustConfig(cmd))
	var hub api.HubResponse
	if err := client.get("/v1/hub", &hub); err != nil {
		return err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	var account api.AccountResponse
	if err := client.get("/v1/accounts/"+from.Hex(), &account); err != nil {
		return err
	}
	input, err := call.input()
	if err != nil {
		return err
	}
	req := api.CallRequest{
		Input: input,
		Nonce: hexutil.Uint64(account.Nonce + 1),
	}
	if call.value != nil && call.value.Sign() > 0 {
		req.Value = (*hexutil.Big)(call.value)
	}
	if err := api.Sign(&req, hub.Address, key); err != nil {
		return err
	}
	var resp api.CallResponse
	if err := client.post("/v1/call", req, &resp); err != nil {
		return err
	}
	method := call.contract.Methods[call.method]
	out, err := method.Outputs.Unpack(resp.Output)
	if err != nil {
		return fmt.Errorf("decode %s output: %w", call.method, err)
	}
	if len(out) == 0 {
		fmt.Printf("%s ok\n", call.method)
		return nil
	}
	return printJSON(map[string]any{
		"method": call.method,
		"output": out,
	})
}

func callCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Sign and send a call to a running hub",
	}
	addAPIFlag(cmd)
	cmd.PersistentFlags().String("key", "", "hex private key of the caller (default $"+privateKeyEnv+")")
	cmd.AddCommand(
		callCreateCommand(),
		callVoteCommand("vote", "Vote on a proposal"),
		callVoteCommand("proxy-vote", "Vote for yourself and every delegator that has not voted"),
		callProposalCommand("tally", "Close voting on a proposal", governance.ProposalABI, "tallyProposal"),
		callExecuteCommand(),
		callDelegateCommand(),
		&cobra.Command{
			Use:   "undelegate",
			Short: "Remove your delegation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendCall(cmd, hubCall{contract: governance.DelegationABI, method: "undelegate"})
			},
		},
		callFundCommand(),
	)
	return cmd
}

// parseAction reads CHAIN:TARGET:VALUE:PAYLOAD[:DESCRIPTION]. Empty fields
// take their zero value.
func parseAction(s string) (governance.Action, error) {
	parts := strings.SplitN(s, ":", 5)
	if len(parts) < 4 {
		return governance.Action{}, fmt.Errorf("%w: action %q needs CHAIN:TARGET:VALUE:PAYLOAD", errUsage, s)
	}
	var action governance.Action
	if parts[0] != "" {
		chainID, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return action, fmt.Errorf("%w: bad chain id %q", errUsage, parts[0])
		}
		action.TargetChainId = uint32(chainID)
	}
	if parts[1] != "" {
		if !common.IsHexAddress(parts[1]) {
			return action, fmt.Errorf("%w: bad target %q", errUsage, parts[1])
		}
		action.Target = common.HexToAddress(parts[1])
	}
	value, err := parseValue(parts[2])
	if err != nil {
		return action, err
	}
	action.Value = value
	if parts[3] != "" {
		action.Payload, err = hexutil.Decode(parts[3])
		if err != nil {
			return action, fmt.Errorf("%w: bad payload: %w", errUsage, err)
		}
	}
	if len(parts) == 5 {
		action.Description = parts[4]
	}
	return action, nil
}

func callCreateCommand() *cobra.Command {
	var (
		description string
		actions     []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a proposal",
		Example: "  arbiter call create --description 'fund grants' \\\n" +
			"    --action 0:0x00000000000000000000000000000000000000b0:1000:: \\\n" +
			"    --action 1000:::$(arbiter payload remark --para 1000 hello):remark",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(actions) == 0 {
				return errors.New("at least one --action is required")
			}
			parsed := make([]governance.Action, 0, len(actions))
			for _, s := range actions {
				action, err := parseAction(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, action)
			}
			return sendCall(cmd, hubCall{
				contract: governance.ProposalABI,
				method:   "createProposal",
				args:     []any{description, parsed},
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "proposal description")
	cmd.Flags().StringArrayVar(&actions, "action", nil, "action as CHAIN:TARGET:VALUE:PAYLOAD[:DESCRIPTION], repeatable")
	return cmd
}

func callVoteCommand(use string, short string) *cobra.Command {
	var against bool
	method := "vote"
	if use == "proxy-vote" {
		method = "voteByProxy"
	}
	cmd := &cobra.Command{
		Use:   use + " PROPOSAL_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			return sendCall(cmd, hubCall{
				contract: governance.ProposalABI,
				method:   method,
				args:     []any{id, !against},
			})
		},
	}
	cmd.Flags().BoolVar(&against, "against", false, "vote against instead of for")
	return cmd
}

func callProposalCommand(use string, short string, contract *abi.ABI, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " PROPOSAL_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			return sendCall(cmd, hubCall{contract: contract, method: method, args: []any{id}})
		},
	}
}

func callExecuteCommand() *cobra.Command {
	cmd := callProposalCommand("execute", "Execute a passed proposal", governance.ExecutionABI, "executeProposal")
	var value string
	cmd.Flags().StringVar(&value, "value", "", "amount to add to the treasury first")
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if value == "" {
			return run(cmd, args)
		}
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		v, err := parseValue(value)
		if err != nil {
			return err
		}
		return sendCall(cmd, hubCall{
			contract: governance.ExecutionABI,
			method:   "executeProposal",
			args:     []any{id},
			value:    v,
		})
	}
	return cmd
}

func callDelegateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delegate ADDRESS",
		Short: "Delegate your vote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%w: not an address", errUsage)
			}
			return sendCall(cmd, hubCall{
				contract: governance.DelegationABI,
				method:   "delegate",
				args:     []any{common.HexToAddress(args[0])},
			})
		},
	}
}

func callFundCommand() *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Send value to the treasury",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValue(value)
			if err != nil {
				return err
			}
			if v.Sign() == 0 {
				return fmt.Errorf("%w: --value must be positive", errUsage)
			}
			return sendCall(cmd, hubCall{contract: router.HubABI, method: "fund", value: v})
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "amount to send")
	return cmd
}
