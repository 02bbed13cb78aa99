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
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/blinklabs-io/arbiter/internal/config"
	"github.com/blinklabs-io/arbiter/substrate"
	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

// payloadCodec resolves call indexes from the configured node when there is
// one, otherwise from the static table
func payloadCodec(cfg *config.Config) (*xcm.Codec, func()) {
	if cfg.SubstrateURL == "" {
		return xcm.NewCodec(nil), func() {}
	}
	client := substrate.NewClient(cfg.SubstrateURL)
	resolver := substrate.NewRuntimeResolver(client, cfg.XcmVersion)
	return xcm.NewCodec(resolver), func() { _ = client.Close() }
}

func payloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Build and inspect cross-chain action payloads",
	}
	cmd.AddCommand(payloadRemarkCommand())
	cmd.AddCommand(payloadTransferCommand())
	cmd.AddCommand(payloadInspectCommand())
	return cmd
}

func payloadRemarkCommand() *cobra.Command {
	var paraID uint32
	cmd := &cobra.Command{
		Use:   "remark TEXT",
		Short: "Build a payload posting a remark on the target chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, closeCodec := payloadCodec(mustConfig(cmd))
			defer closeCodec()
			payload, err := codec.Remark(context.Background(), paraID, args[0])
			if err != nil {
				return err
			}
			fmt.Println(hexutil.Encode(payload))
			return nil
		},
	}
	cmd.Flags().Uint32Var(&paraID, "para", 0, "target parachain id, 0 for the relay chain")
	return cmd
}

func payloadTransferCommand() *cobra.Command {
	var (
		paraID uint32
		to     string
		amount string
	)
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Build a payload moving native asset to a beneficiary",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok := new(big.Int).SetString(amount, 10)
			if !ok || value.Sign() < 0 {
				return fmt.Errorf("%w: bad amount %q", errUsage, amount)
			}
			codec, closeCodec := payloadCodec(mustConfig(cmd))
			defer closeCodec()
			if value.Cmp(codec.Fee()) < 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: amount is below the execution fee %s and will fail remotely\n", codec.Fee())
			}
			payload, err := codec.Transfer(context.Background(), paraID, to, value)
			if err != nil {
				return err
			}
			fmt.Println(hexutil.Encode(payload))
			return nil
		},
	}
	cmd.Flags().Uint32Var(&paraID, "para", 0, "target parachain id, 0 for the relay chain")
	cmd.Flags().StringVar(&to, "to", "", "beneficiary, SS58 or 0x-prefixed 32-byte account")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in the smallest unit")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func payloadInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect PAYLOAD",
		Short: "Decode a packed payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hexutil.Decode(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			payload, err := xcm.Unpack(data)
			if err != nil {
				return err
			}
			dest, err := xcm.DecodeLocation(payload.Destination)
			if err != nil {
				return err
			}
			program, err := xcm.DecodeProgram(payload.Message)
			if err != nil {
				return err
			}
			fmt.Println("destination:", dest)
			for i, instr := range program {
				fmt.Printf("  %d: %v\n", i, instr)
			}
			return nil
		},
	}
}

func addressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Address helpers",
	}
	var network string
	convert := &cobra.Command{
		Use:   "convert ADDRESS",
		Short: "Show the SS58 forms of an EVM address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%w: not an EVM address", errUsage)
			}
			addr := common.HexToAddress(args[0])
			networks := xcm.Networks
			if network != "" {
				n, ok := xcm.LookupNetwork(network)
				if !ok {
					names := make([]string, 0, len(xcm.Networks))
					for _, n := range xcm.Networks {
						names = append(names, n.Name)
					}
					return fmt.Errorf("%w: unknown network %q, one of %s", errUsage, network, strings.Join(names, ", "))
				}
				networks = []xcm.Network{n}
			}
			for _, n := range networks {
				ss58, err := xcm.EVMToSS58(addr, n.Prefix)
				if err != nil {
					return err
				}
				fmt.Printf("%-10s %s\n", n.Name, ss58)
			}
			return nil
		},
	}
	convert.Flags().StringVar(&network, "network", "", "only show this network")
	cmd.AddCommand(convert)
	return cmd
}
