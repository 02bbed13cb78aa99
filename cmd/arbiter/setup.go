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
	"os"
	"text/tabwriter"

	"github.com/blinklabs-io/arbiter"
	"github.com/blinklabs-io/arbiter/internal/config"
	"github.com/blinklabs-io/arbiter/internal/node"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// openHub opens the hub on local storage without starting the API or the
// relayer. The hub must not be running against the same data directory.
func openHub(cfg *config.Config) (*arbiter.Hub, func(), error) {
	offline := *cfg
	offline.ListenAddress = ""
	offline.Provision = false
	offline.Tracing = false
	hub, cleanup, err := node.NewHub(&offline, commonRun(), nil)
	if err != nil {
		return nil, nil, err
	}
	return hub, func() {
		_ = hub.Stop()
		cleanup()
	}, nil
}

func setupCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register every module selector in the routing table",
		Long: "Deploys the proposal, delegation and execution modules behind the hub and " +
			"registers each of their selectors on behalf of the owner. Run against local " +
			"storage while the hub is stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mustConfig(cmd)
			if owner == "" {
				owner = cfg.Owner
			}
			if !common.IsHexAddress(owner) {
				return fmt.Errorf("%w: an owner address is required", errUsage)
			}
			cfg.Owner = owner
			hub, closeHub, err := openHub(cfg)
			if err != nil {
				return err
			}
			defer closeHub()
			if err := hub.Modules().Provision(context.Background(), hub.Router(), common.HexToAddress(owner)); err != nil {
				return err
			}
			selectors, _ := hub.Modules().RoutingTable()
			fmt.Printf("registered %d selectors for hub %s\n", len(selectors), hub.Address().Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "operator address (default from config)")
	return cmd
}

func routesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routing table",
		RunE: func(cmd *cobra.Command, args []string) error {
			hub, closeHub, err := openHub(mustConfig(cmd))
			if err != nil {
				return err
			}
			defer closeHub()
			routes, err := hub.Router().Routes()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SELECTOR\tMODULE\tIMPLEMENTATION\tSIGNATURE")
			for _, r := range routes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Selector, r.Module, r.Implementation.Hex(), r.Signature)
			}
			return w.Flush()
		},
	}
}
