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
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/blinklabs-io/arbiter/api"
	"github.com/spf13/cobra"
)

func proposalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposal",
		Short: "Inspect proposals on a running hub",
	}
	addAPIFlag(cmd)
	cmd.AddCommand(proposalShowCommand(), proposalListCommand())
	return cmd
}

type proposalDetail struct {
	Proposal api.ProposalResponse       `json:"proposal"`
	Actions  []api.ActionResponse       `json:"actions"`
	Results  []api.ActionResultResponse `json:"results,omitempty"`
}

func proposalShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show PROPOSAL_ID",
		Short: "Show a proposal with its actions and execution results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseProposalID(args[0]); err != nil {
				return err
			}
			client := newAPIClient(cmd, mustConfig(cmd))
			base := "/v1/proposals/" + args[0]
			var detail proposalDetail
			if err := client.get(base, &detail.Proposal); err != nil {
				return err
			}
			if err := client.get(base+"/actions", &detail.Actions); err != nil {
				return err
			}
			if detail.Proposal.ExecutedTime != nil {
				if err := client.get(base+"/results", &detail.Results); err != nil {
					return err
				}
			}
			return printJSON(detail)
		},
	}
}

func proposalListCommand() *cobra.Command {
	var (
		limit  uint64
		before uint64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(cmd, mustConfig(cmd))
			query := url.Values{}
			if limit > 0 {
				query.Set("limit", strconv.FormatUint(limit, 10))
			}
			if before > 0 {
				query.Set("before", strconv.FormatUint(before, 10))
			}
			path := "/v1/proposals"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}
			var proposals []api.ProposalResponse
			if err := client.get(path, &proposals); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tFOR\tAGAINST\tENDS\tDESCRIPTION")
			for _, p := range proposals {
				fmt.Fprintf(
					w,
					"%d\t%s\t%d\t%d\t%s\t%s\n",
					p.ID,
					p.Status,
					p.ForVotes,
					p.AgainstVotes,
					p.EndTime.Format(time.RFC3339),
					p.Description,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Uint64Var(&limit, "limit", 0, "maximum number of proposals")
	cmd.Flags().Uint64Var(&before, "before", 0, "only list proposals with a lower id")
	return cmd
}
