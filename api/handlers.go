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
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/errs"
	"github.com/blinklabs-io/arbiter/governance"
	"github.com/blinklabs-io/arbiter/router"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Kind:  errs.KindOf(err).String(),
	})
}

// statusOf maps an error to its HTTP status. Missing records are 404 even
// though they classify as validation errors.
func statusOf(err error) int {
	switch {
	case errors.Is(err, governance.ErrProposalNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return errs.KindOf(err).HTTPStatus()
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, err)
}

func pathUint(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an unsigned integer", ErrBadRequest, name)
	}
	return v, nil
}

func pathAddress(r *http.Request, name string) (common.Address, error) {
	v := chi.URLParam(r, name)
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address", ErrBadRequest, name)
	}
	return common.HexToAddress(v), nil
}

type ProposalResponse struct {
	ID           uint64         `json:"id"`
	Proposer     common.Address `json:"proposer"`
	Description  string         `json:"description"`
	ForVotes     uint64         `json:"forVotes"`
	AgainstVotes uint64         `json:"againstVotes"`
	QuorumVotes  uint64         `json:"quorumVotes"`
	StartTime    time.Time      `json:"startTime"`
	EndTime      time.Time      `json:"endTime"`
	Status       string         `json:"status"`
	ExecutedTime *time.Time     `json:"executedTime,omitempty"`
	ActionCount  uint64         `json:"actionCount"`
}

func proposalResponse(p governance.ProposalInfo) ProposalResponse {
	ret := ProposalResponse{
		ID:           p.Id.Uint64(),
		Proposer:     p.Proposer,
		Description:  p.Description,
		ForVotes:     p.ForVotes.Uint64(),
		AgainstVotes: p.AgainstVotes.Uint64(),
		QuorumVotes:  p.QuorumVotes.Uint64(),
		StartTime:    time.Unix(p.StartTime.Int64(), 0).UTC(),
		EndTime:      time.Unix(p.EndTime.Int64(), 0).UTC(),
		Status:       governance.StatusName(p.Status),
		ActionCount:  p.ActionCount.Uint64(),
	}
	if p.ExecutedTime.Sign() > 0 {
		executed := time.Unix(p.ExecutedTime.Int64(), 0).UTC()
		ret.ExecutedTime = &executed
	}
	return ret
}

type ActionResponse struct {
	Index         int            `json:"index"`
	TargetChainID uint32         `json:"targetChainId"`
	Target        common.Address `json:"target"`
	Value         string         `json:"value"`
	Payload       hexutil.Bytes  `json:"payload"`
	Description   string         `json:"description"`
}

type ActionResultResponse struct {
	ActionIndex uint32 `json:"actionIndex"`
	ChainID     uint32 `json:"chainId"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
}

type HubResponse struct {
	Address       common.Address `json:"address"`
	Owner         common.Address `json:"owner"`
	ProposalCount uint64         `json:"proposalCount"`
	VotingPeriod  uint64         `json:"votingPeriod"`
	Treasury      string         `json:"treasury"`
	XcmAvailable  bool           `json:"xcmAvailable"`
}

type RouteResponse struct {
	Selector       string         `json:"selector"`
	Implementation common.Address `json:"implementation"`
	Module         string         `json:"module,omitempty"`
	Signature      string         `json:"signature,omitempty"`
	UpdatedTime    time.Time      `json:"updatedTime"`
}

type DelegationResponse struct {
	Address    common.Address   `json:"address"`
	Delegate   *common.Address  `json:"delegate,omitempty"`
	Delegators []common.Address `json:"delegators"`
}

type AccountResponse struct {
	Address common.Address `json:"address"`
	Balance string         `json:"balance"`
	Nonce   uint64         `json:"nonce"`
}

type MessageResponse struct {
	ID          string        `json:"id"`
	Sequence    uint64        `json:"sequence"`
	ProposalID  uint64        `json:"proposalId"`
	ActionIndex uint32        `json:"actionIndex"`
	ChainID     uint32        `json:"chainId"`
	Destination hexutil.Bytes `json:"destination"`
	Message     hexutil.Bytes `json:"message"`
	Attempts    uint32        `json:"attempts"`
	LastError   string        `json:"lastError,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type CallResponse struct {
	Output hexutil.Bytes `json:"output"`
}

// StaticRequest is an unsigned call run against current state
type StaticRequest struct {
	From  common.Address `json:"from"`
	Input hexutil.Bytes  `json:"input"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.healthy(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHub(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reader := s.reader()
	count, err := reader.ProposalCount(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	period, err := reader.VotingPeriod(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	treasury, err := reader.TreasuryBalance(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	available, err := reader.IsXcmAvailable(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HubResponse{
		Address:       s.config.Router.Address(),
		Owner:         s.config.Router.Owner(),
		ProposalCount: count,
		VotingPeriod:  period,
		Treasury:      treasury.String(),
		XcmAvailable:  available,
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.config.Router.Routes()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ret := make([]RouteResponse, 0, len(routes))
	for _, route := range routes {
		ret = append(ret, RouteResponse{
			Selector:       route.Selector.String(),
			Implementation: route.Implementation,
			Module:         route.Module,
			Signature:      route.Signature,
			UpdatedTime:    route.UpdatedTime,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleProposals lists proposals newest first. The before query parameter
// pages backwards from an id.
func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reader := s.reader()
	count, err := reader.ProposalCount(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := uint64(defaultListLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.ParseUint(v, 10, 64)
		if err != nil || limit == 0 {
			s.fail(w, r, fmt.Errorf("%w: bad limit", ErrBadRequest))
			return
		}
		limit = min(limit, maxListLimit)
	}
	next := count
	if v := r.URL.Query().Get("before"); v != "" {
		before, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: bad before", ErrBadRequest))
			return
		}
		next = min(count, before-min(before, 1))
	}
	ret := make([]ProposalResponse, 0, min(limit, next))
	for id := next; id >= 1 && uint64(len(ret)) < limit; id-- {
		info, err := reader.GetProposal(ctx, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ret = append(ret, proposalResponse(info))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	info, err := s.reader().GetProposal(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposalResponse(info))
}

func (s *Server) handleProposalActions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	actions, err := s.reader().GetProposalActions(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ret := make([]ActionResponse, 0, len(actions))
	for i, a := range actions {
		ret = append(ret, ActionResponse{
			Index:         i,
			TargetChainID: a.TargetChainId,
			Target:        a.Target,
			Value:         a.Value.String(),
			Payload:       a.Payload,
			Description:   a.Description,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleActionResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	results, err := s.reader().GetActionResults(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ret := make([]ActionResultResponse, 0, len(results))
	for _, res := range results {
		ret = append(ret, ActionResultResponse{
			ActionIndex: res.ActionIndex,
			ChainID:     res.ChainId,
			Success:     res.Success,
			Error:       res.Error,
			MessageID:   res.MessageId,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	voter, err := pathAddress(r, "voter")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	voted, err := s.reader().HasVoted(r.Context(), id, voter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proposalId": id,
		"voter":      voter,
		"hasVoted":   voted,
	})
}

func (s *Server) handleDelegation(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	reader := s.reader()
	ret := DelegationResponse{Address: addr}
	delegate, err := reader.GetDelegate(ctx, addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if delegate != (common.Address{}) {
		ret.Delegate = &delegate
	}
	ret.Delegators, err = reader.Delegators(ctx, addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	db := s.config.Database
	balance, err := db.GetBalance(types.Address(addr), nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nonce, err := db.GetAccountNonce(types.Address(addr), nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{
		Address: addr,
		Balance: balance.String(),
		Nonce:   nonce,
	})
}

func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	if s.config.Outbox == nil {
		s.fail(w, r, fmt.Errorf("%w: outbox", ErrNotFound))
		return
	}
	msgs, err := s.config.Outbox.Pending(maxListLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ret := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		ret = append(ret, MessageResponse{
			ID:          msg.ID,
			Sequence:    msg.Sequence,
			ProposalID:  msg.ProposalID,
			ActionIndex: msg.ActionIndex,
			ChainID:     msg.ChainID,
			Destination: msg.Destination,
			Message:     msg.Payload,
			Attempts:    msg.Attempts,
			LastError:   msg.LastError,
			CreatedAt:   time.UnixMilli(msg.CreatedAt).UTC(),
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// handleCall verifies the sender signature and dispatches the call. The
// nonce must be one more than the last nonce the sender used.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.From == (common.Address{}) {
		s.fail(w, r, ErrMissingSender)
		return
	}
	hub := s.config.Router.Address()
	signer, err := RecoverSender(&req, hub)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if signer != req.From {
		s.fail(w, r, fmt.Errorf("%w: signed by %s", ErrBadSignature, signer.Hex()))
		return
	}
	nonce := uint64(req.Nonce)
	out, err := s.config.Router.Dispatch(r.Context(), router.Call{
		Caller: req.From,
		Input:  req.Input,
		Value:  new(big.Int).Set(req.value()),
		Nonce:  &nonce,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CallResponse{Output: out})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	var req StaticRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.config.Router.StaticCall(r.Context(), router.Call{
		Caller: req.From,
		Input:  req.Input,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CallResponse{Output: out})
}
