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

package governance

import "github.com/blinklabs-io/arbiter/errs"

var (
	ErrEmptyActions     = errs.New(errs.KindValidation, "proposal has no actions")
	ErrSelfDelegation   = errs.New(errs.KindValidation, "cannot delegate to self")
	ErrInvalidDelegatee = errs.New(errs.KindValidation, "invalid delegatee")
	ErrIndexOutOfRange  = errs.New(errs.KindValidation, "index out of range")
	ErrProposalNotFound = errs.New(errs.KindValidation, "proposal not found")
	ErrInvalidAction    = errs.New(errs.KindValidation, "invalid action")
	ErrModuleTarget     = errs.New(errs.KindValidation, "modules are only reachable through the hub")

	ErrNotActive        = errs.New(errs.KindStateConflict, "proposal is not active")
	ErrAlreadyVoted     = errs.New(errs.KindStateConflict, "already voted")
	ErrDelegatedVote    = errs.New(errs.KindStateConflict, "voting power is delegated")
	ErrVotingStillOpen  = errs.New(errs.KindStateConflict, "voting is still open")
	ErrAlreadyTallied   = errs.New(errs.KindStateConflict, "proposal already tallied")
	ErrNotPassed        = errs.New(errs.KindStateConflict, "proposal has not passed")
	ErrAlreadyExecuted  = errs.New(errs.KindStateConflict, "proposal already executed")
	ErrNotDelegating    = errs.New(errs.KindStateConflict, "not delegating")
	ErrTreasuryBalance  = errs.New(errs.KindStateConflict, "insufficient treasury balance")
	ErrOutboxNotPresent = errs.New(errs.KindDependency, "cross-chain outbox not configured")
)
