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

package router

import (
	"github.com/blinklabs-io/arbiter/errs"
)

var (
	ErrInvalidCallData      = errs.New(errs.KindValidation, "invalid call data")
	ErrInvalidSelector      = errs.New(errs.KindValidation, "invalid selector")
	ErrLengthMismatch       = errs.New(errs.KindValidation, "selectors and implementations differ in length")
	ErrReservedSelector     = errs.New(errs.KindValidation, "selector is reserved by the router")
	ErrNotPayable           = errs.New(errs.KindValidation, "method is not payable")
	ErrNegativeValue        = errs.New(errs.KindValidation, "call value is negative")
	ErrStaticCallValue      = errs.New(errs.KindValidation, "static call cannot carry value")
	ErrInvalidNonce         = errs.New(errs.KindValidation, "invalid account nonce")
	ErrInvalidModule        = errs.New(errs.KindValidation, "invalid module address")
	ErrModuleExists         = errs.New(errs.KindStateConflict, "module already deployed")
	ErrCallDepth            = errs.New(errs.KindStateConflict, "call depth exceeded")
	ErrNotOwner             = errs.New(errs.KindAuthorization, "caller is not the owner")
	ErrImplementationNotSet = errs.New(errs.KindDependency, "implementation not set")
	ErrNoRouter             = errs.New(errs.KindDependency, "frame is not attached to a router")
)
