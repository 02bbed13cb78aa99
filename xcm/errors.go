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

package xcm

import "github.com/blinklabs-io/arbiter/errs"

var (
	ErrInvalidAddress  = errs.New(errs.KindValidation, "invalid address")
	ErrInvalidAmount   = errs.New(errs.KindValidation, "invalid amount")
	ErrInvalidLocation = errs.New(errs.KindValidation, "invalid location")
	ErrInvalidPayload  = errs.New(errs.KindValidation, "invalid cross-chain payload")
	ErrUnsupported     = errs.New(errs.KindValidation, "unsupported encoding")
	// ErrCodecUnavailable means the remote call encoding rules could not be
	// resolved
	ErrCodecUnavailable = errs.New(errs.KindDependency, "codec unavailable")
)
