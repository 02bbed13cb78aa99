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

// Package errs classifies governance errors into the broad kinds that callers
// act on: bad input, state conflicts, authorization failures and missing
// dependencies.
package errs

import (
	"errors"
	"net/http"
)

// Kind is the classification of an error
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindStateConflict
	KindAuthorization
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindAuthorization:
		return "authorization"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a kind to the status code returned by the API
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindStateConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case KindDependency:
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}

// Error is a kinded sentinel error. Values are compared by identity, so
// errors.Is works against the package-level sentinels that hold them.
type Error struct {
	kind Kind
	msg  string
}

// New returns a sentinel error of the given kind
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

// Kind returns the classification of the error
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf returns the kind of the first kinded error in the chain of err
func KindOf(err error) Kind {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
