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
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/event"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Module is a logic module deployed behind the router. Its state lives in
// the router's database, reached through the Frame passed to Handle.
type Module interface {
	Name() string
	ABI() *abi.ABI
	// Handle runs method with its decoded arguments and returns the values
	// to be packed as the method outputs
	Handle(frame *Frame, method *abi.Method, args []any) ([]any, error)
}

// Frame is the execution context of a single routed call
type Frame struct {
	ctx    context.Context
	Txn    *database.Txn
	DB     *database.Database
	Hub    common.Address
	Caller common.Address
	Value  *big.Int
	Now    time.Time
	Static bool
	events []event.Event
	marks  map[string]int
	router *Router
	depth  int
}

// maxCallDepth bounds nested calls from the hub to itself
const maxCallDepth = 8

// NewFrame builds a frame outside of the router, mostly useful for invoking
// module internals directly
func NewFrame(
	ctx context.Context,
	db *database.Database,
	txn *database.Txn,
	caller common.Address,
	now time.Time,
) *Frame {
	return &Frame{
		ctx:    ctx,
		DB:     db,
		Txn:    txn,
		Caller: caller,
		Value:  new(big.Int),
		Now:    now,
	}
}

func (f *Frame) Context() context.Context {
	if f.ctx == nil {
		return context.Background()
	}
	return f.ctx
}

// Emit buffers an event. Buffered events are published only after the call
// commits and are dropped when it fails.
func (f *Frame) Emit(eventType event.EventType, data any) {
	evt := event.NewEvent(eventType, data)
	evt.Timestamp = f.Now
	f.events = append(f.events, evt)
}

// Events returns the events buffered so far
func (f *Frame) Events() []event.Event {
	return f.events
}

// Depth is the nesting level of the call, 0 for a call from outside the hub
func (f *Frame) Depth() int {
	return f.depth
}

// IsModule reports whether addr is a deployed module
func (f *Frame) IsModule(addr common.Address) bool {
	if f.router == nil {
		return false
	}
	// The router lock is held for the whole call
	_, ok := f.router.modules[addr]
	return ok
}

// Call routes input as a call made by the hub to itself. It shares the
// transaction of f, and its events join those of f once it succeeds.
func (f *Frame) Call(input []byte, value *big.Int) ([]byte, error) {
	if f.router == nil {
		return nil, ErrNoRouter
	}
	if f.depth+1 >= maxCallDepth {
		return nil, fmt.Errorf("%w: %d", ErrCallDepth, maxCallDepth)
	}
	if value == nil {
		value = new(big.Int)
	}
	nested := &Frame{
		ctx:    f.ctx,
		Txn:    f.Txn,
		DB:     f.DB,
		Hub:    f.Hub,
		Caller: f.Hub,
		Value:  new(big.Int).Set(value),
		Now:    f.Now,
		Static: f.Static,
		router: f.router,
		depth:  f.depth + 1,
	}
	ret, _, err := f.router.route(nested, input)
	if err != nil {
		return nil, err
	}
	f.events = append(f.events, nested.events...)
	return ret, nil
}

// Savepoint marks a point in the metadata transaction that RollbackTo can
// return to. Blob writes are not covered.
func (f *Frame) Savepoint(name string) error {
	if err := f.Txn.Metadata().SavePoint(name).Error; err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if f.marks == nil {
		f.marks = make(map[string]int)
	}
	f.marks[name] = len(f.events)
	return nil
}

// RollbackTo undoes metadata writes and buffered events since the named
// savepoint
func (f *Frame) RollbackTo(name string) error {
	if err := f.Txn.Metadata().RollbackTo(name).Error; err != nil {
		return fmt.Errorf("rollback to %s: %w", name, err)
	}
	if mark, ok := f.marks[name]; ok && mark <= len(f.events) {
		f.events = f.events[:mark]
	}
	return nil
}
