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

// Package router presents a set of independently deployed logic modules
// behind one address. Calls are routed by selector to the module that
// implements them, and every module reads and writes the router's single
// database.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/errs"
	"github.com/blinklabs-io/arbiter/event"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ImplementationsSetEventType event.EventType = "router.implementations_set"
	TreasuryFundedEventType     event.EventType = "router.treasury_funded"
)

// ImplementationsSetEvent is published when routing entries change
type ImplementationsSetEvent struct {
	Selectors       []Selector
	Implementations []common.Address
}

// TreasuryFundedEvent is published when a call credits value to the hub
type TreasuryFundedEvent struct {
	From   common.Address
	Amount *big.Int
}

const hubABIJSON = `[
	{"type":"function","name":"setImplementations","stateMutability":"nonpayable",
	 "inputs":[{"name":"selectors","type":"bytes4[]"},{"name":"implementations","type":"address[]"}],
	 "outputs":[]},
	{"type":"function","name":"implementation","stateMutability":"view",
	 "inputs":[{"name":"selector","type":"bytes4"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"fund","stateMutability":"payable","inputs":[],"outputs":[]}
]`

// HubABI describes the functions the router answers itself
var HubABI = MustParseABI(hubABIJSON)

var fundSelector = SelectorOf("fund()")

// Call is a single call to the hub
type Call struct {
	Caller common.Address
	Input  []byte
	Value  *big.Int
	// Nonce, when set, must be exactly one more than the last nonce consumed
	// by Caller. It is consumed even if the call fails.
	Nonce *uint64
}

// Route is one routing table entry
type Route struct {
	Selector       Selector
	Implementation common.Address
	Module         string
	Signature      string
	UpdatedTime    time.Time
}

type Config struct {
	Database     *database.Database
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Owner        common.Address
	Address      common.Address
	Clock        func() time.Time
}

// Router is the selector router. Calls are serialized: each one runs to
// completion in its own database transaction before the next is admitted.
type Router struct {
	mu       sync.Mutex
	db       *database.Database
	eventBus *event.EventBus
	logger   *slog.Logger
	clock    func() time.Time
	owner    common.Address
	address  common.Address
	modules  map[common.Address]Module
	hub      *hubModule
	metrics  *routerMetrics
	tracer   trace.Tracer
}

func New(cfg Config) (*Router, error) {
	if cfg.Database == nil {
		return nil, errors.New("router: database is required")
	}
	if cfg.Address == (common.Address{}) {
		return nil, errors.New("router: address is required")
	}
	r := &Router{
		db:       cfg.Database,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		owner:    cfg.Owner,
		address:  cfg.Address,
		modules:  make(map[common.Address]Module),
		tracer:   otel.Tracer("github.com/blinklabs-io/arbiter/router"),
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r.logger = r.logger.With("component", "router")
	if r.clock == nil {
		r.clock = time.Now
	}
	if cfg.PromRegistry != nil {
		r.metrics = newRouterMetrics(cfg.PromRegistry)
	}
	r.hub = &hubModule{router: r}
	return r, nil
}

// Address returns the hub address that callers see
func (r *Router) Address() common.Address {
	return r.address
}

func (r *Router) Owner() common.Address {
	return r.owner
}

// Deploy makes a module reachable at addr. Routing entries pointing at addr
// start resolving once it is deployed.
func (r *Router) Deploy(addr common.Address, module Module) error {
	if addr == (common.Address{}) || addr == r.address {
		return fmt.Errorf("%w: %s", ErrInvalidModule, addr)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[addr]; ok {
		return fmt.Errorf("%w: %s", ErrModuleExists, addr)
	}
	r.modules[addr] = module
	if r.metrics != nil {
		r.metrics.modules.Set(float64(len(r.modules)))
	}
	r.logger.Info(
		"deployed module",
		"module", module.Name(),
		"address", addr.Hex(),
	)
	return nil
}

// Module returns the module deployed at addr
func (r *Router) Module(addr common.Address) (Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[addr]
	return m, ok
}

// SetImplementations registers or overwrites routing entries on behalf of
// caller, which must be the owner
func (r *Router) SetImplementations(
	ctx context.Context,
	caller common.Address,
	selectors []Selector,
	implementations []common.Address,
) error {
	raw := make([][4]byte, len(selectors))
	for i, sel := range selectors {
		raw[i] = sel
	}
	input, err := HubABI.Pack("setImplementations", raw, implementations)
	if err != nil {
		return err
	}
	_, err = r.Dispatch(ctx, Call{Caller: caller, Input: input})
	return err
}

// Implementation returns the module address registered for sel
func (r *Router) Implementation(sel Selector) (common.Address, error) {
	entry, err := r.db.GetRoutingEntry(sel[:], nil)
	if err != nil {
		if errors.Is(err, models.ErrRoutingEntryNotFound) {
			return common.Address{}, fmt.Errorf("%w: %s", ErrImplementationNotSet, sel)
		}
		return common.Address{}, err
	}
	if entry.Implementation.Common() == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrImplementationNotSet, sel)
	}
	return entry.Implementation.Common(), nil
}

// Routes returns the routing table ordered by selector
func (r *Router) Routes() ([]Route, error) {
	entries, err := r.db.GetRoutingEntries(nil)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Route, 0, len(entries))
	for _, entry := range entries {
		route := Route{
			Implementation: entry.Implementation.Common(),
			UpdatedTime:    time.Unix(entry.UpdatedTime, 0).UTC(),
		}
		copy(route.Selector[:], entry.Selector)
		if m, ok := r.modules[route.Implementation]; ok {
			route.Module = m.Name()
			if method, err := m.ABI().MethodById(entry.Selector); err == nil {
				route.Signature = method.Sig
			}
		}
		ret = append(ret, route)
	}
	return ret, nil
}

// Dispatch runs a state-changing call. Any error rolls back every write the
// call made and is returned unchanged.
func (r *Router) Dispatch(ctx context.Context, call Call) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execute(ctx, call, false)
}

// StaticCall runs a call against current state and discards its writes
func (r *Router) StaticCall(ctx context.Context, call Call) ([]byte, error) {
	if call.Value != nil && call.Value.Sign() != 0 {
		return nil, ErrStaticCallValue
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execute(ctx, call, true)
}

func (r *Router) execute(ctx context.Context, call Call, static bool) ([]byte, error) {
	kind := "dispatch"
	if static {
		kind = "static"
	}
	ctx, span := r.tracer.Start(ctx, "router."+kind)
	defer span.End()
	start := time.Now()
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	if call.Nonce != nil && !static {
		if err := r.consumeNonce(call.Caller, *call.Nonce); err != nil {
			return nil, err
		}
	}
	frame := &Frame{
		ctx:    ctx,
		DB:     r.db,
		Hub:    r.address,
		Caller: call.Caller,
		Value:  new(big.Int).Set(value),
		Now:    r.clock(),
		Static: static,
		router: r,
	}
	var ret []byte
	methodName := "unknown"
	run := func(txn *database.Txn) error {
		frame.Txn = txn
		if frame.Value.Sign() > 0 {
			if err := r.db.AddBalance(types.Address(r.address), frame.Value, txn); err != nil {
				return fmt.Errorf("credit call value: %w", err)
			}
			frame.Emit(TreasuryFundedEventType, TreasuryFundedEvent{
				From:   frame.Caller,
				Amount: new(big.Int).Set(frame.Value),
			})
		}
		var err error
		ret, methodName, err = r.route(frame, call.Input)
		return err
	}
	var err error
	if static {
		err = func() error {
			txn := database.NewTxn(r.db, false)
			defer txn.Release()
			return run(txn)
		}()
	} else {
		err = database.NewTxn(r.db, true).Do(run)
	}
	span.SetAttributes(
		attribute.String("method", methodName),
		attribute.String("caller", call.Caller.Hex()),
	)
	if r.metrics != nil {
		result := "ok"
		if err != nil {
			result = errs.KindOf(err).String()
		}
		r.metrics.calls.WithLabelValues(methodName, kind, result).Inc()
		r.metrics.callDuration.WithLabelValues(kind).
			Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug(
			"call failed",
			"method", methodName,
			"caller", call.Caller.Hex(),
			"static", static,
			"error", err,
		)
		return nil, err
	}
	if !static && r.eventBus != nil {
		for _, evt := range frame.events {
			r.eventBus.Publish(evt.Type, evt)
		}
	}
	return ret, nil
}

func (r *Router) consumeNonce(caller common.Address, nonce uint64) error {
	return r.db.Transaction(true).Do(func(txn *database.Txn) error {
		stored, err := r.db.GetAccountNonce(types.Address(caller), txn)
		if err != nil {
			return err
		}
		if nonce != stored+1 {
			return fmt.Errorf(
				"%w: expected %d, got %d",
				ErrInvalidNonce,
				stored+1,
				nonce,
			)
		}
		return r.db.SetAccountNonce(types.Address(caller), nonce, txn)
	})
}

// route decodes input and hands it to the module that implements its selector
func (r *Router) route(frame *Frame, input []byte) ([]byte, string, error) {
	// A bare value transfer is a call to fund()
	if len(input) == 0 {
		input = fundSelector.Bytes()
	}
	if len(input) < 4 {
		return nil, "unknown", fmt.Errorf("%w: %d bytes", ErrInvalidCallData, len(input))
	}
	var sel Selector
	copy(sel[:], input[:4])
	module, err := r.resolve(sel, frame.Txn)
	if err != nil {
		return nil, "unknown", err
	}
	method, err := module.ABI().MethodById(sel[:])
	if err != nil {
		return nil, "unknown", fmt.Errorf(
			"%w: %s not implemented by %s",
			ErrImplementationNotSet,
			sel,
			module.Name(),
		)
	}
	if frame.Value.Sign() > 0 && !method.IsPayable() {
		return nil, method.Name, fmt.Errorf("%w: %s", ErrNotPayable, method.Sig)
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, method.Name, fmt.Errorf("%w: %s: %w", ErrInvalidCallData, method.Sig, err)
	}
	results, err := module.Handle(frame, method, args)
	if err != nil {
		return nil, method.Name, err
	}
	ret, err := method.Outputs.Pack(results...)
	if err != nil {
		return nil, method.Name, fmt.Errorf("pack %s outputs: %w", method.Sig, err)
	}
	return ret, method.Name, nil
}

func (r *Router) resolve(sel Selector, txn *database.Txn) (Module, error) {
	if _, err := HubABI.MethodById(sel[:]); err == nil {
		return r.hub, nil
	}
	impl, err := r.lookup(sel, txn)
	if err != nil {
		return nil, err
	}
	if impl == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrImplementationNotSet, sel)
	}
	module, ok := r.modules[impl]
	if !ok {
		return nil, fmt.Errorf(
			"%w: %s routes to %s which has no module",
			ErrImplementationNotSet,
			sel,
			impl,
		)
	}
	return module, nil
}

// lookup returns the zero address for an unregistered selector
func (r *Router) lookup(sel Selector, txn *database.Txn) (common.Address, error) {
	entry, err := r.db.GetRoutingEntry(sel[:], txn)
	if err != nil {
		if errors.Is(err, models.ErrRoutingEntryNotFound) {
			return common.Address{}, nil
		}
		return common.Address{}, err
	}
	return entry.Implementation.Common(), nil
}

// hubModule answers the functions the router implements itself
type hubModule struct {
	router *Router
}

func (h *hubModule) Name() string {
	return "hub"
}

func (h *hubModule) ABI() *abi.ABI {
	return HubABI
}

func (h *hubModule) Handle(frame *Frame, method *abi.Method, args []any) ([]any, error) {
	switch method.Name {
	case "setImplementations":
		selectors, _ := args[0].([][4]byte)
		implementations, _ := args[1].([]common.Address)
		return nil, h.setImplementations(frame, selectors, implementations)
	case "implementation":
		sel, _ := args[0].([4]byte)
		impl, err := h.router.lookup(sel, frame.Txn)
		if err != nil {
			return nil, err
		}
		return []any{impl}, nil
	case "owner":
		return []any{h.router.owner}, nil
	case "fund":
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrImplementationNotSet, method.Sig)
}

func (h *hubModule) setImplementations(
	frame *Frame,
	selectors [][4]byte,
	implementations []common.Address,
) error {
	if frame.Caller != h.router.owner {
		return ErrNotOwner
	}
	if len(selectors) != len(implementations) {
		return fmt.Errorf(
			"%w: %d selectors, %d implementations",
			ErrLengthMismatch,
			len(selectors),
			len(implementations),
		)
	}
	entries := make([]models.RoutingEntry, 0, len(selectors))
	evt := ImplementationsSetEvent{
		Selectors:       make([]Selector, 0, len(selectors)),
		Implementations: make([]common.Address, 0, len(selectors)),
	}
	// Later duplicates win, matching sequential assignment
	index := make(map[Selector]int, len(selectors))
	for i, raw := range selectors {
		sel := Selector(raw)
		if _, err := HubABI.MethodById(sel[:]); err == nil {
			return fmt.Errorf("%w: %s", ErrReservedSelector, sel)
		}
		entry := models.RoutingEntry{
			Selector:       sel.Bytes(),
			Implementation: types.Address(implementations[i]),
			UpdatedTime:    frame.Now.Unix(),
		}
		if pos, ok := index[sel]; ok {
			entries[pos] = entry
			evt.Implementations[pos] = implementations[i]
			continue
		}
		index[sel] = len(entries)
		entries = append(entries, entry)
		evt.Selectors = append(evt.Selectors, sel)
		evt.Implementations = append(evt.Implementations, implementations[i])
	}
	if err := frame.DB.SetRoutingEntries(entries, frame.Txn); err != nil {
		return fmt.Errorf("set routing entries: %w", err)
	}
	frame.Emit(ImplementationsSetEventType, evt)
	h.router.logger.Info(
		"routing entries updated",
		"count", len(entries),
	)
	return nil
}
