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

package outbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/blinklabs-io/arbiter/event"
)

const (
	defaultPollInterval  = 5 * time.Second
	defaultBatchSize     = 32
	defaultMaxAttempts   = 10
	defaultOrphanAfter   = time.Minute
	defaultSubmitTimeout = 30 * time.Second
	initialRetryDelay    = 1 * time.Second
	maxRetryDelay        = 5 * time.Minute
	retryBackoffFactor   = 2
)

// Submitter hands a message to the cross-chain transport and returns a
// transport receipt. Acceptance by the transport is success; remote
// execution is not observed.
type Submitter interface {
	Submit(ctx context.Context, msg Message) (string, error)
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, msg Message) (string, error)

func (f SubmitterFunc) Submit(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}

// LogSubmitter accepts every message by logging it
type LogSubmitter struct {
	Logger *slog.Logger
}

func (l LogSubmitter) Submit(_ context.Context, msg Message) (string, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(
		"cross-chain message",
		"component", "outbox",
		"id", msg.ID,
		"proposal_id", msg.ProposalID,
		"action_index", msg.ActionIndex,
		"chain_id", msg.ChainID,
		"destination", fmt.Sprintf("0x%x", msg.Destination),
		"message", fmt.Sprintf("0x%x", msg.Payload),
	)
	return msg.ID, nil
}

type RelayerConfig struct {
	Outbox        *Outbox
	Database      *database.Database
	Submitter     Submitter
	EventBus      *event.EventBus
	Logger        *slog.Logger
	Clock         func() time.Time
	PollInterval  time.Duration
	BatchSize     int
	MaxAttempts   uint32
	OrphanAfter   time.Duration
	SubmitTimeout time.Duration
}

// Relayer drains the outbox into a Submitter
type Relayer struct {
	config  RelayerConfig
	logger  *slog.Logger
	mu      sync.Mutex
	wakeCh  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	subId   event.EventSubscriberId
	running bool
}

func NewRelayer(cfg RelayerConfig) (*Relayer, error) {
	if cfg.Outbox == nil || cfg.Database == nil {
		return nil, errors.New("relayer: outbox and database are required")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("relayer: submitter is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.OrphanAfter <= 0 {
		cfg.OrphanAfter = defaultOrphanAfter
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	return &Relayer{
		config: cfg,
		logger: cfg.Logger.With("component", "relayer"),
		wakeCh: make(chan struct{}, 1),
	}, nil
}

// Start runs the relay loop until Stop is called or ctx is done
func (r *Relayer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("relayer already running")
	}
	if r.config.EventBus != nil {
		r.subId = r.config.EventBus.SubscribeFunc(
			MessageQueuedEventType,
			func(event.Event) { r.Wake() },
		)
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.running = true
	go r.loop(ctx, r.stopCh, r.doneCh)
	r.Wake()
	return nil
}

// Stop halts the relay loop and waits for an in-flight pass to finish
func (r *Relayer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	if r.config.EventBus != nil {
		r.config.EventBus.Unsubscribe(MessageQueuedEventType, r.subId)
	}
	close(r.stopCh)
	doneCh := r.doneCh
	r.mu.Unlock()
	<-doneCh
}

// Wake schedules a relay pass without waiting for the poll interval
func (r *Relayer) Wake() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

func (r *Relayer) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wakeCh:
		}
		if _, err := r.RelayPending(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("relay pass failed", "error", err)
		}
	}
}

// RelayPending makes one pass over due messages and returns how many were
// submitted
func (r *Relayer) RelayPending(ctx context.Context) (int, error) {
	pending, err := r.config.Outbox.Select(r.config.BatchSize, r.due(r.config.Clock()))
	if err != nil {
		return 0, err
	}
	relayed := 0
	for _, msg := range pending {
		if ctx.Err() != nil {
			return relayed, ctx.Err()
		}
		ok, err := r.relay(ctx, msg)
		if err != nil {
			return relayed, err
		}
		if ok {
			relayed++
		}
	}
	return relayed, nil
}

// due reports whether relay would act on a message at now: its retry time
// has come and its proposal is either executed or past the orphan window.
// Deferred messages are skipped so they cannot fill a batch.
func (r *Relayer) due(now time.Time) func(Message) (bool, error) {
	executed := make(map[uint64]bool)
	return func(msg Message) (bool, error) {
		if msg.NextAttempt > now.UnixMilli() {
			return false, nil
		}
		done, ok := executed[msg.ProposalID]
		if !ok {
			var err error
			done, err = r.proposalExecuted(msg.ProposalID)
			if err != nil {
				return false, err
			}
			executed[msg.ProposalID] = done
		}
		return done || now.Sub(time.UnixMilli(msg.CreatedAt)) >= r.config.OrphanAfter, nil
	}
}

func (r *Relayer) relay(ctx context.Context, msg Message) (bool, error) {
	now := r.config.Clock()
	if msg.NextAttempt > now.UnixMilli() {
		return false, nil
	}
	executed, err := r.proposalExecuted(msg.ProposalID)
	if err != nil {
		return false, err
	}
	if !executed {
		// The proposal commit may still be landing
		if now.Sub(time.UnixMilli(msg.CreatedAt)) < r.config.OrphanAfter {
			return false, nil
		}
		return false, r.drop(msg, "orphaned")
	}
	submitCtx, cancel := context.WithTimeout(ctx, r.config.SubmitTimeout)
	receipt, err := r.config.Submitter.Submit(submitCtx, msg)
	cancel()
	if err != nil {
		return false, r.retry(msg, now, err)
	}
	if err := r.config.Outbox.Ack(msg.Sequence); err != nil {
		return false, fmt.Errorf("ack message %s: %w", msg.ID, err)
	}
	if m := r.config.Outbox.metrics; m != nil {
		m.relayed.Inc()
	}
	r.logger.Info(
		"relayed message",
		"id", msg.ID,
		"proposal_id", msg.ProposalID,
		"action_index", msg.ActionIndex,
		"receipt", receipt,
	)
	r.publish(MessageRelayedEventType, MessageRelayedEvent{Message: msg, Receipt: receipt})
	return true, nil
}

func (r *Relayer) proposalExecuted(id uint64) (bool, error) {
	proposal, err := r.config.Database.GetProposal(id, nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return false, nil
		}
		return false, err
	}
	return proposal.Status == models.ProposalStatusExecuted, nil
}

func (r *Relayer) retry(msg Message, now time.Time, submitErr error) error {
	if m := r.config.Outbox.metrics; m != nil {
		m.failed.Inc()
	}
	msg.Attempts++
	msg.LastError = submitErr.Error()
	if msg.Attempts >= r.config.MaxAttempts {
		return r.drop(msg, "max_attempts")
	}
	msg.NextAttempt = now.Add(RetryDelay(msg.Attempts)).UnixMilli()
	r.logger.Warn(
		"message submission failed",
		"id", msg.ID,
		"attempts", msg.Attempts,
		"error", submitErr,
	)
	return r.config.Outbox.Reschedule(msg)
}

func (r *Relayer) drop(msg Message, reason string) error {
	if err := r.config.Outbox.Ack(msg.Sequence); err != nil {
		return fmt.Errorf("drop message %s: %w", msg.ID, err)
	}
	if m := r.config.Outbox.metrics; m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
	r.logger.Warn(
		"dropped message",
		"id", msg.ID,
		"proposal_id", msg.ProposalID,
		"reason", reason,
		"last_error", msg.LastError,
	)
	r.publish(MessageDroppedEventType, MessageDroppedEvent{Message: msg, Reason: reason})
	return nil
}

func (r *Relayer) publish(eventType event.EventType, data any) {
	if r.config.EventBus == nil {
		return
	}
	r.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}

// RetryDelay is the wait before the given attempt number is retried
func RetryDelay(attempts uint32) time.Duration {
	delay := initialRetryDelay
	for i := uint32(1); i < attempts; i++ {
		delay *= retryBackoffFactor
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
