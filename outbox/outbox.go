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

// Package outbox is the persisted queue of outbound cross-chain messages.
// Messages are enqueued inside the transaction that executes a proposal and
// drained later by a Relayer, so submission never blocks execution.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/blinklabs-io/arbiter/event"
	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	messageKeyPrefix = "xo"
	sequenceKey      = "xs"
)

const (
	MessageQueuedEventType  event.EventType = "outbox.message_queued"
	MessageRelayedEventType event.EventType = "outbox.message_relayed"
	MessageDroppedEventType event.EventType = "outbox.message_dropped"
)

var (
	ErrMessageNotFound = errors.New("outbox message not found")
	ErrEmptyPayload    = errors.New("outbox message has no payload")

	errStopIteration = errors.New("stop iteration")
)

// Message is one outbound cross-chain message
type Message struct {
	cbor.StructAsArray
	ID          string
	Sequence    uint64
	ProposalID  uint64
	ActionIndex uint32
	ChainID     uint32
	Destination []byte
	Payload     []byte
	Attempts    uint32
	NextAttempt int64
	CreatedAt   int64
	LastError   string
}

// MessageRelayedEvent is published after a message has been submitted
type MessageRelayedEvent struct {
	Message Message
	Receipt string
}

// MessageDroppedEvent is published when a message leaves the queue unsent
type MessageDroppedEvent struct {
	Message Message
	Reason  string
}

// Outbox stores messages in the blob store keyed by sequence number
type Outbox struct {
	db      *database.Database
	logger  *slog.Logger
	metrics *outboxMetrics
}

func New(
	db *database.Database,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) *Outbox {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	o := &Outbox{
		db:     db,
		logger: logger.With("component", "outbox"),
	}
	if promRegistry != nil {
		o.metrics = newOutboxMetrics(promRegistry)
	}
	return o
}

func messageKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(messageKeyPrefix), seq)
}

// Enqueue adds msg to the queue as part of txn, assigning its id, sequence
// and creation time. The message becomes visible when txn commits.
func (o *Outbox) Enqueue(txn *database.Txn, msg Message, now time.Time) (Message, error) {
	if len(msg.Payload) == 0 {
		return Message{}, ErrEmptyPayload
	}
	if txn == nil {
		return Message{}, types.ErrNilTxn
	}
	var seq uint64
	raw, err := o.db.BlobGet([]byte(sequenceKey), txn)
	switch {
	case err == nil:
		if len(raw) != 8 {
			return Message{}, fmt.Errorf("corrupt outbox sequence of %d bytes", len(raw))
		}
		seq = binary.BigEndian.Uint64(raw)
	case errors.Is(err, types.ErrBlobKeyNotFound):
	default:
		return Message{}, fmt.Errorf("read outbox sequence: %w", err)
	}
	seq++
	msg.ID = uuid.NewString()
	msg.Sequence = seq
	msg.CreatedAt = now.UnixMilli()
	msg.Attempts = 0
	msg.NextAttempt = 0
	msg.Destination = slices.Clone(msg.Destination)
	msg.Payload = slices.Clone(msg.Payload)
	if err := o.put(txn, msg); err != nil {
		return Message{}, err
	}
	if err := o.db.BlobSet(
		[]byte(sequenceKey),
		binary.BigEndian.AppendUint64(nil, seq),
		txn,
	); err != nil {
		return Message{}, fmt.Errorf("write outbox sequence: %w", err)
	}
	if o.metrics != nil {
		o.metrics.enqueued.Inc()
	}
	o.logger.Debug(
		"enqueued message",
		"id", msg.ID,
		"sequence", seq,
		"proposal_id", msg.ProposalID,
		"chain_id", msg.ChainID,
	)
	return msg, nil
}

func (o *Outbox) put(txn *database.Txn, msg Message) error {
	data, err := cbor.Encode(&msg)
	if err != nil {
		return fmt.Errorf("encode outbox message: %w", err)
	}
	if err := o.db.BlobSet(messageKey(msg.Sequence), data, txn); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}

// Get returns the message with sequence seq
func (o *Outbox) Get(seq uint64) (Message, error) {
	data, err := o.db.BlobGet(messageKey(seq), nil)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return Message{}, ErrMessageNotFound
		}
		return Message{}, err
	}
	return decodeMessage(data)
}

func decodeMessage(data []byte) (Message, error) {
	var msg Message
	if _, err := cbor.Decode(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode outbox message: %w", err)
	}
	return msg, nil
}

// Pending returns up to limit queued messages in sequence order. A limit of
// zero or less returns all of them.
func (o *Outbox) Pending(limit int) ([]Message, error) {
	ret, err := o.Select(limit, nil)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil && limit <= 0 {
		o.metrics.pending.Set(float64(len(ret)))
	}
	return ret, nil
}

// Select returns up to limit queued messages in sequence order for which
// keep reports true. Skipped messages do not count toward limit. A nil keep
// selects every message.
func (o *Outbox) Select(limit int, keep func(Message) (bool, error)) ([]Message, error) {
	var ret []Message
	err := o.db.BlobIterate(
		[]byte(messageKeyPrefix),
		func(_ []byte, val []byte) error {
			msg, err := decodeMessage(val)
			if err != nil {
				return err
			}
			if keep != nil {
				ok, err := keep(msg)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			ret = append(ret, msg)
			if limit > 0 && len(ret) >= limit {
				return errStopIteration
			}
			return nil
		},
		nil,
	)
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	return ret, nil
}

// Ack removes a message from the queue
func (o *Outbox) Ack(seq uint64) error {
	txn := database.NewBlobOnlyTxn(o.db, true)
	return txn.Do(func(txn *database.Txn) error {
		return o.db.BlobDelete(messageKey(seq), txn)
	})
}

// Reschedule persists the retry state of a message
func (o *Outbox) Reschedule(msg Message) error {
	txn := database.NewBlobOnlyTxn(o.db, true)
	return txn.Do(func(txn *database.Txn) error {
		if _, err := o.db.BlobGet(messageKey(msg.Sequence), txn); err != nil {
			if errors.Is(err, types.ErrBlobKeyNotFound) {
				return ErrMessageNotFound
			}
			return err
		}
		return o.put(txn, msg)
	})
}
