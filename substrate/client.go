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

// Package substrate talks JSON-RPC over websocket to substrate nodes and
// relay bridges
package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultCallTimeout      = 30 * time.Second
)

var ErrClientClosed = errors.New("substrate client closed")

// RPCError is an error object returned by the remote node
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Client is a JSON-RPC client over a single websocket. It connects lazily
// and reconnects on the next call after the connection drops.
type Client struct {
	url         string
	logger      *slog.Logger
	dialer      websocket.Dialer
	callTimeout time.Duration

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan response
	nextID  uint64
	closed  bool
	readWg  sync.WaitGroup
}

type ClientOptionFunc func(*Client)

func WithLogger(logger *slog.Logger) ClientOptionFunc {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCallTimeout bounds calls whose context has no deadline
func WithCallTimeout(timeout time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.callTimeout = timeout
	}
}

func NewClient(url string, opts ...ClientOptionFunc) *Client {
	c := &Client{
		url:         url,
		dialer:      websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		callTimeout: defaultCallTimeout,
		pending:     make(map[uint64]chan response),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "substrate", "url", url)
	return c
}

// Dial returns a connected client
func Dial(ctx context.Context, url string, opts ...ClientOptionFunc) (*Client, error) {
	c := NewClient(url, opts...)
	if _, err := c.connection(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// URL returns the endpoint the client talks to
func (c *Client) URL() string {
	return c.url
}

func (c *Client) connection(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	c.readWg.Add(1)
	go c.readLoop(conn)
	c.logger.Debug("connected")
	return conn, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.readWg.Done()
	for {
		var resp response
		if err := conn.ReadJSON(&resp); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				c.logger.Debug("discarding malformed message", "error", err)
				continue
			}
			c.dropConnection(conn, err)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// dropConnection fails every in-flight call on conn
func (c *Client) dropConnection(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	_ = conn.Close()
	for id, ch := range c.pending {
		ch <- response{ID: id, Error: &RPCError{Code: -1, Message: "connection lost: " + err.Error()}}
		delete(c.pending, id)
	}
	if !c.closed {
		c.logger.Debug("connection lost", "error", err)
	}
}

// Call invokes method and decodes its result into result, which may be nil
func (c *Client) Call(ctx context.Context, method string, result any, params ...any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	conn, err := c.connection(ctx)
	if err != nil {
		return err
	}
	if params == nil {
		params = []any{}
	}
	respCh := make(chan response, 1)
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = respCh
	c.mu.Unlock()
	req := request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	err = conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		c.dropConnection(conn, err)
		return fmt.Errorf("send %s: %w", method, err)
	}
	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close closes the connection. Calls after Close fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.readWg.Wait()
	return err
}
