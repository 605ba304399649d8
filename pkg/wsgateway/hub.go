/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package wsgateway holds viewer websocket connections and delivers fan-out
// payloads to them.
package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 32

	DefaultPingInterval  = 30 * time.Second
	DefaultTouchInterval = 5 * time.Minute
)

// ErrSendBufferFull is returned when a viewer is not draining its socket.
var ErrSendBufferFull = errors.New("send buffer full")

type helloMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	lastTouch time.Time
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub accepts viewer websockets and implements fanout.Transport for the
// connections it holds.
type Hub struct {
	registry      fanout.Registry
	log           logger.Logger
	upgrader      websocket.Upgrader
	pingInterval  time.Duration
	touchInterval time.Duration
	newID         func() string

	mu      sync.RWMutex
	clients map[string]*client
	active  sync.WaitGroup
}

type HubOption func(*Hub)

func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithAllowedOrigins restricts upgrades to the listed Origin values. An empty
// list accepts every origin.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}

		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}

		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			_, ok := allowed[r.Header.Get("Origin")]

			return ok
		}
	}
}

func NewHub(registry fanout.Registry, log logger.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		registry:      registry,
		log:           log,
		pingInterval:  DefaultPingInterval,
		touchInterval: DefaultTouchInterval,
		newID:         uuid.NewString,
		clients:       make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to upgrade to WebSocket")

		return
	}

	c := &client{
		id:   h.newID(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	ctx := context.WithoutCancel(r.Context())

	if err := h.registry.Put(ctx, c.id); err != nil {
		h.log.Error().Err(err).Str("connection_id", c.id).Msg("Failed to register connection")
		_ = conn.Close()

		return
	}

	c.lastTouch = time.Now()

	h.active.Add(1)
	defer h.active.Done()

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.log.Info().Str("connection_id", c.id).Str("remote_addr", r.RemoteAddr).Msg("Viewer connected")

	hello, _ := json.Marshal(helloMessage{Type: "hello", ConnectionID: c.id})
	c.send <- hello

	go h.writePump(c)

	h.readPump(ctx, c)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()

	if err := h.registry.Delete(ctx, c.id); err != nil {
		h.log.Warn().Err(err).Str("connection_id", c.id).Msg("Failed to unregister connection")
	}

	h.log.Info().Str("connection_id", c.id).Msg("Viewer disconnected")
}

// Send queues payload for connection id. Unknown or closed connections are
// reported as fanout.ErrGone.
func (h *Hub) Send(_ context.Context, id string, payload []byte) error {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", fanout.ErrGone, id)
	}

	select {
	case <-c.done:
		return fmt.Errorf("%w: %s", fanout.ErrGone, id)
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return fmt.Errorf("%w: %s", fanout.ErrGone, id)
	default:
		return fmt.Errorf("%w: %s", ErrSendBufferFull, id)
	}
}

// Owns reports whether the connection is held by this hub.
func (h *Hub) Owns(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[id]

	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown drops every connection and waits until each one has been
// unregistered, or ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		c.close()
	}

	done := make(chan struct{})

	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	pongWait := 2 * h.pingInterval

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	c.conn.SetPongHandler(func(string) error {
		h.touch(ctx, c, false)

		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("connection_id", c.id).Msg("Viewer read failed")
			}

			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.touch(ctx, c, true)
	}
}

func (h *Hub) touch(ctx context.Context, c *client, force bool) {
	c.mu.Lock()
	if !force && time.Since(c.lastTouch) < h.touchInterval {
		c.mu.Unlock()

		return
	}

	c.lastTouch = time.Now()
	c.mu.Unlock()

	if err := h.registry.Touch(ctx, c.id); err != nil {
		h.log.Warn().Err(err).Str("connection_id", c.id).Msg("Failed to update last seen")
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Debug().Err(err).Str("connection_id", c.id).Msg("Viewer write failed")
				c.close()

				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()

				return
			}
		}
	}
}

var _ fanout.Transport = (*Hub)(nil)
