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

package wsgateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/logger"
)

func startHub(t *testing.T, registry fanout.Registry) (*Hub, string) {
	t.Helper()

	hub := NewHub(registry, logger.NewTestLogger())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) (*websocket.Conn, string) {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello helloMessage
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "hello", hello.Type)
	require.NotEmpty(t, hello.ConnectionID)

	return conn, hello.ConnectionID
}

func TestHubConnectionLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := fanout.NewMockRegistry(ctrl)

	registered := make(chan string, 1)
	touched := make(chan string, 1)
	deleted := make(chan string, 1)

	registry.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, id string) error {
		registered <- id

		return nil
	})
	registry.EXPECT().Touch(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, id string) error {
		touched <- id

		return nil
	})
	registry.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, id string) error {
		deleted <- id

		return nil
	})

	hub, url := startHub(t, registry)
	conn, id := dial(t, url)

	assert.Equal(t, id, <-registered)
	assert.True(t, hub.Owns(id))

	require.NoError(t, hub.Send(context.Background(), id, []byte(`{"@context":"x"}`)))

	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"@context":"x"}`, string(frame))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"message":"hi"}`)))

	select {
	case got := <-touched:
		assert.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatal("connection was not touched")
	}

	require.NoError(t, conn.Close())

	select {
	case got := <-deleted:
		assert.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatal("connection was not removed from the registry")
	}

	require.Eventually(t, func() bool { return !hub.Owns(id) }, 5*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, hub.Send(context.Background(), id, []byte(`{}`)), fanout.ErrGone)
}

func TestHubSendUnknownIsGone(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := NewHub(fanout.NewMockRegistry(ctrl), logger.NewTestLogger())

	require.ErrorIs(t, hub.Send(context.Background(), "missing", []byte(`{}`)), fanout.ErrGone)
}

func TestHubRejectsWhenRegistryFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := fanout.NewMockRegistry(ctrl)

	registry.EXPECT().Put(gomock.Any(), gomock.Any()).Return(assert.AnError)

	hub, url := startHub(t, registry)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, hub.Len())
}

func TestHubShutdownUnregistersConnections(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := fanout.NewMockRegistry(ctrl)

	registry.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	registry.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	hub, url := startHub(t, registry)
	_, _ = dial(t, url)
	_, _ = dial(t, url)

	require.Equal(t, 2, hub.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, hub.Shutdown(ctx))
	assert.Equal(t, 0, hub.Len())
}

func TestHelloFrameShape(t *testing.T) {
	b, err := json.Marshal(helloMessage{Type: "hello", ConnectionID: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"hello","connectionId":"abc"}`, string(b))
}
