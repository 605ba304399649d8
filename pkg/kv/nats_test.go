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

package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/meshcast/pkg/natsutil/natstest"
)

func TestNatsStoreRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	_, js := natstest.Connect(t)

	store, err := NewNatsStore(ctx, js, "kv-test", time.Hour)
	require.NoError(t, err)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "a", []byte("1")))
	require.NoError(t, store.Put(ctx, "b", []byte("2")))

	value, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("1"), value)

	keys, err = store.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))

	keys, err = store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestNatsStoreWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	_, js := natstest.Connect(t)

	store, err := NewNatsStore(ctx, js, "kv-watch", 0)
	require.NoError(t, err)

	updates, err := store.Watch(ctx, "alias")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "alias", []byte("thingy")))

	select {
	case v := <-updates:
		assert.Equal(t, []byte("thingy"), v)
	case <-ctx.Done():
		t.Fatal("no watch update")
	}

	require.NoError(t, store.Delete(ctx, "alias"))

	select {
	case v := <-updates:
		assert.Nil(t, v)
	case <-ctx.Done():
		t.Fatal("no delete update")
	}
}
