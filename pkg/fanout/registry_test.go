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

package fanout

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/meshcast/pkg/kv"
	"github.com/carverauto/meshcast/pkg/natsutil/natstest"
)

func TestKVRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	_, js := natstest.Connect(t)

	store, err := kv.NewNatsStore(ctx, js, DefaultRegistryBucket, DefaultRegistryTTL)
	require.NoError(t, err)

	registry := NewKVRegistry(store)
	clock := newFakeClock()
	registry.now = clock.Now

	ids, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, registry.Put(ctx, "c1"))
	require.NoError(t, registry.Put(ctx, "c2"))

	clock.Advance(5 * time.Minute)
	require.NoError(t, registry.Touch(ctx, "c1"))

	raw, found, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)

	var rec connectionRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "c1", rec.ConnectionID)
	assert.Equal(t, 5*time.Minute, rec.LastSeen.Sub(rec.ConnectedAt))

	ids, err = registry.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)

	require.NoError(t, registry.Delete(ctx, "c2"))
	require.NoError(t, registry.Delete(ctx, "c2"))

	ids, err = registry.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestKVRegistryTouchUnknownRegisters(t *testing.T) {
	ctx := context.Background()
	_, js := natstest.Connect(t)

	store, err := kv.NewNatsStore(ctx, js, "touch-test", 0)
	require.NoError(t, err)

	registry := NewKVRegistry(store)
	require.NoError(t, registry.Touch(ctx, "late"))

	ids, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, ids)
}
