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
	"fmt"
	"time"

	"github.com/carverauto/meshcast/pkg/kv"
)

const (
	DefaultRegistryBucket = "websocket-connections"
	DefaultRegistryTTL    = time.Hour
)

type connectionRecord struct {
	ConnectionID string    `json:"connectionId"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastSeen     time.Time `json:"lastSeen"`
}

// KVRegistry stores one entry per connection in a KV bucket. Entries that are
// never deleted expire with the bucket TTL; Touch rewrites the entry to keep it.
type KVRegistry struct {
	store kv.KVStore
	now   func() time.Time
}

func NewKVRegistry(store kv.KVStore) *KVRegistry {
	return &KVRegistry{store: store, now: time.Now}
}

func (r *KVRegistry) List(ctx context.Context) ([]string, error) {
	ids, err := r.store.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	return ids, nil
}

func (r *KVRegistry) Put(ctx context.Context, id string) error {
	now := r.now().UTC()

	return r.write(ctx, connectionRecord{ConnectionID: id, ConnectedAt: now, LastSeen: now})
}

func (r *KVRegistry) Touch(ctx context.Context, id string) error {
	value, found, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read connection %s: %w", id, err)
	}

	if !found {
		return r.Put(ctx, id)
	}

	var rec connectionRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return r.Put(ctx, id)
	}

	rec.LastSeen = r.now().UTC()

	return r.write(ctx, rec)
}

func (r *KVRegistry) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete connection %s: %w", id, err)
	}

	return nil
}

func (r *KVRegistry) write(ctx context.Context, rec connectionRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if err := r.store.Put(ctx, rec.ConnectionID, value); err != nil {
		return fmt.Errorf("failed to store connection %s: %w", rec.ConnectionID, err)
	}

	return nil
}

var _ Registry = (*KVRegistry)(nil)
