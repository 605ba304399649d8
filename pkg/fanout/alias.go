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
	"fmt"
	"strings"
	"sync"

	"github.com/carverauto/meshcast/pkg/kv"
)

const DefaultAliasBucket = "device-aliases"

type aliasEntry struct {
	alias string
	found bool
}

// KVAliasResolver reads device aliases from a KV bucket keyed by device id.
// Results, including misses, are memoized for the life of the resolver.
type KVAliasResolver struct {
	store kv.KVStore

	mu   sync.Mutex
	memo map[string]aliasEntry
}

func NewKVAliasResolver(store kv.KVStore) *KVAliasResolver {
	return &KVAliasResolver{store: store, memo: make(map[string]aliasEntry)}
}

func (r *KVAliasResolver) Alias(ctx context.Context, deviceID string) (string, bool, error) {
	r.mu.Lock()
	entry, ok := r.memo[deviceID]
	r.mu.Unlock()

	if ok {
		return entry.alias, entry.found, nil
	}

	value, found, err := r.store.Get(ctx, deviceID)
	if err != nil {
		return "", false, fmt.Errorf("failed to look up alias for %s: %w", deviceID, err)
	}

	entry = aliasEntry{alias: strings.TrimSpace(string(value)), found: found}
	if entry.alias == "" {
		entry.found = false
	}

	r.mu.Lock()
	r.memo[deviceID] = entry
	r.mu.Unlock()

	return entry.alias, entry.found, nil
}

var _ AliasResolver = (*KVAliasResolver)(nil)
