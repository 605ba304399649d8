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

//go:generate mockgen -destination=mock_kv.go -package=kv github.com/carverauto/meshcast/pkg/kv KVStore

// Package kv provides the JetStream key-value stores backing the listener registry
// and device alias lookups.
package kv

import (
	"context"
)

// KVStore is a bucket-scoped key-value store. Expiry is a bucket property.
type KVStore interface {
	// Get returns the value, whether the key was found, and any backend error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	Put(ctx context.Context, key string, value []byte) error

	// Delete is idempotent; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ListKeys returns every live key in the bucket. An empty bucket yields an empty slice.
	ListKeys(ctx context.Context) ([]string, error)

	// Watch streams values written under key (nil on delete) until ctx is done.
	Watch(ctx context.Context, key string) (<-chan []byte, error)
}
