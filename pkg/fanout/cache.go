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
	"sync/atomic"
	"time"

	"github.com/carverauto/meshcast/pkg/logger"
)

// DefaultFreshness is the maximum age of a listener snapshot before it is refetched.
const DefaultFreshness = 60 * time.Second

type snapshot struct {
	ids       []string
	fetchedAt time.Time
}

// Cache holds a time-stamped snapshot of the registry listing. Snapshots are
// replaced wholesale and never patched.
type Cache struct {
	registry  Registry
	log       logger.Logger
	freshness time.Duration
	now       func() time.Time
	current   atomic.Pointer[snapshot]
}

type CacheOption func(*Cache)

func WithFreshness(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(registry Registry, log logger.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		registry:  registry,
		log:       log,
		freshness: DefaultFreshness,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetActive returns the current listener identifiers, refreshing the snapshot
// when it is older than the freshness window. A failed refresh keeps the stale
// snapshot, which may be empty. The returned slice must not be modified.
func (c *Cache) GetActive(ctx context.Context) []string {
	now := c.now()

	snap := c.current.Load()
	if snap != nil && now.Sub(snap.fetchedAt) <= c.freshness {
		return snap.ids
	}

	ids, err := c.registry.List(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to refresh active connections, using stale snapshot")

		if snap == nil {
			return nil
		}

		return snap.ids
	}

	c.current.Store(&snapshot{ids: ids, fetchedAt: now})

	c.log.Debug().Int("connections", len(ids)).Msg("Refreshed active connections")

	return ids
}
