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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/meshcast/pkg/logger"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)}
}

func TestGetActiveReusesSnapshotWithinWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := NewMockRegistry(ctrl)
	clock := newFakeClock()

	registry.EXPECT().List(gomock.Any()).Return([]string{"a", "b"}, nil).Times(1)

	cache := NewCache(registry, logger.NewTestLogger(), WithClock(clock.Now))
	ctx := context.Background()

	first := cache.GetActive(ctx)

	clock.Advance(30 * time.Second)
	second := cache.GetActive(ctx)

	clock.Advance(30 * time.Second)
	third := cache.GetActive(ctx)

	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestGetActiveRefreshesAfterWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := NewMockRegistry(ctrl)
	clock := newFakeClock()

	gomock.InOrder(
		registry.EXPECT().List(gomock.Any()).Return([]string{"a"}, nil),
		registry.EXPECT().List(gomock.Any()).Return([]string{"b", "c"}, nil),
	)

	cache := NewCache(registry, logger.NewTestLogger(), WithClock(clock.Now))
	ctx := context.Background()

	assert.Equal(t, []string{"a"}, cache.GetActive(ctx))

	clock.Advance(61 * time.Second)
	assert.Equal(t, []string{"b", "c"}, cache.GetActive(ctx))
	assert.Equal(t, []string{"b", "c"}, cache.GetActive(ctx))
}

func TestGetActiveKeepsStaleSnapshotOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := NewMockRegistry(ctrl)
	clock := newFakeClock()

	gomock.InOrder(
		registry.EXPECT().List(gomock.Any()).Return([]string{"a"}, nil),
		registry.EXPECT().List(gomock.Any()).Return(nil, errors.New("bucket unavailable")),
		registry.EXPECT().List(gomock.Any()).Return([]string{"z"}, nil),
	)

	cache := NewCache(registry, logger.NewTestLogger(), WithClock(clock.Now), WithFreshness(10*time.Second))
	ctx := context.Background()

	assert.Equal(t, []string{"a"}, cache.GetActive(ctx))

	clock.Advance(11 * time.Second)
	assert.Equal(t, []string{"a"}, cache.GetActive(ctx))

	// The failed refresh did not reset the timestamp, so the next call retries.
	assert.Equal(t, []string{"z"}, cache.GetActive(ctx))
}

func TestGetActiveEmptyWhenFirstFetchFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := NewMockRegistry(ctrl)

	registry.EXPECT().List(gomock.Any()).Return(nil, errors.New("nats down"))

	cache := NewCache(registry, logger.NewTestLogger())

	assert.Empty(t, cache.GetActive(context.Background()))
}
