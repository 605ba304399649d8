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

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/meshcast/pkg/kv"
	"github.com/carverauto/meshcast/pkg/logger"
)

// OpenRegistry opens the connection registry bucket named in cfg.
func OpenRegistry(ctx context.Context, js jetstream.JetStream, cfg *Config) (*KVRegistry, error) {
	store, err := kv.NewNatsStore(ctx, js, cfg.RegistryBucket, cfg.RegistryTTL.Or(DefaultRegistryTTL))
	if err != nil {
		return nil, err
	}

	return NewKVRegistry(store), nil
}

// NewNotifierFromConfig wires a Notifier over the JetStream registry and alias
// buckets. In drop-all mode no bucket is opened.
func NewNotifierFromConfig(
	ctx context.Context, js jetstream.JetStream, cfg *Config, transport Transport, log logger.Logger,
) (*Notifier, error) {
	if cfg.DropAll {
		log.Info().Msg("Fan-out disabled, events will be dropped")

		return NewNotifier(nil, nil, transport, log, WithDropAll(true)), nil
	}

	registry, err := OpenRegistry(ctx, js, cfg)
	if err != nil {
		return nil, err
	}

	aliasStore, err := kv.NewNatsStore(ctx, js, cfg.AliasBucket, 0)
	if err != nil {
		return nil, err
	}

	cache := NewCache(registry, log, WithFreshness(cfg.Freshness.Or(DefaultFreshness)))

	return NewNotifier(cache, registry, transport, log,
		WithConcurrency(cfg.Concurrency),
		WithAliasResolver(NewKVAliasResolver(aliasStore)),
	), nil
}
