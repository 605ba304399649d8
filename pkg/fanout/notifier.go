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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/meshcast/pkg/events"
	"github.com/carverauto/meshcast/pkg/logger"
)

// DefaultConcurrency bounds parallel deliveries within one Notify call.
const DefaultConcurrency = 16

// Notifier envelopes events and pushes them to every active connection.
type Notifier struct {
	cache       *Cache
	registry    Registry
	transport   Transport
	log         logger.Logger
	aliases     AliasResolver
	dropAll     bool
	concurrency int
	tracer      trace.Tracer

	evictions sync.WaitGroup
}

type NotifierOption func(*Notifier)

// WithDropAll turns Notify into a no-op, for replay and write-only deployments.
func WithDropAll(dropAll bool) NotifierOption {
	return func(n *Notifier) {
		n.dropAll = dropAll
	}
}

func WithConcurrency(limit int) NotifierOption {
	return func(n *Notifier) {
		if limit > 0 {
			n.concurrency = limit
		}
	}
}

// WithAliasResolver decorates device events with their alias before delivery.
func WithAliasResolver(r AliasResolver) NotifierOption {
	return func(n *Notifier) {
		n.aliases = r
	}
}

func NewNotifier(cache *Cache, registry Registry, transport Transport, log logger.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		cache:       cache,
		registry:    registry,
		transport:   transport,
		log:         log,
		concurrency: DefaultConcurrency,
		tracer:      otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Notify delivers ev to every active connection. Per-recipient failures never
// abort the broadcast: gone connections are removed from the registry in the
// background and other failures are logged. The only error returned is
// events.ErrUnknownEventShape, in which case nothing is delivered.
func (n *Notifier) Notify(ctx context.Context, ev events.Event) error {
	if n.dropAll {
		return nil
	}

	eventContext, err := events.Context(ev)
	if err != nil {
		return err
	}

	ctx, span := n.tracer.Start(ctx, "fanout.notify")
	defer span.End()

	ev = n.decorate(ctx, ev)

	payload, err := events.Envelope(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "envelope failed")

		return err
	}

	ids := n.cache.GetActive(ctx)

	span.SetAttributes(
		attribute.String("context", eventContext),
		attribute.Int("recipients", len(ids)),
	)

	attrs := metric.WithAttributes(attribute.String("context", eventContext))

	var g errgroup.Group

	g.SetLimit(n.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			n.deliver(ctx, id, payload, attrs)

			return nil
		})
	}

	_ = g.Wait()

	return nil
}

// Wait blocks until background registry deletions have finished.
func (n *Notifier) Wait() {
	n.evictions.Wait()
}

func (n *Notifier) deliver(ctx context.Context, id string, payload []byte, attrs metric.AddOption) {
	err := n.transport.Send(ctx, id, payload)

	switch {
	case err == nil:
		recordOutcome(ctx, outcomeDelivered, attrs)
	case errors.Is(err, ErrGone):
		recordOutcome(ctx, outcomeGone, attrs)
		n.log.Debug().Str("connection_id", id).Msg("Connection gone, removing from registry")
		n.evict(ctx, id)
	default:
		recordOutcome(ctx, outcomeFailed, attrs)
		n.log.Warn().Err(err).Str("connection_id", id).Msg("Failed to deliver event")
	}
}

func (n *Notifier) evict(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)

	n.evictions.Go(func() {
		if err := n.registry.Delete(ctx, id); err != nil {
			n.log.Warn().Err(err).Str("connection_id", id).Msg("Failed to remove gone connection")
		}
	})
}

func (n *Notifier) decorate(ctx context.Context, ev events.Event) events.Event {
	if n.aliases == nil {
		return ev
	}

	aliaser, ok := ev.(events.DeviceAliaser)
	if !ok || aliaser.DeviceKey() == "" {
		return ev
	}

	alias, found, err := n.aliases.Alias(ctx, aliaser.DeviceKey())
	if err != nil {
		n.log.Debug().Err(err).Str("device_id", aliaser.DeviceKey()).Msg("Alias lookup failed")

		return ev
	}

	if !found {
		return ev
	}

	return aliaser.WithDeviceAlias(alias)
}
