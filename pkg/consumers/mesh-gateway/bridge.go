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

package meshgateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/carverauto/meshcast/pkg/events"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/wirepas"
)

// EventNotifier is the fan-out surface used by the bridge.
type EventNotifier interface {
	Notify(ctx context.Context, ev events.Event) error
	Wait()
}

// Bridge turns gateway packet events into mesh node events. Payloads holding
// only a counter are kept per node and gateway, latest wins, until the next
// flush; everything else is notified immediately.
type Bridge struct {
	decoder  *wirepas.Decoder
	notifier EventNotifier
	logger   logger.Logger
	pace     time.Duration

	mu       sync.Mutex
	counters map[string]events.MeshNodeEvent
}

func NewBridge(notifier EventNotifier, pace time.Duration, log logger.Logger, opts ...wirepas.DecoderOption) *Bridge {
	return &Bridge{
		decoder:  wirepas.NewDecoder(log, opts...),
		notifier: notifier,
		logger:   log,
		pace:     pace,
		counters: make(map[string]events.MeshNodeEvent),
	}
}

// HandleMessage processes one MQTT message body from gw-event/received_data.
func (b *Bridge) HandleMessage(ctx context.Context, body []byte) error {
	pkt, ok, err := wirepas.ParsePacketReceived(body)
	if err != nil {
		return err
	}

	if !ok {
		return nil
	}

	if pkt.SourceEndpoint != wirepas.DataEndpoint || pkt.DestinationEndpoint != wirepas.DataEndpoint {
		return nil
	}

	if len(pkt.Payload) == 0 {
		return nil
	}

	decoded, err := b.decoder.Decode(pkt.Payload)
	if err != nil {
		if errors.Is(err, wirepas.ErrTruncated) {
			recordTruncated(ctx, pkt.GatewayID)
		}

		return fmt.Errorf("node %d via %s: %w", pkt.SourceAddress, pkt.GatewayID, err)
	}

	if len(decoded) == 0 {
		return nil
	}

	ev := meshNodeEvent(pkt, decoded)

	if wirepas.CounterOnly(decoded) {
		b.mu.Lock()
		b.counters[counterKey(pkt)] = ev
		b.mu.Unlock()

		return nil
	}

	return b.notifier.Notify(ctx, ev)
}

// PendingCounters is the number of buffered counter events.
func (b *Bridge) PendingCounters() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.counters)
}

// FlushCounters notifies every buffered counter event, paced so a burst of
// nodes does not hit viewers at once. It returns the number notified.
func (b *Bridge) FlushCounters(ctx context.Context) int {
	b.mu.Lock()
	pending := b.counters
	b.counters = make(map[string]events.MeshNodeEvent)
	b.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	limiter := rate.NewLimiter(rate.Every(b.pace), 1)

	keys := make([]string, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	sent := 0

	for _, k := range keys {
		if err := limiter.Wait(ctx); err != nil {
			b.logger.Warn().Err(err).Int("dropped", len(keys)-sent).Msg("Counter flush interrupted")

			break
		}

		if err := b.notifier.Notify(ctx, pending[k]); err != nil {
			b.logger.Error().Err(err).Str("key", k).Msg("Failed to notify counter event")
		}

		sent++
	}

	b.logger.Debug().Int("events", sent).Msg("Flushed counter events")

	return sent
}

func counterKey(pkt wirepas.PacketReceived) string {
	return fmt.Sprintf("%d:%s", pkt.SourceAddress, pkt.GatewayID)
}

func meshNodeEvent(pkt wirepas.PacketReceived, decoded []wirepas.Event) events.MeshNodeEvent {
	meta := events.MeshMeta{
		Node:         pkt.SourceAddress,
		Gateway:      pkt.GatewayID,
		RxTime:       pkt.RxTime,
		TravelTimeMs: pkt.TravelTimeMs,
	}

	if pkt.HasHopCount {
		hops := pkt.HopCount
		meta.Hops = &hops
	}

	return events.MeshNodeEvent{
		MeshNodeEvent: events.MeshNode{
			Meta:    meta,
			Message: wirepas.Payload(decoded),
		},
	}
}
