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

package nrplussink

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/meshcast/pkg/events"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/nrplus"
)

// EventNotifier is the fan-out surface used by the processor.
type EventNotifier interface {
	Notify(ctx context.Context, ev events.Event) error
	Wait()
}

// SinkMessage is the JSON body published by the sink bridge. Message is the
// base64 encoding of one or more "<counter>\t<payload>" lines.
type SinkMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is one fetched message, detached from JetStream.
type Envelope struct {
	Subject string
	Data    []byte
}

type deviceBatch struct {
	lines      []nrplus.SequencedLine
	receivedAt time.Time
}

// Processor feeds sink lines through one shared parser and notifies viewers
// of every completed record.
type Processor struct {
	parser   *nrplus.Parser
	notifier EventNotifier
	prefix   string
	logger   logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	emitted []nrplus.Record
}

func NewProcessor(notifier EventNotifier, devicePrefix string, maxBufferedLines int, log logger.Logger) *Processor {
	p := &Processor{
		notifier: notifier,
		prefix:   devicePrefix,
		logger:   log,
		now:      time.Now,
	}

	p.parser = nrplus.NewParser(
		nrplus.WithLogger(log),
		nrplus.WithMaxBufferedLines(maxBufferedLines),
	)

	p.parser.OnMessage(func(rec nrplus.Record) {
		p.mu.Lock()
		p.emitted = append(p.emitted, rec)
		p.mu.Unlock()
	})

	p.parser.OnEvict(func(deviceID string, dropped []string) {
		recordEvicted(context.Background(), len(dropped))

		p.logger.Warn().
			Str("device_id", deviceID).
			Int("lines", len(dropped)).
			Str("first_line", dropped[0]).
			Msg("Dropped NR+ lines that never completed a record")
	})

	return p
}

// ProcessBatch groups the batch by device, replays each device's lines in
// sequence order and notifies every record that completes. Malformed messages
// are logged and skipped. It returns the number of records emitted.
func (p *Processor) ProcessBatch(ctx context.Context, msgs []Envelope) int {
	order := []string{}
	batches := map[string]*deviceBatch{}

	for _, msg := range msgs {
		deviceID, lines, receivedAt, err := p.decode(msg)
		if err != nil {
			p.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Skipping malformed sink message")

			continue
		}

		b, ok := batches[deviceID]
		if !ok {
			b = &deviceBatch{}
			batches[deviceID] = b
			order = append(order, deviceID)
		}

		b.lines = append(b.lines, lines...)

		if receivedAt.After(b.receivedAt) {
			b.receivedAt = receivedAt
		}
	}

	emitted := 0

	for _, deviceID := range order {
		b := batches[deviceID]

		nrplus.SortLines(b.lines)

		for _, line := range b.lines {
			p.parser.AddLine(deviceID, line.Payload)
		}

		emitted += p.flush(ctx, b.receivedAt)
	}

	return emitted
}

func (p *Processor) decode(msg Envelope) (string, []nrplus.SequencedLine, time.Time, error) {
	deviceID := strings.TrimPrefix(msg.Subject, p.prefix)
	if deviceID == "" || deviceID == msg.Subject {
		return "", nil, time.Time{}, errMissingDeviceID
	}

	var sink SinkMessage
	if err := json.Unmarshal(msg.Data, &sink); err != nil {
		return "", nil, time.Time{}, fmt.Errorf("invalid sink message: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sink.Message)
	if err != nil {
		return "", nil, time.Time{}, fmt.Errorf("invalid base64 payload: %w", err)
	}

	var lines []nrplus.SequencedLine

	for _, text := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(text) == "" {
			continue
		}

		line, err := nrplus.ParseSequencedLine(text)
		if err != nil {
			p.logger.Debug().Err(err).Str("device_id", deviceID).Msg("Skipping unsequenced line")

			continue
		}

		lines = append(lines, line)
	}

	receivedAt := sink.Timestamp
	if receivedAt.IsZero() {
		receivedAt = p.now()
	}

	return deviceID, lines, receivedAt.UTC(), nil
}

func (p *Processor) flush(ctx context.Context, receivedAt time.Time) int {
	p.mu.Lock()
	records := p.emitted
	p.emitted = nil
	p.mu.Unlock()

	for _, rec := range records {
		recordEmitted(ctx, rec.Shape)

		ev := events.DeviceMessage{
			Device: events.Device{
				DeviceID:          rec.DeviceID,
				ReceivedTimestamp: receivedAt,
			},
			Message: map[string]any{strings.ToLower(rec.Shape): rec.Fields},
		}

		if err := p.notifier.Notify(ctx, ev); err != nil {
			p.logger.Error().Err(err).Str("device_id", rec.DeviceID).Msg("Failed to notify record")
		}
	}

	return len(records)
}
