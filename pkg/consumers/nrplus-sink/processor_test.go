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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/meshcast/pkg/events"
	"github.com/carverauto/meshcast/pkg/logger"
)

const devicePrefix = "nrplus.sink."

var pccLines = []string{
	`PCC received (time 359572555405): status: "valid - PDC can be received", snr 83, stf_start_time 359572537298`,
	`  phy header: short nw id 22, transmitter id 39`,
	`  receiver id: 38`,
	`  MCS 0, TX pwr: -12 dBm`,
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)

	return r.err
}

func (*recordingNotifier) Wait() {}

func (r *recordingNotifier) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]events.Event(nil), r.events...)
}

func sinkEnvelope(t *testing.T, deviceID string, ts time.Time, lines ...string) Envelope {
	t.Helper()

	body, err := json.Marshal(SinkMessage{
		Message:   base64.StdEncoding.EncodeToString([]byte(strings.Join(lines, "\n"))),
		Timestamp: ts,
	})
	require.NoError(t, err)

	return Envelope{Subject: devicePrefix + deviceID, Data: body}
}

func TestProcessBatchReordersLines(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewProcessor(notifier, devicePrefix, 0, logger.NewTestLogger())
	ts := time.Date(2023, 10, 19, 15, 19, 35, 500000000, time.UTC)

	emitted := p.ProcessBatch(context.Background(), []Envelope{
		sinkEnvelope(t, "gw-1", ts, "3\t"+pccLines[2], "4\t"+pccLines[3]),
		sinkEnvelope(t, "gw-1", ts, "1\t"+pccLines[0], "2\t"+pccLines[1]),
	})

	require.Equal(t, 1, emitted)

	got := notifier.snapshot()
	require.Len(t, got, 1)

	msg, ok := got[0].(events.DeviceMessage)
	require.True(t, ok)
	assert.Equal(t, "gw-1", msg.DeviceID)
	assert.Equal(t, ts, msg.ReceivedTimestamp)
	assert.Equal(t, map[string]string{
		"time":          "359572555405",
		"status":        "valid - PDC can be received",
		"snr":           "83",
		"stfStartTime":  "359572537298",
		"networkId":     "22",
		"transmitterId": "39",
		"receiverId":    "38",
		"mcs":           "0",
		"txPowerDBm":    "-12",
	}, msg.Message["pcc"])
}

func TestProcessBatchRecordSpansBatches(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewProcessor(notifier, devicePrefix, 0, logger.NewTestLogger())
	ts := time.Now().UTC()

	first := p.ProcessBatch(context.Background(), []Envelope{
		sinkEnvelope(t, "gw-1", ts, "1\t"+pccLines[0], "2\t"+pccLines[1]),
	})
	assert.Zero(t, first)

	second := p.ProcessBatch(context.Background(), []Envelope{
		sinkEnvelope(t, "gw-1", ts, "3\t"+pccLines[2], "4\t"+pccLines[3]),
	})
	assert.Equal(t, 1, second)
}

func TestProcessBatchKeepsDevicesApart(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewProcessor(notifier, devicePrefix, 0, logger.NewTestLogger())
	ts := time.Now().UTC()

	emitted := p.ProcessBatch(context.Background(), []Envelope{
		sinkEnvelope(t, "a", ts, "1\t"+pccLines[0], "2\t"+pccLines[1]),
		sinkEnvelope(t, "b", ts, "1\t"+pccLines[0]),
		sinkEnvelope(t, "a", ts, "3\t"+pccLines[2], "4\t"+pccLines[3]),
	})

	require.Equal(t, 1, emitted)
	assert.Equal(t, "a", notifier.snapshot()[0].(events.DeviceMessage).DeviceID)
	assert.Equal(t, 1, p.parser.Pending("b"))
}

func TestProcessBatchSkipsMalformed(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewProcessor(notifier, devicePrefix, 0, logger.NewTestLogger())

	emitted := p.ProcessBatch(context.Background(), []Envelope{
		{Subject: devicePrefix + "gw-1", Data: []byte(`not json`)},
		{Subject: devicePrefix + "gw-1", Data: []byte(`{"message":"%%%"}`)},
		{Subject: "other.subject", Data: []byte(`{}`)},
		sinkEnvelope(t, "gw-1", time.Time{}, "no counter here"),
	})

	assert.Zero(t, emitted)
	assert.Empty(t, notifier.snapshot())
	assert.Zero(t, p.parser.Pending("gw-1"))
}

func TestProcessBatchNotifierFailureDoesNotStop(t *testing.T) {
	notifier := &recordingNotifier{err: events.ErrUnknownEventShape}
	p := NewProcessor(notifier, devicePrefix, 0, logger.NewTestLogger())
	ts := time.Now().UTC()

	lines := make([]string, 0, 8)
	for i, l := range append(append([]string{}, pccLines...), pccLines...) {
		lines = append(lines, strings.Join([]string{itoa(i + 1), l}, "\t"))
	}

	emitted := p.ProcessBatch(context.Background(), []Envelope{sinkEnvelope(t, "gw-1", ts, lines...)})

	assert.Equal(t, 2, emitted)
	assert.Len(t, notifier.snapshot(), 2)
}

func TestProcessBatchEvictsStuckLines(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewProcessor(notifier, devicePrefix, 4, logger.NewTestLogger())

	lines := []string{}
	for i := 1; i <= 10; i++ {
		lines = append(lines, itoa(i)+"\tgarbage")
	}

	p.ProcessBatch(context.Background(), []Envelope{sinkEnvelope(t, "gw-1", time.Now(), lines...)})

	assert.LessOrEqual(t, p.parser.Pending("gw-1"), 4)
}

func itoa(i int) string {
	b, _ := json.Marshal(i)

	return string(b)
}
