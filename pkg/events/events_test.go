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

package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var received = time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)

type foreign struct {
	Explicit
	Value int `json:"value"`
}

func TestContext(t *testing.T) {
	hops := uint32(2)

	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"shadow", DeviceShadow{Reported: map[string]any{"env": 1}}, ContextDeviceShadow},
		{"message", DeviceMessage{Message: map[string]any{"pdc": map[string]string{}}}, ContextDeviceMessage},
		{"location", DeviceLocation{Location: GeoLocation{Lat: 63.4, Lng: 10.4}}, ContextDeviceLocation},
		{"history", DeviceHistory{History: map[string]any{}}, ContextDeviceHistory},
		{"cell", CellGeoLocation{}, ContextCellGeoLocation},
		{"network survey", NetworkSurveyGeoLocation{}, ContextNetworkSurveyGeoLocation},
		{"wifi survey", WiFiSiteSurveyGeoLocation{}, ContextWiFiSiteSurveyGeoLocation},
		{"mesh node", MeshNodeEvent{MeshNodeEvent: MeshNode{Meta: MeshMeta{Hops: &hops}}}, ContextMeshNodeEvent},
		{
			"explicit wins",
			DeviceMessage{Explicit: Explicit{Context: "https://thingy.rocks/device-event"}},
			"https://thingy.rocks/device-event",
		},
		{
			"custom with explicit context",
			Custom{Explicit: Explicit{Context: "https://thingy.rocks/memfault-reboot"}},
			"https://thingy.rocks/memfault-reboot",
		},
		{
			"foreign type with explicit context",
			foreign{Explicit: Explicit{Context: "https://example.com/x"}},
			"https://example.com/x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Context(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextUnknownShape(t *testing.T) {
	for _, ev := range []Event{nil, Custom{Fields: map[string]any{"a": 1}}, foreign{Value: 1}} {
		_, err := Context(ev)
		require.ErrorIs(t, err, ErrUnknownEventShape)

		_, err = Envelope(ev)
		require.ErrorIs(t, err, ErrUnknownEventShape)
	}
}

func TestEnvelopeIsFlat(t *testing.T) {
	ev := DeviceMessage{
		Device: Device{DeviceID: "oob-352656108602296", ReceivedTimestamp: received},
		Message: map[string]any{
			"pdc": map[string]string{"time": "100", "snr": "88"},
		},
	}

	b, err := Envelope(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))

	assert.Equal(t, ContextDeviceMessage, got["@context"])
	assert.Equal(t, "oob-352656108602296", got["deviceId"])
	assert.Equal(t, "2024-03-12T09:30:00Z", got["receivedTimestamp"])
	assert.Equal(t, map[string]any{"pdc": map[string]any{"time": "100", "snr": "88"}}, got["message"])
	assert.NotContains(t, got, "deviceAlias")
	assert.NotContains(t, got, "Context")
}

func TestEnvelopeCustom(t *testing.T) {
	ev := Custom{
		Explicit: Explicit{Context: "https://thingy.rocks/memfault-reboot"},
		Fields:   map[string]any{"deviceId": "d1", "reason": "watchdog"},
	}

	b, err := Envelope(ev)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"@context":"https://thingy.rocks/memfault-reboot","deviceId":"d1","reason":"watchdog"}`,
		string(b))
}

func TestEnvelopeCustomWithoutFields(t *testing.T) {
	ev := Custom{Explicit: Explicit{Context: "https://thingy.rocks/reboot"}}

	var (
		b   []byte
		err error
	)

	require.NotPanics(t, func() { b, err = Envelope(ev) })
	require.NoError(t, err)
	assert.JSONEq(t, `{"@context":"https://thingy.rocks/reboot"}`, string(b))
}

func TestEnvelopeMeshNode(t *testing.T) {
	ev := MeshNodeEvent{MeshNodeEvent: MeshNode{
		Meta: MeshMeta{
			Node:         1234,
			Gateway:      "gw-1",
			RxTime:       received,
			TravelTimeMs: 17,
		},
		Message: map[string]any{"temp": 24.5},
	}}

	b, err := Envelope(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"@context": "https://thingy.rocks/wirepas-5g-mesh-node-event",
		"meshNodeEvent": {
			"meta": {"node": 1234, "gateway": "gw-1", "rxTime": "2024-03-12T09:30:00Z", "travelTimeMs": 17},
			"message": {"temp": 24.5}
		}
	}`, string(b))
}

func TestWithDeviceAlias(t *testing.T) {
	var ev Event = DeviceLocation{
		Device:   Device{DeviceID: "d1", ReceivedTimestamp: received},
		Location: GeoLocation{Lat: 1, Lng: 2, Accuracy: 3, Source: "GNSS"},
	}

	aliaser, ok := ev.(DeviceAliaser)
	require.True(t, ok)
	assert.Equal(t, "d1", aliaser.DeviceKey())

	decorated := aliaser.WithDeviceAlias("Kitchen")

	b, err := Envelope(decorated)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Kitchen", got["deviceAlias"])
	assert.Equal(t, ContextDeviceLocation, got["@context"])

	_, ok = Event(CellGeoLocation{}).(DeviceAliaser)
	assert.False(t, ok)
}
