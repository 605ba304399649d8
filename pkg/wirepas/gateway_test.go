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

package wirepas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestPacketReceivedRoundTrip(t *testing.T) {
	in := PacketReceived{
		GatewayID:           "gw-1",
		SinkID:              "sink1",
		EventID:             99,
		SourceAddress:       1234,
		DestinationAddress:  1,
		SourceEndpoint:      1,
		DestinationEndpoint: 1,
		TravelTimeMs:        37,
		RxTime:              time.UnixMilli(1_700_000_000_123).UTC(),
		Payload:             []byte{0x01, 0x00, 0x02},
		HopCount:            3,
		HasHopCount:         true,
	}

	out, ok, err := ParsePacketReceived(EncodePacketReceived(in))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestParsePacketReceivedIgnoresOtherMessages(t *testing.T) {
	downlink := EncodeSendPacket(SendPacket{RequestID: 1, Payload: LEDGetPayload()})

	_, ok, err := ParsePacketReceived(downlink)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ParsePacketReceived(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParsePacketReceivedSkipsUnknownFields(t *testing.T) {
	msg := EncodePacketReceived(PacketReceived{GatewayID: "gw", RxTime: time.UnixMilli(0)})
	msg = protowire.AppendTag(msg, 2, protowire.Fixed32Type)
	msg = protowire.AppendFixed32(msg, 7)

	pkt, ok, err := ParsePacketReceived(msg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gw", pkt.GatewayID)
	assert.False(t, pkt.HasHopCount)
}

func TestParsePacketReceivedMalformed(t *testing.T) {
	_, _, err := ParsePacketReceived([]byte{0x0a, 0x05, 0x01})
	require.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestSendPacketRoundTrip(t *testing.T) {
	in := SendPacket{
		RequestID:           0xdeadbeefcafe,
		SinkID:              "sink1",
		SourceEndpoint:      DataEndpoint,
		DestinationAddress:  4321,
		DestinationEndpoint: DataEndpoint,
		Payload:             LEDSetPayload(LEDGreen, true),
	}

	out, ok, err := ParseSendPacket(EncodeSendPacket(in))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
	assert.Equal(t, []byte{0x81, 0x02, 0x01}, out.Payload)
}

func TestLEDPayloads(t *testing.T) {
	assert.Equal(t, []byte{0x81, 0xff, 0x00}, LEDSetPayload(LEDAll, false))
	assert.Equal(t, []byte{0x82, 0x00}, LEDGetPayload())
}

func TestSendDataTopic(t *testing.T) {
	assert.Equal(t, "gw-request/send_data/gw-7/sink1", SendDataTopic("gw-7", ""))
	assert.Equal(t, "gw-request/send_data/gw-7/sink2", SendDataTopic("gw-7", "sink2"))
}
