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
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedEnvelope is returned when a gateway message is not valid protobuf.
var ErrMalformedEnvelope = errors.New("malformed gateway envelope")

// Field numbers from the Wirepas gateway-to-backend API.
const (
	genericWirepas protowire.Number = 1

	wirepasSendPacketReq       protowire.Number = 6
	wirepasPacketReceivedEvent protowire.Number = 8

	eventHeaderGatewayID protowire.Number = 1
	eventHeaderSinkID    protowire.Number = 2
	eventHeaderEventID   protowire.Number = 3

	requestHeaderID     protowire.Number = 1
	requestHeaderSinkID protowire.Number = 2

	receivedHeader              protowire.Number = 1
	receivedSourceAddress       protowire.Number = 2
	receivedDestinationAddress  protowire.Number = 3
	receivedSourceEndpoint      protowire.Number = 4
	receivedDestinationEndpoint protowire.Number = 5
	receivedTravelTimeMs        protowire.Number = 6
	receivedRxTimeMsEpoch       protowire.Number = 7
	receivedPayload             protowire.Number = 9
	receivedHopCount            protowire.Number = 11

	sendHeader              protowire.Number = 1
	sendSourceEndpoint      protowire.Number = 2
	sendDestinationAddress  protowire.Number = 3
	sendDestinationEndpoint protowire.Number = 4
	sendQoS                 protowire.Number = 5
	sendPayload             protowire.Number = 6
)

const (
	ReceivedDataTopic = "gw-event/received_data/#"
	DefaultSink       = "sink1"

	// DataEndpoint is the source and destination endpoint used by the evaluation app.
	DataEndpoint uint32 = 1
)

// PacketReceived is a decoded packet_received_event.
type PacketReceived struct {
	GatewayID           string
	SinkID              string
	EventID             uint64
	SourceAddress       uint32
	DestinationAddress  uint32
	SourceEndpoint      uint32
	DestinationEndpoint uint32
	TravelTimeMs        uint32
	RxTime              time.Time
	Payload             []byte
	HopCount            uint32
	HasHopCount         bool
}

// SendPacket is a send_packet_req downlink.
type SendPacket struct {
	RequestID           uint64
	SinkID              string
	SourceEndpoint      uint32
	DestinationAddress  uint32
	DestinationEndpoint uint32
	QoS                 uint32
	Payload             []byte
}

type fieldValue struct {
	varint uint64
	bytes  []byte
}

func forEachField(b []byte, fn func(num protowire.Number, v fieldValue)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformedEnvelope, protowire.ParseError(n))
		}

		b = b[n:]

		var v fieldValue

		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformedEnvelope, num, protowire.ParseError(n))
		}

		b = b[n:]

		fn(num, v)
	}

	return nil
}

// ParsePacketReceived extracts wirepas.packet_received_event from a
// GenericMessage. ok is false for any other message kind.
func ParsePacketReceived(b []byte) (PacketReceived, bool, error) {
	var wirepas []byte

	if err := forEachField(b, func(num protowire.Number, v fieldValue) {
		if num == genericWirepas {
			wirepas = v.bytes
		}
	}); err != nil {
		return PacketReceived{}, false, err
	}

	var event []byte

	if err := forEachField(wirepas, func(num protowire.Number, v fieldValue) {
		if num == wirepasPacketReceivedEvent {
			event = v.bytes
		}
	}); err != nil {
		return PacketReceived{}, false, err
	}

	if event == nil {
		return PacketReceived{}, false, nil
	}

	var (
		pkt    PacketReceived
		header []byte
	)

	err := forEachField(event, func(num protowire.Number, v fieldValue) {
		switch num {
		case receivedHeader:
			header = v.bytes
		case receivedSourceAddress:
			pkt.SourceAddress = uint32(v.varint)
		case receivedDestinationAddress:
			pkt.DestinationAddress = uint32(v.varint)
		case receivedSourceEndpoint:
			pkt.SourceEndpoint = uint32(v.varint)
		case receivedDestinationEndpoint:
			pkt.DestinationEndpoint = uint32(v.varint)
		case receivedTravelTimeMs:
			pkt.TravelTimeMs = uint32(v.varint)
		case receivedRxTimeMsEpoch:
			pkt.RxTime = time.UnixMilli(int64(v.varint)).UTC()
		case receivedPayload:
			pkt.Payload = v.bytes
		case receivedHopCount:
			pkt.HopCount = uint32(v.varint)
			pkt.HasHopCount = true
		}
	})
	if err != nil {
		return PacketReceived{}, false, err
	}

	err = forEachField(header, func(num protowire.Number, v fieldValue) {
		switch num {
		case eventHeaderGatewayID:
			pkt.GatewayID = string(v.bytes)
		case eventHeaderSinkID:
			pkt.SinkID = string(v.bytes)
		case eventHeaderEventID:
			pkt.EventID = v.varint
		}
	})
	if err != nil {
		return PacketReceived{}, false, err
	}

	return pkt, true, nil
}

// EncodePacketReceived wraps pkt in a GenericMessage.
func EncodePacketReceived(pkt PacketReceived) []byte {
	var header []byte

	header = appendString(header, eventHeaderGatewayID, pkt.GatewayID)
	if pkt.SinkID != "" {
		header = appendString(header, eventHeaderSinkID, pkt.SinkID)
	}

	header = appendVarint(header, eventHeaderEventID, pkt.EventID)

	var event []byte

	event = appendBytes(event, receivedHeader, header)
	event = appendVarint(event, receivedSourceAddress, uint64(pkt.SourceAddress))
	event = appendVarint(event, receivedDestinationAddress, uint64(pkt.DestinationAddress))
	event = appendVarint(event, receivedSourceEndpoint, uint64(pkt.SourceEndpoint))
	event = appendVarint(event, receivedDestinationEndpoint, uint64(pkt.DestinationEndpoint))
	event = appendVarint(event, receivedTravelTimeMs, uint64(pkt.TravelTimeMs))
	event = appendVarint(event, receivedRxTimeMsEpoch, uint64(pkt.RxTime.UnixMilli()))

	if pkt.Payload != nil {
		event = appendBytes(event, receivedPayload, pkt.Payload)
	}

	if pkt.HasHopCount {
		event = appendVarint(event, receivedHopCount, uint64(pkt.HopCount))
	}

	return wrapWirepas(wirepasPacketReceivedEvent, event)
}

// EncodeSendPacket wraps p in a GenericMessage ready for gw-request/send_data.
func EncodeSendPacket(p SendPacket) []byte {
	var header []byte

	header = appendVarint(header, requestHeaderID, p.RequestID)
	if p.SinkID != "" {
		header = appendString(header, requestHeaderSinkID, p.SinkID)
	}

	var req []byte

	req = appendBytes(req, sendHeader, header)
	req = appendVarint(req, sendSourceEndpoint, uint64(p.SourceEndpoint))
	req = appendVarint(req, sendDestinationAddress, uint64(p.DestinationAddress))
	req = appendVarint(req, sendDestinationEndpoint, uint64(p.DestinationEndpoint))
	req = appendVarint(req, sendQoS, uint64(p.QoS))
	req = appendBytes(req, sendPayload, p.Payload)

	return wrapWirepas(wirepasSendPacketReq, req)
}

// ParseSendPacket is the inverse of EncodeSendPacket.
func ParseSendPacket(b []byte) (SendPacket, bool, error) {
	var wirepas, req []byte

	if err := forEachField(b, func(num protowire.Number, v fieldValue) {
		if num == genericWirepas {
			wirepas = v.bytes
		}
	}); err != nil {
		return SendPacket{}, false, err
	}

	if err := forEachField(wirepas, func(num protowire.Number, v fieldValue) {
		if num == wirepasSendPacketReq {
			req = v.bytes
		}
	}); err != nil {
		return SendPacket{}, false, err
	}

	if req == nil {
		return SendPacket{}, false, nil
	}

	var (
		p      SendPacket
		header []byte
	)

	if err := forEachField(req, func(num protowire.Number, v fieldValue) {
		switch num {
		case sendHeader:
			header = v.bytes
		case sendSourceEndpoint:
			p.SourceEndpoint = uint32(v.varint)
		case sendDestinationAddress:
			p.DestinationAddress = uint32(v.varint)
		case sendDestinationEndpoint:
			p.DestinationEndpoint = uint32(v.varint)
		case sendQoS:
			p.QoS = uint32(v.varint)
		case sendPayload:
			p.Payload = v.bytes
		}
	}); err != nil {
		return SendPacket{}, false, err
	}

	if err := forEachField(header, func(num protowire.Number, v fieldValue) {
		switch num {
		case requestHeaderID:
			p.RequestID = v.varint
		case requestHeaderSinkID:
			p.SinkID = string(v.bytes)
		}
	}); err != nil {
		return SendPacket{}, false, err
	}

	return p, true, nil
}

func wrapWirepas(num protowire.Number, msg []byte) []byte {
	wirepas := appendBytes(nil, num, msg)

	return appendBytes(nil, genericWirepas, wirepas)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)

	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendString(b, v)
}

// LEDSetPayload is the evaluation app's "LED state set" command.
func LEDSetPayload(color LEDColor, on bool) []byte {
	state := byte(0)
	if on {
		state = 1
	}

	return []byte{markerLEDSet, byte(color), state}
}

// LEDGetPayload requests the state of the first user LED.
func LEDGetPayload() []byte {
	return []byte{markerLEDGet, 0}
}

// SendDataTopic is the MQTT topic for downlinks through gateway's sink.
func SendDataTopic(gateway, sink string) string {
	if sink == "" {
		sink = DefaultSink
	}

	return "gw-request/send_data/" + gateway + "/" + sink
}
