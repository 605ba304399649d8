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
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carverauto/meshcast/pkg/wirepas"
)

// downlinkQoS delivers each command to the gateway exactly once.
const downlinkQoS byte = 2

var ErrInvalidLEDCommand = errors.New("invalid LED command")

// LEDCommand asks a mesh node to switch one of its user LEDs.
type LEDCommand struct {
	Gateway string `json:"gateway"`
	Sink    string `json:"sink,omitempty"`
	Node    uint32 `json:"node"`
	Color   string `json:"color"`
	On      bool   `json:"on"`
}

var ledColors = map[string]wirepas.LEDColor{
	"red":   wirepas.LEDRed,
	"blue":  wirepas.LEDBlue,
	"green": wirepas.LEDGreen,
	"all":   wirepas.LEDAll,
}

// Downlink returns the MQTT topic and GenericMessage body for the command.
func (c LEDCommand) Downlink() (string, []byte, error) {
	if c.Gateway == "" || c.Node == 0 {
		return "", nil, fmt.Errorf("%w: gateway and node are required", ErrInvalidLEDCommand)
	}

	color, ok := ledColors[strings.ToLower(c.Color)]
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown color %q", ErrInvalidLEDCommand, c.Color)
	}

	body := wirepas.EncodeSendPacket(wirepas.SendPacket{
		RequestID:           newRequestID(),
		SinkID:              c.Sink,
		SourceEndpoint:      wirepas.DataEndpoint,
		DestinationAddress:  c.Node,
		DestinationEndpoint: wirepas.DataEndpoint,
		Payload:             wirepas.LEDSetPayload(color, c.On),
	})

	return wirepas.SendDataTopic(c.Gateway, c.Sink), body, nil
}

func newRequestID() uint64 {
	id := uuid.New()

	return binary.BigEndian.Uint64(id[:8])
}
