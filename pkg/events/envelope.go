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
	"errors"
	"fmt"
)

// ErrUnknownEventShape is returned for events that map to no context.
var ErrUnknownEventShape = errors.New("unknown event shape")

const contextBase = "https://thingy.rocks/"

const (
	ContextDeviceShadow              = contextBase + "device-shadow"
	ContextDeviceMessage             = contextBase + "device-message"
	ContextDeviceLocation            = contextBase + "device-location"
	ContextDeviceHistory             = contextBase + "device-history"
	ContextCellGeoLocation           = contextBase + "cell-geo-location"
	ContextNetworkSurveyGeoLocation  = contextBase + "network-survey-geo-location"
	ContextWiFiSiteSurveyGeoLocation = contextBase + "wifi-site-survey-geo-location"
	ContextMeshNodeEvent             = contextBase + "wirepas-5g-mesh-node-event"
)

const contextKey = "@context"

// Context returns the @context for ev. A non-empty explicit context wins.
func Context(ev Event) (string, error) {
	if ev == nil {
		return "", ErrUnknownEventShape
	}

	if c := ev.explicitContext(); c != "" {
		return c, nil
	}

	switch ev.(type) {
	case DeviceShadow:
		return ContextDeviceShadow, nil
	case DeviceMessage:
		return ContextDeviceMessage, nil
	case DeviceLocation:
		return ContextDeviceLocation, nil
	case DeviceHistory:
		return ContextDeviceHistory, nil
	case CellGeoLocation:
		return ContextCellGeoLocation, nil
	case NetworkSurveyGeoLocation:
		return ContextNetworkSurveyGeoLocation, nil
	case WiFiSiteSurveyGeoLocation:
		return ContextWiFiSiteSurveyGeoLocation, nil
	case MeshNodeEvent:
		return ContextMeshNodeEvent, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownEventShape, ev)
	}
}

// Envelope serializes ev as one flat JSON object with @context at the top level.
func Envelope(ev Event) ([]byte, error) {
	ctx, err := Context(ev)
	if err != nil {
		return nil, err
	}

	var body any = ev
	if c, ok := ev.(Custom); ok {
		body = c.Fields
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", ev, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("event %T is not a JSON object: %w", ev, err)
	}

	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}

	fields[contextKey], err = json.Marshal(ctx)
	if err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}
