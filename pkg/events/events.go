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

// Package events defines the messages fanned out to viewers and their
// @context envelope.
package events

import (
	"time"
)

// Event is the closed set of fan-out messages. Every variant embeds Explicit.
type Event interface {
	explicitContext() string
}

// Explicit carries a caller-supplied @context that overrides the shape mapping.
type Explicit struct {
	Context string `json:"-"`
}

func (e Explicit) explicitContext() string { return e.Context }

// GeoLocation is a resolved position.
type GeoLocation struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
	Source   string  `json:"source,omitempty"`
}

// Cell identifies an LTE cell.
type Cell struct {
	Area    uint32 `json:"area"`
	Cell    uint32 `json:"cell"`
	MCCMNC  uint32 `json:"mccmnc"`
	Network string `json:"nw"`
}

// Device is the common header of per-device events.
type Device struct {
	DeviceID          string    `json:"deviceId"`
	DeviceAlias       string    `json:"deviceAlias,omitempty"`
	ReceivedTimestamp time.Time `json:"receivedTimestamp"`
}

func (d Device) DeviceKey() string { return d.DeviceID }

// DeviceShadow is a reported-state update.
type DeviceShadow struct {
	Explicit
	Device
	Reported map[string]any `json:"reported"`
}

// DeviceMessage is a device-originated message such as a reassembled NR+ record.
type DeviceMessage struct {
	Explicit
	Device
	Message map[string]any `json:"message"`
}

type DeviceLocation struct {
	Explicit
	Device
	Location GeoLocation `json:"location"`
}

// DeviceHistory is a summary of recent readings.
type DeviceHistory struct {
	Explicit
	Device
	History map[string]any `json:"history"`
}

type CellGeoLocation struct {
	Explicit
	CellGeoLocation CellLocation `json:"cellGeoLocation"`
}

type CellLocation struct {
	Cell        Cell        `json:"cell"`
	GeoLocation GeoLocation `json:"geoLocation"`
}

type NetworkSurveyGeoLocation struct {
	Explicit
	NetworkSurveyGeoLocation SurveyLocation `json:"networkSurveyGeoLocation"`
}

type WiFiSiteSurveyGeoLocation struct {
	Explicit
	WiFiSiteSurveyGeoLocation SurveyLocation `json:"wifiSiteSurveyGeoLocation"`
}

type SurveyLocation struct {
	DeviceID    string      `json:"deviceId"`
	SurveyID    string      `json:"surveyId,omitempty"`
	GeoLocation GeoLocation `json:"geoLocation"`
}

// MeshNodeEvent is a decoded Wirepas mesh node payload.
type MeshNodeEvent struct {
	Explicit
	MeshNodeEvent MeshNode `json:"meshNodeEvent"`
}

type MeshNode struct {
	Meta    MeshMeta       `json:"meta"`
	Message map[string]any `json:"message"`
}

type MeshMeta struct {
	Node         uint32    `json:"node"`
	Gateway      string    `json:"gateway"`
	RxTime       time.Time `json:"rxTime"`
	TravelTimeMs uint32    `json:"travelTimeMs"`
	Hops         *uint32   `json:"hops,omitempty"`
}

// Custom is an arbitrary flat object. It is only deliverable with an explicit
// context, e.g. reboot notifications.
type Custom struct {
	Explicit
	Fields map[string]any
}

// DeviceAliaser is implemented by events that can be decorated with a
// human-readable device name.
type DeviceAliaser interface {
	Event
	DeviceKey() string
	WithDeviceAlias(alias string) Event
}

func (e DeviceShadow) WithDeviceAlias(alias string) Event {
	e.DeviceAlias = alias
	return e
}

func (e DeviceMessage) WithDeviceAlias(alias string) Event {
	e.DeviceAlias = alias
	return e
}

func (e DeviceLocation) WithDeviceAlias(alias string) Event {
	e.DeviceAlias = alias
	return e
}

func (e DeviceHistory) WithDeviceAlias(alias string) Event {
	e.DeviceAlias = alias
	return e
}
