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

// Package wirepas decodes Wirepas mesh node telemetry and the gateway's
// protobuf envelopes.
package wirepas

import (
	"time"
)

// Event is one decoded measurement or state report.
type Event interface {
	isEvent()
}

type Counter struct {
	Value uint64
}

type Temperature struct {
	Celsius float32
}

type Humidity struct {
	Percent float32
}

type RawPressure struct {
	Value float32
}

type RawGas struct {
	Value float32
}

// ButtonPress carries the pressed button index and the time it was ingested.
type ButtonPress struct {
	Index uint8
	At    time.Time
}

// LEDState reports one LED color (or all of them) switching on or off.
type LEDState struct {
	Red   bool
	Green bool
	Blue  bool
	On    bool
}

func (Counter) isEvent()     {}
func (Temperature) isEvent() {}
func (Humidity) isEvent()    {}
func (RawPressure) isEvent() {}
func (RawGas) isEvent()      {}
func (ButtonPress) isEvent() {}
func (LEDState) isEvent()    {}

// Payload merges events into the message object sent to viewers. Later events
// of the same kind overwrite earlier ones.
func Payload(events []Event) map[string]any {
	out := make(map[string]any, len(events))

	for _, ev := range events {
		switch e := ev.(type) {
		case Counter:
			out["counter"] = e.Value
		case Temperature:
			out["temp"] = float64(e.Celsius)
		case Humidity:
			out["humidity"] = float64(e.Percent)
		case RawPressure:
			out["press"] = float64(e.Value)
		case RawGas:
			out["gas"] = float64(e.Value)
		case ButtonPress:
			out["btn"] = map[string]any{"v": e.Index, "ts": e.At.UnixMilli()}
		case LEDState:
			led := map[string]bool{}
			if e.Red {
				led["r"] = e.On
			}

			if e.Green {
				led["g"] = e.On
			}

			if e.Blue {
				led["b"] = e.On
			}

			out["led"] = led
		}
	}

	return out
}

// CounterOnly reports whether events hold nothing but counter ticks.
func CounterOnly(events []Event) bool {
	if len(events) == 0 {
		return false
	}

	for _, ev := range events {
		if _, ok := ev.(Counter); !ok {
			return false
		}
	}

	return true
}
