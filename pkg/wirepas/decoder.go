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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/carverauto/meshcast/pkg/cursor"
	"github.com/carverauto/meshcast/pkg/logger"
)

// ErrTruncated is returned when a field declares more bytes than remain.
var ErrTruncated = errors.New("payload truncated")

// Frame markers from the Wirepas evaluation app.
const (
	markerDiagnostic byte = 0xBF
	markerButton     byte = 0x01
	markerLED        byte = 0x03
	markerLEDSet     byte = 0x81
	markerLEDGet     byte = 0x82
)

// LEDColor is the LED selector used by the evaluation app.
type LEDColor byte

const (
	LEDRed   LEDColor = 0x00
	LEDBlue  LEDColor = 0x01
	LEDGreen LEDColor = 0x02
	LEDAll   LEDColor = 0xFF
)

// TLV field types.
const (
	fieldCounter         byte = 0x01
	fieldTimestamp       byte = 0x02
	fieldIAQ             byte = 0x03
	fieldIAQAcc          byte = 0x04
	fieldSIAQ            byte = 0x05
	fieldSIAQAcc         byte = 0x06
	fieldSensorStatus    byte = 0x07
	fieldSensorStability byte = 0x08
	fieldGas             byte = 0x09
	fieldGasAcc          byte = 0x0A
	fieldVOC             byte = 0x0B
	fieldVOCAcc          byte = 0x0C
	fieldCO2             byte = 0x0D
	fieldCO2Acc          byte = 0x0E
	fieldTemperature     byte = 0x0F
	fieldHumidity        byte = 0x10
	fieldRawTemperature  byte = 0x11
	fieldRawHumidity     byte = 0x12
	fieldRawPressure     byte = 0x13
	fieldRawGas          byte = 0x14
)

// Decoder turns node payloads into events. It holds no per-call state and is
// safe for concurrent use.
type Decoder struct {
	logger logger.Logger
	now    func() time.Time
}

type DecoderOption func(*Decoder)

// WithClock sets the time source used to stamp button presses.
func WithClock(now func() time.Time) DecoderOption {
	return func(d *Decoder) {
		d.now = now
	}
}

func NewDecoder(log logger.Logger, opts ...DecoderOption) *Decoder {
	if log == nil {
		log = logger.NewNopLogger()
	}

	d := &Decoder{logger: log, now: time.Now}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Decode returns the events in payload. Unknown fields are skipped. A field
// running past the end of payload fails the whole call with ErrTruncated.
func (d *Decoder) Decode(payload []byte) ([]Event, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	switch payload[0] {
	case markerDiagnostic, markerLEDGet:
		return nil, nil
	}

	if len(payload) == 3 {
		switch payload[0] {
		case markerButton:
			return []Event{ButtonPress{Index: payload[2], At: d.now()}}, nil
		case markerLED, markerLEDSet:
			return d.decodeLED(payload[1], payload[2]), nil
		}
	}

	return d.decodeTLV(payload)
}

func (d *Decoder) decodeLED(color, state byte) []Event {
	ev := LEDState{On: state != 0}

	switch LEDColor(color) {
	case LEDRed:
		ev.Red = true
	case LEDGreen:
		ev.Green = true
	case LEDBlue:
		ev.Blue = true
	case LEDAll:
		ev.Red, ev.Green, ev.Blue = true, true, true
	default:
		d.logger.Warn().Uint8("color", color).Msg("Unknown LED color")

		return nil
	}

	return []Event{ev}
}

func (d *Decoder) decodeTLV(payload []byte) ([]Event, error) {
	c := cursor.New(payload)

	var events []Event

	for c.HasNext() {
		pos := c.Pos()

		typ, _ := c.Next()

		length, err := c.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: type 0x%02x at %d has no length", ErrTruncated, typ, pos)
		}

		value, err := c.Take(int(length))
		if err != nil {
			return nil, fmt.Errorf("%w: type 0x%02x at %d wants %d bytes, %d left",
				ErrTruncated, typ, pos, length, c.Remaining())
		}

		if ev, ok := d.decodeField(typ, value, pos); ok {
			events = append(events, ev)
		}
	}

	return events, nil
}

func (d *Decoder) decodeField(typ byte, value []byte, pos int) (Event, bool) {
	switch typ {
	case fieldCounter:
		if len(value) == 0 || len(value) > 8 {
			d.logger.Warn().Int("length", len(value)).Msg("Invalid counter length")
			return nil, false
		}

		var buf [8]byte

		copy(buf[:], value)

		return Counter{Value: binary.LittleEndian.Uint64(buf[:])}, true
	case fieldTemperature, fieldHumidity, fieldRawPressure, fieldRawGas:
		if len(value) != 4 {
			d.logger.Warn().
				Uint8("type", typ).
				Int("length", len(value)).
				Msg("Float field is not 4 bytes")

			return nil, false
		}

		f := math.Float32frombits(binary.LittleEndian.Uint32(value))

		switch typ {
		case fieldTemperature:
			return Temperature{Celsius: f}, true
		case fieldHumidity:
			return Humidity{Percent: f}, true
		case fieldRawPressure:
			return RawPressure{Value: f}, true
		default:
			return RawGas{Value: f}, true
		}
	case fieldTimestamp, fieldIAQ, fieldIAQAcc, fieldSIAQ, fieldSIAQAcc,
		fieldSensorStatus, fieldSensorStability, fieldGas, fieldGasAcc,
		fieldVOC, fieldVOCAcc, fieldCO2, fieldCO2Acc,
		fieldRawTemperature, fieldRawHumidity:
		return nil, false
	default:
		d.logger.Debug().
			Uint8("type", typ).
			Int("position", pos).
			Msg("Skipping unknown TLV field")

		return nil, false
	}
}
