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

// Package nrplus reassembles multi-line NR+ sink diagnostics into structured records.
package nrplus

import (
	"regexp"
)

// LineMatcher extracts named fields from a single line.
type LineMatcher struct {
	re *regexp.Regexp
}

// NewLineMatcher compiles pattern. It panics on an invalid pattern since shapes
// are fixed configuration loaded at startup.
func NewLineMatcher(pattern string) LineMatcher {
	return LineMatcher{re: regexp.MustCompile(pattern)}
}

// Match reports whether line matches and returns its named captures. Unnamed
// groups are not returned.
func (m LineMatcher) Match(line string) (map[string]string, bool) {
	sub := m.re.FindStringSubmatch(line)
	if sub == nil {
		return nil, false
	}

	fields := make(map[string]string)

	for i, name := range m.re.SubexpNames() {
		if name == "" || i >= len(sub) {
			continue
		}

		fields[name] = sub[i]
	}

	return fields, true
}

func (m LineMatcher) String() string {
	return m.re.String()
}

// Shape is an ordered list of line matchers describing one record format.
// Shapes are immutable after construction.
type Shape struct {
	Name  string
	Lines []LineMatcher
}

func NewShape(name string, patterns ...string) Shape {
	lines := make([]LineMatcher, len(patterns))
	for i, p := range patterns {
		lines[i] = NewLineMatcher(p)
	}

	return Shape{Name: name, Lines: lines}
}

// match tries the shape against the front of buffer. It returns the merged
// fields on a full match. viable is false when some matcher already failed
// against a buffered line, so no amount of further input can make this shape
// match at the current front.
func (s Shape) match(buffer []string) (fields map[string]string, matched, viable bool) {
	fields = make(map[string]string)

	for i, m := range s.Lines {
		if i >= len(buffer) {
			return nil, false, true
		}

		captured, ok := m.Match(buffer[i])
		if !ok {
			return nil, false, false
		}

		for k, v := range captured {
			fields[k] = v
		}
	}

	return fields, true, true
}

const (
	ShapePDC = "PDC"
	ShapePCC = "PCC"
)

// PDCShape matches a Physical Data Channel report: one header line followed by
// the decoded MAC SDU block.
func PDCShape() Shape {
	return NewShape(ShapePDC,
		`^PDC received \(time (?P<time>[0-9]+)\): snr (?P<snr>[0-9]+), RSSI (?P<RSSI>[-0-9]+), len (?P<len>[0-9]+)`,
		`^Received data:`,
		`^\s+Type:\s+(?P<type>.+)`,
		`^\s+Power control:`,
		`^\s+Expected RX RSSI level \(dBm\):\s+(?P<expectedRXRSSI>[-0-9]+)`,
		`^\s+Seq nbr:\s+(?P<seqNbr>[0-9]+)`,
		`^\s+Network ID:\s+(?P<networkId>[0-9]+)`,
		`^\s+Transmitter long ID:\s+(?P<transmitterId>[0-9]+)`,
		`^\s+Receiver long ID:\s+(?P<receiverId>[0-9]+)`,
		`^\s+SDU last seen seq nbr:\s+(?P<sduLastSeenSeqNbr>[0-9]+)`,
		`^\s+SDU data length:\s+(?P<sduDataLength>[0-9]+)`,
		`^\s+SDU data:\s+(?P<sduData>.+)`,
		`^\s+IE type:\s+(?P<ieType>.+)`,
	)
}

// PCCShape matches a Physical Control Channel report, which precedes each PDC.
func PCCShape() Shape {
	return NewShape(ShapePCC,
		`^PCC received \(time (?P<time>[0-9]+)\): status: "(?P<status>[^"]+)", snr (?P<snr>[0-9]+), stf_start_time (?P<stfStartTime>[0-9]+)`,
		`^\s+phy header: short nw id (?P<networkId>[0-9]+), transmitter id (?P<transmitterId>[0-9]+)`,
		`^\s+receiver id: (?P<receiverId>[0-9]+)`,
		`^\s+MCS (?P<mcs>[0-9]+), TX pwr: (?P<txPowerDBm>-[0-9]+) dBm`,
	)
}

// DefaultShapes returns the sink shapes in first-match-wins order.
func DefaultShapes() []Shape {
	return []Shape{PDCShape(), PCCShape()}
}
