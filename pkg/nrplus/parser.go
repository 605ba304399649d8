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

package nrplus

import (
	"slices"
	"sync"

	"github.com/carverauto/meshcast/pkg/logger"
)

const DefaultMaxBufferedLines = 64

// Record is one reassembled multi-line report.
type Record struct {
	DeviceID string
	Shape    string
	Fields   map[string]string
}

type (
	MessageListener func(Record)
	EvictListener   func(deviceID string, dropped []string)
)

// Parser keeps one pending line buffer per device and emits a Record whenever a
// configured shape fully matches the front of that buffer.
//
// Lines for one device must be fed in sequence order by a single caller at a
// time. Different devices may be fed concurrently.
type Parser struct {
	shapes   []Shape
	maxLines int
	logger   logger.Logger

	mu        sync.Mutex
	devices   map[string]*deviceState
	listeners []MessageListener
	evictions []EvictListener
}

type deviceState struct {
	lines []string
}

type Option func(*Parser)

// WithShapes replaces the default shapes. Order is match priority.
func WithShapes(shapes ...Shape) Option {
	return func(p *Parser) {
		p.shapes = slices.Clone(shapes)
	}
}

// WithMaxBufferedLines caps pending lines per device. Values below 1 are ignored.
func WithMaxBufferedLines(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxLines = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		shapes:   DefaultShapes(),
		maxLines: DefaultMaxBufferedLines,
		logger:   logger.NewNopLogger(),
		devices:  make(map[string]*deviceState),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// OnMessage registers a listener. Listeners run synchronously inside AddLine in
// registration order.
func (p *Parser) OnMessage(fn MessageListener) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners = append(p.listeners, fn)
}

// OnEvict registers a listener for lines dropped without producing a record.
func (p *Parser) OnEvict(fn EvictListener) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictions = append(p.evictions, fn)
}

// Pending returns the number of buffered lines for deviceID.
func (p *Parser) Pending(deviceID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st, ok := p.devices[deviceID]; ok {
		return len(st.lines)
	}

	return 0
}

// AddLine appends line to the device buffer and emits every record that now
// matches at its front.
func (p *Parser) AddLine(deviceID, line string) {
	p.mu.Lock()

	st, ok := p.devices[deviceID]
	if !ok {
		st = &deviceState{}
		p.devices[deviceID] = st
	}

	st.lines = append(st.lines, line)

	records, dropped := p.drain(deviceID, st)

	listeners := p.listeners
	evictions := p.evictions

	p.mu.Unlock()

	if len(dropped) > 0 {
		p.logger.Debug().
			Str("device_id", deviceID).
			Int("dropped", len(dropped)).
			Msg("Evicted unmatched NR+ lines")

		for _, fn := range evictions {
			fn(deviceID, dropped)
		}
	}

	for _, rec := range records {
		for _, fn := range listeners {
			fn(rec)
		}
	}
}

// drain consumes complete records from the front of st. A front line that no
// shape can start from is dropped, and the buffer is trimmed to maxLines.
func (p *Parser) drain(deviceID string, st *deviceState) ([]Record, []string) {
	var (
		records []Record
		dropped []string
	)

	for len(st.lines) > 0 {
		rec, n, viable := p.matchFront(deviceID, st.lines)
		if n > 0 {
			records = append(records, rec)
			st.lines = slices.Delete(st.lines, 0, n)

			continue
		}

		if !viable {
			dropped = append(dropped, st.lines[0])
			st.lines = slices.Delete(st.lines, 0, 1)

			continue
		}

		if over := len(st.lines) - p.maxLines; over > 0 {
			dropped = append(dropped, st.lines[:over]...)
			st.lines = slices.Delete(st.lines, 0, over)

			continue
		}

		break
	}

	return records, dropped
}

// matchFront returns the first shape that fully matches, with the number of
// lines it consumed. viable reports whether any shape could still match once
// more lines arrive.
func (p *Parser) matchFront(deviceID string, lines []string) (Record, int, bool) {
	viable := false

	for _, shape := range p.shapes {
		if len(shape.Lines) == 0 {
			continue
		}

		fields, matched, ok := shape.match(lines)
		if matched {
			return Record{DeviceID: deviceID, Shape: shape.Name, Fields: fields}, len(shape.Lines), true
		}

		viable = viable || ok
	}

	return Record{}, 0, viable
}
