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
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrMissingSequence is returned for lines without a "<counter>\t" prefix.
var ErrMissingSequence = errors.New("line has no sequence prefix")

// SequencedLine is one sink line with its per-device sequence counter.
type SequencedLine struct {
	Seq     uint64
	Payload string
}

// ParseSequencedLine splits "<counter>\t<payload>".
func ParseSequencedLine(raw string) (SequencedLine, error) {
	prefix, payload, ok := strings.Cut(raw, "\t")
	if !ok {
		return SequencedLine{}, ErrMissingSequence
	}

	seq, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return SequencedLine{}, fmt.Errorf("%w: %q", ErrMissingSequence, prefix)
	}

	return SequencedLine{Seq: seq, Payload: strings.TrimRight(payload, "\r")}, nil
}

// SortLines orders lines by ascending sequence counter, keeping arrival order for ties.
func SortLines(lines []SequencedLine) {
	slices.SortStableFunc(lines, func(a, b SequencedLine) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
}
