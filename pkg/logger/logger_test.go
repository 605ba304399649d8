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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	err := Init(context.Background(), &Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, GetLogger().GetLevel())

	err = Init(context.Background(), &Config{Debug: true})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())
}

func TestInitRejectsBadLevel(t *testing.T) {
	_, err := New(context.Background(), &Config{Level: "loud"})
	require.Error(t, err)
}

func TestSetDebug(t *testing.T) {
	SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())

	SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, GetLogger().GetLevel())
}

func TestWrapAddsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer

	l := Wrap(zerolog.New(&buf))

	component := l.WithComponent("fanout")
	component.Info().Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "fanout", line["component"])
	assert.Equal(t, "hello", line["message"])

	buf.Reset()

	fields := l.WithFields(map[string]interface{}{"device": "abc", "n": 3})
	fields.Info().Msg("x")

	line = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "abc", line["device"])
	assert.InDelta(t, 3.0, line["n"], 0)
}

func TestWrapSetLevel(t *testing.T) {
	var buf bytes.Buffer

	l := Wrap(zerolog.New(&buf))
	l.SetLevel(zerolog.ErrorLevel)
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.SetDebug(true)
	l.Debug().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewNopLoggerDiscards(t *testing.T) {
	l := NewNopLogger()
	assert.False(t, l.Error().Enabled())
}

func TestNewTestLoggerDiscards(t *testing.T) {
	l := NewTestLogger()
	assert.False(t, l.Info().Enabled())
}
