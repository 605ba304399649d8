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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Duration
		wantErr bool
	}{
		{name: "string", input: `"5s"`, want: Duration(5 * time.Second)},
		{name: "nanoseconds", input: `5000000000`, want: Duration(5 * time.Second)},
		{name: "compound", input: `"1m30s"`, want: Duration(90 * time.Second)},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "bad type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDurationMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration(250 * time.Millisecond))
	require.NoError(t, err)
	assert.JSONEq(t, `"250ms"`, string(b))
}

func TestOTelConfigFromJSON(t *testing.T) {
	raw := `{
		"enabled": true,
		"endpoint": "collector:4317",
		"service_name": "fanout-gateway",
		"batch_timeout": "10s",
		"insecure": true,
		"headers": {"x-api-key": "k"}
	}`

	var cfg OTelConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Equal(t, "fanout-gateway", cfg.ServiceName)
	assert.Equal(t, Duration(10*time.Second), cfg.BatchTimeout)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, "k", cfg.Headers["x-api-key"])
}
