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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/meshcast/pkg/wirepas"
)

func TestConfigValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{MQTTBroker: "tcp://localhost:1883", NATSURL: "nats://localhost:4222"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, wirepas.ReceivedDataTopic, cfg.Topic)
	assert.Equal(t, DefaultClientID, cfg.MQTTClientID)
	assert.Equal(t, DefaultLEDSubject, cfg.LEDSubject)
	assert.Equal(t, DefaultCounterFlushInterval, time.Duration(cfg.CounterFlushInterval))
	assert.Equal(t, DefaultCounterFlushPace, time.Duration(cfg.CounterFlushPace))
	assert.False(t, cfg.Fanout.DropAll)
}

func TestConfigValidateRequiredFields(t *testing.T) {
	t.Parallel()

	err := (&Config{}).Validate()
	require.ErrorIs(t, err, ErrMissingBroker)
	require.ErrorIs(t, err, ErrMissingNATSURL)
}

func TestConfigReceiveOnly(t *testing.T) {
	t.Parallel()

	cfg := &Config{MQTTBroker: "tcp://localhost:1883", ReceiveOnly: true}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Fanout.DropAll)
}

func TestConfigUnmarshal(t *testing.T) {
	t.Parallel()

	raw := `{
		"mqtt_broker": "ssl://broker:8883",
		"mqtt_security": {"cert_dir": "/etc/meshcast/certs", "tls": {"cert_file": "client.pem"}},
		"nats_url": "nats://nats:4222",
		"counter_flush_interval": "30s",
		"counter_flush_pace": "100ms"
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	require.NoError(t, cfg.Validate())

	require.NotNil(t, cfg.MQTTSecurity)
	assert.Equal(t, "/etc/meshcast/certs/client.pem", cfg.MQTTSecurity.TLS.CertFile)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.CounterFlushInterval))
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.CounterFlushPace))
}

func TestConfigUnmarshalInvalid(t *testing.T) {
	t.Parallel()

	var cfg Config
	require.ErrorIs(t, json.Unmarshal([]byte(`{"mqtt_broker": 5}`), &cfg), ErrInvalidJSON)
}
