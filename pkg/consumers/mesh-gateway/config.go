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

// Package meshgateway bridges Wirepas mesh gateways on MQTT to meshcast
// viewers, and relays LED commands back down to mesh nodes.
package meshgateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/carverauto/meshcast/pkg/config"
	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/models"
	"github.com/carverauto/meshcast/pkg/wirepas"
)

const (
	DefaultCounterFlushInterval = 60 * time.Second
	DefaultCounterFlushPace     = 150 * time.Millisecond
	DefaultLEDSubject           = "mesh.led.set"
	DefaultClientID             = "meshcast-mesh-gateway"
)

var (
	ErrMissingBroker  = errors.New("MQTT broker is required")
	ErrMissingNATSURL = errors.New("NATS URL is required unless receive_only is set")
	ErrInvalidJSON    = errors.New("failed to unmarshal JSON configuration")
)

// Config holds configuration for the mesh gateway bridge.
type Config struct {
	MQTTBroker   string                 `json:"mqtt_broker"`
	MQTTClientID string                 `json:"mqtt_client_id"`
	MQTTUsername string                 `json:"mqtt_username"`
	MQTTPassword string                 `json:"mqtt_password"`
	MQTTSecurity *models.SecurityConfig `json:"mqtt_security"`
	Topic        string                 `json:"topic"`

	// ReceiveOnly decodes and logs traffic without notifying viewers.
	ReceiveOnly          bool            `json:"receive_only"`
	CounterFlushInterval models.Duration `json:"counter_flush_interval"`
	CounterFlushPace     models.Duration `json:"counter_flush_pace"`
	LEDSubject           string          `json:"led_subject"`

	NATSURL  string                 `json:"nats_url"`
	Domain   string                 `json:"domain"`
	Security *models.SecurityConfig `json:"security"`
	Fanout   fanout.Config          `json:"fanout"`
	Logging  *logger.Config         `json:"logging"`
}

// UnmarshalJSON ensures TLS paths are normalized.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config

	var alias struct{ Alias }

	if err := json.Unmarshal(data, &alias); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}

	*c = Config(alias.Alias)

	for _, sec := range []*models.SecurityConfig{c.Security, c.MQTTSecurity} {
		if sec != nil && sec.CertDir != "" {
			config.NormalizeTLSPaths(&sec.TLS, sec.CertDir)
		}
	}

	return nil
}

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.MQTTBroker == "" {
		errs = append(errs, ErrMissingBroker)
	}

	if c.NATSURL == "" && !c.ReceiveOnly {
		errs = append(errs, ErrMissingNATSURL)
	}

	if c.ReceiveOnly {
		c.Fanout.DropAll = true
	}

	if err := c.Fanout.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Topic == "" {
		c.Topic = wirepas.ReceivedDataTopic
	}

	if c.MQTTClientID == "" {
		c.MQTTClientID = DefaultClientID
	}

	if c.LEDSubject == "" {
		c.LEDSubject = DefaultLEDSubject
	}

	c.CounterFlushInterval = models.Duration(c.CounterFlushInterval.Or(DefaultCounterFlushInterval))
	c.CounterFlushPace = models.Duration(c.CounterFlushPace.Or(DefaultCounterFlushPace))

	return errors.Join(errs...)
}
