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

// Package nrplussink reassembles NR+ sink diagnostic lines into records and
// fans them out to viewers.
package nrplussink

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/carverauto/meshcast/pkg/config"
	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/models"
)

const (
	DefaultStreamName   = "NRPLUS_SINK"
	DefaultConsumerName = "nrplus-sink"
	DefaultSubject      = "nrplus.sink.>"
)

// Config holds configuration for the NR+ sink consumer.
type Config struct {
	NATSURL          string                 `json:"nats_url"`
	Domain           string                 `json:"domain"`
	StreamName       string                 `json:"stream_name"`
	ConsumerName     string                 `json:"consumer_name"`
	Subject          string                 `json:"subject"`
	MaxBufferedLines int                    `json:"max_buffered_lines"`
	Security         *models.SecurityConfig `json:"security"`
	Fanout           fanout.Config          `json:"fanout"`
	Logging          *logger.Config         `json:"logging"`
}

// UnmarshalJSON ensures TLS paths are normalized.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config

	var alias struct{ Alias }

	if err := json.Unmarshal(data, &alias); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}

	*c = Config(alias.Alias)

	if c.Security != nil && c.Security.CertDir != "" {
		config.NormalizeTLSPaths(&c.Security.TLS, c.Security.CertDir)
	}

	return nil
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}

	if c.ConsumerName == "" {
		c.ConsumerName = DefaultConsumerName
	}

	if c.Subject == "" {
		c.Subject = DefaultSubject
	}

	var errs []error

	if c.NATSURL == "" {
		errs = append(errs, ErrMissingNATSURL)
	}

	if !strings.HasSuffix(c.Subject, ".>") && !strings.HasSuffix(c.Subject, ".*") {
		errs = append(errs, ErrInvalidSubject)
	}

	if c.MaxBufferedLines < 0 {
		errs = append(errs, ErrInvalidBufferedLines)
	}

	if err := c.Fanout.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// DevicePrefix is the subject prefix that precedes the device id.
func (c *Config) DevicePrefix() string {
	return c.Subject[:len(c.Subject)-1]
}
