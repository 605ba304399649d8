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

package wsgateway

import (
	"encoding/json"
	"errors"

	"github.com/carverauto/meshcast/pkg/config"
	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/models"
)

var (
	ErrMissingListenAddr = errors.New("listen address is required")
	ErrMissingNATSURL    = errors.New("NATS URL is required")
	ErrInvalidJSON       = errors.New("failed to unmarshal JSON configuration")
)

const DefaultPath = "/ws"

// Config holds configuration for the fan-out gateway.
type Config struct {
	ListenAddr     string                 `json:"listen_addr"`
	Path           string                 `json:"path"`
	AllowedOrigins []string               `json:"allowed_origins"`
	PingInterval   models.Duration        `json:"ping_interval"`
	NATSURL        string                 `json:"nats_url"`
	Domain         string                 `json:"domain"`
	Security       *models.SecurityConfig `json:"security"`
	Fanout         fanout.Config          `json:"fanout"`
	Logging        *logger.Config         `json:"logging"`
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

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, ErrMissingListenAddr)
	}

	if c.NATSURL == "" {
		errs = append(errs, ErrMissingNATSURL)
	}

	if err := c.Fanout.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Path == "" {
		c.Path = DefaultPath
	}

	return errors.Join(errs...)
}
