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

package fanout

import (
	"errors"
	"fmt"

	"github.com/carverauto/meshcast/pkg/models"
)

var (
	ErrInvalidConcurrency = errors.New("concurrency must not be negative")
	ErrInvalidDuration    = errors.New("duration must not be negative")
)

// Config is the fan-out section shared by every service that notifies viewers.
type Config struct {
	RegistryBucket        string          `json:"registry_bucket"`
	RegistryTTL           models.Duration `json:"registry_ttl"`
	AliasBucket           string          `json:"alias_bucket"`
	Freshness             models.Duration `json:"freshness"`
	DeliverySubjectPrefix string          `json:"delivery_subject_prefix"`
	DeliveryTimeout       models.Duration `json:"delivery_timeout"`
	Concurrency           int             `json:"concurrency"`
	DropAll               bool            `json:"drop_all"`
}

// Validate rejects negative values and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.Concurrency < 0 {
		errs = append(errs, ErrInvalidConcurrency)
	}

	for name, d := range map[string]models.Duration{
		"registry_ttl":     c.RegistryTTL,
		"freshness":        c.Freshness,
		"delivery_timeout": c.DeliveryTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidDuration, name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	if c.RegistryBucket == "" {
		c.RegistryBucket = DefaultRegistryBucket
	}

	if c.AliasBucket == "" {
		c.AliasBucket = DefaultAliasBucket
	}

	if c.DeliverySubjectPrefix == "" {
		c.DeliverySubjectPrefix = DefaultDeliverySubjectPrefix
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}

	c.RegistryTTL = models.Duration(c.RegistryTTL.Or(DefaultRegistryTTL))
	c.Freshness = models.Duration(c.Freshness.Or(DefaultFreshness))
	c.DeliveryTimeout = models.Duration(c.DeliveryTimeout.Or(DefaultDeliveryTimeout))

	return nil
}
