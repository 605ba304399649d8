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

package natsutil

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/models"
)

// ConnectOptions describes how a meshcast service reaches NATS.
type ConnectOptions struct {
	URL      string
	Domain   string
	Name     string
	Security *models.SecurityConfig
	Logger   logger.Logger
}

// Connect dials NATS, applying mTLS when configured, and opens a JetStream
// context in the configured domain. The caller owns the returned connection.
func Connect(opts ConnectOptions) (*nats.Conn, jetstream.JetStream, error) {
	natsOpts := []nats.Option{
		nats.MaxReconnects(-1),
	}

	if opts.Name != "" {
		natsOpts = append(natsOpts, nats.Name(opts.Name))
	}

	if opts.Security != nil && opts.Security.Mode == models.SecurityModeMTLS {
		tlsConf, err := TLSConfig(opts.Security)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		natsOpts = append(natsOpts, nats.Secure(tlsConf))
	}

	if opts.Logger != nil {
		log := opts.Logger

		natsOpts = append(natsOpts,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn().Err(err).Msg("NATS disconnected")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			}),
		)
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream

	if opts.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, opts.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return nc, js, nil
}
