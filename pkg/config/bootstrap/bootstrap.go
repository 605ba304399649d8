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

// Package bootstrap loads a service configuration for a meshcast binary,
// connecting to the NATS KV config bucket when CONFIG_SOURCE=kv.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/meshcast/pkg/config"
	"github.com/carverauto/meshcast/pkg/kv"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/natsutil"
)

const (
	envConfigSource = "CONFIG_SOURCE"
	envKVNATSURL    = "CONFIG_KV_NATS_URL"
	envKVBucket     = "CONFIG_KV_BUCKET"

	DefaultKVBucket = "meshcast-config"
)

var errKVURLRequired = errors.New(envKVNATSURL + " is required when " + envConfigSource + "=kv")

// Result holds the connection opened for KV-backed configuration, if any.
type Result struct {
	nc *nats.Conn
}

// Close releases the KV connection.
func (r *Result) Close() error {
	if r == nil || r.nc == nil {
		return nil
	}

	return r.nc.Drain()
}

// Service loads cfg from path (or its KV key) and validates it.
func Service(ctx context.Context, path string, cfg interface{}, log logger.Logger) (*Result, error) {
	loader := config.NewConfig(log)
	result := &Result{}

	if strings.EqualFold(os.Getenv(envConfigSource), "kv") {
		store, nc, err := openKV(ctx, log)
		if err != nil {
			return nil, err
		}

		loader.SetKVStore(store)
		result.nc = nc
	}

	if err := loader.LoadAndValidate(ctx, path, cfg); err != nil {
		_ = result.Close()

		return nil, err
	}

	return result, nil
}

func openKV(ctx context.Context, log logger.Logger) (kv.KVStore, *nats.Conn, error) {
	url := os.Getenv(envKVNATSURL)
	if url == "" {
		return nil, nil, errKVURLRequired
	}

	bucket := os.Getenv(envKVBucket)
	if bucket == "" {
		bucket = DefaultKVBucket
	}

	nc, js, err := natsutil.Connect(natsutil.ConnectOptions{URL: url, Name: "meshcast-config", Logger: log})
	if err != nil {
		return nil, nil, err
	}

	store, err := kv.NewNatsStore(ctx, js, bucket, 0)
	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("open config bucket: %w", err)
	}

	return store, nc, nil
}
