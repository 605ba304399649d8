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

package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/natsutil/natstest"
)

var errMissingName = errors.New("name is required")

type sampleConfig struct {
	Name string `json:"name"`
}

func (c *sampleConfig) Validate() error {
	if c.Name == "" {
		return errMissingName
	}

	return nil
}

func TestServiceLoadsFile(t *testing.T) {
	t.Setenv(envConfigSource, "")

	path := filepath.Join(t.TempDir(), "svc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"file"}`), 0o600))

	var cfg sampleConfig

	res, err := Service(context.Background(), path, &cfg, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, res.Close())

	assert.Equal(t, "file", cfg.Name)
}

func TestServiceValidates(t *testing.T) {
	t.Setenv(envConfigSource, "")

	path := filepath.Join(t.TempDir(), "svc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := Service(context.Background(), path, &sampleConfig{}, logger.NewTestLogger())
	require.ErrorIs(t, err, errMissingName)
}

func TestServiceKVRequiresURL(t *testing.T) {
	t.Setenv(envConfigSource, "kv")
	t.Setenv(envKVNATSURL, "")

	_, err := Service(context.Background(), "svc.json", &sampleConfig{}, logger.NewTestLogger())
	require.ErrorIs(t, err, errKVURLRequired)
}

func TestServiceLoadsKV(t *testing.T) {
	nc, js := natstest.Connect(t)

	ctx := context.Background()

	bucket, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: DefaultKVBucket})
	require.NoError(t, err)

	_, err = bucket.Put(ctx, "config/svc.json", []byte(`{"name":"kv"}`))
	require.NoError(t, err)

	t.Setenv(envConfigSource, "kv")
	t.Setenv(envKVNATSURL, nc.ConnectedUrl())

	var cfg sampleConfig

	res, err := Service(ctx, "/etc/meshcast/svc.json", &cfg, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, res.Close())

	assert.Equal(t, "kv", cfg.Name)
}
