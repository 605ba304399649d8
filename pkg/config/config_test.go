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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/meshcast/pkg/kv"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/models"
)

var errTestMissingURL = errors.New("nats_url is required")

type testServiceConfig struct {
	NATSURL   string                 `json:"nats_url"`
	Freshness models.Duration        `json:"freshness"`
	Workers   int                    `json:"workers"`
	DropAll   bool                   `json:"drop_all"`
	Subjects  []string               `json:"subjects"`
	Security  *models.SecurityConfig `json:"security,omitempty"`
	Logging   *logger.Config         `json:"logging,omitempty"`
}

func (c *testServiceConfig) Validate() error {
	if c.NATSURL == "" {
		return errTestMissingURL
	}

	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "svc.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadAndValidateFromFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeConfig(t, `{
		"nats_url": "nats://localhost:4222",
		"freshness": "60s",
		"security": {"mode": "mtls", "cert_dir": "/etc/meshcast/certs", "tls": {"cert_file": "svc.pem", "key_file": "svc-key.pem", "ca_file": "/abs/root.pem"}}
	}`)

	var cfg testServiceConfig
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, 60*time.Second, time.Duration(cfg.Freshness))
	assert.Equal(t, "/etc/meshcast/certs/svc.pem", cfg.Security.TLS.CertFile)
	assert.Equal(t, "/etc/meshcast/certs/svc-key.pem", cfg.Security.TLS.KeyFile)
	assert.Equal(t, "/abs/root.pem", cfg.Security.TLS.CAFile)
	assert.Equal(t, "/abs/root.pem", cfg.Security.TLS.ClientCAFile)
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"freshness": "1s"}`)

	var cfg testServiceConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errTestMissingURL)
}

func TestLoadAndValidateRejectsUnknownSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	var cfg testServiceConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), "x.json", &cfg)
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "TESTSVC_")
	t.Setenv("TESTSVC_NATS_URL", "nats://env:4222")
	t.Setenv("TESTSVC_FRESHNESS", "2m")
	t.Setenv("TESTSVC_WORKERS", "8")
	t.Setenv("TESTSVC_DROP_ALL", "true")
	t.Setenv("TESTSVC_SUBJECTS", "a, b")
	t.Setenv("TESTSVC_LOGGING_LEVEL", "debug")

	var cfg testServiceConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "nats://env:4222", cfg.NATSURL)
	assert.Equal(t, 2*time.Minute, time.Duration(cfg.Freshness))
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.DropAll)
	assert.Equal(t, []string{"a", "b"}, cfg.Subjects)
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Nil(t, cfg.Security)
}

func TestLoadFromEnvBadValue(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "BADSVC_")
	t.Setenv("BADSVC_NATS_URL", "nats://env:4222")
	t.Setenv("BADSVC_WORKERS", "many")

	var cfg testServiceConfig
	require.Error(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))
}

func TestLoadFromEnvConfigJSON(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "JSONSVC_")
	t.Setenv("JSONSVC_CONFIG_JSON", `{"nats_url":"nats://json:4222","workers":3}`)

	var cfg testServiceConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))
	assert.Equal(t, "nats://json:4222", cfg.NATSURL)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadFromKV(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	store.EXPECT().
		Get(gomock.Any(), "config/fanout-gateway.json").
		Return([]byte(`{"nats_url":"nats://kv:4222"}`), true, nil)

	c := NewConfig(nil)
	c.SetKVStore(store)

	var cfg testServiceConfig
	require.NoError(t, c.LoadAndValidate(context.Background(), "/etc/meshcast/fanout-gateway.json", &cfg))
	assert.Equal(t, "nats://kv:4222", cfg.NATSURL)
}

func TestLoadFromKVFallsBackToFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	path := writeConfig(t, `{"nats_url":"nats://file:4222"}`)

	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "config/svc.json").Return(nil, false, nil)

	c := NewConfig(logger.NewTestLogger())
	c.SetKVStore(store)

	var cfg testServiceConfig
	require.NoError(t, c.LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "nats://file:4222", cfg.NATSURL)
}

func TestLoadFromKVRequiresStore(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg testServiceConfig
	require.ErrorIs(t, NewConfig(nil).LoadAndValidate(context.Background(), "x.json", &cfg), errKVStoreNotSet)
}

func TestNormalizeTLSPathsKeepsExplicitClientCA(t *testing.T) {
	tls := models.TLSConfig{CertFile: "c.pem", KeyFile: "k.pem", CAFile: "ca.pem", ClientCAFile: "clients.pem"}

	NormalizeTLSPaths(&tls, "/certs")

	assert.Equal(t, "/certs/c.pem", tls.CertFile)
	assert.Equal(t, "/certs/clients.pem", tls.ClientCAFile)
}
