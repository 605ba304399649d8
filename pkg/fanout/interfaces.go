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

//go:generate mockgen -destination=mock_fanout.go -package=fanout github.com/carverauto/meshcast/pkg/fanout Registry,Transport,AliasResolver

// Package fanout broadcasts enveloped events to every live viewer connection.
package fanout

import (
	"context"
	"errors"
)

// ErrGone is returned by a Transport when the recipient can no longer be reached.
var ErrGone = errors.New("recipient gone")

// Registry is the shared listing of live connection identifiers.
type Registry interface {
	List(ctx context.Context) ([]string, error)
	Put(ctx context.Context, id string) error
	// Touch refreshes last-seen bookkeeping for id.
	Touch(ctx context.Context, id string) error
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
}

// Transport pushes one payload to one connection.
type Transport interface {
	Send(ctx context.Context, id string, payload []byte) error
}

// AliasResolver looks up the human-readable name of a device.
type AliasResolver interface {
	Alias(ctx context.Context, deviceID string) (alias string, found bool, err error)
}
