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
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName       = "github.com/carverauto/meshcast/pkg/consumers/mesh-gateway"
	metricTruncated = "meshcast.wirepas.truncated"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	truncatedCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter, err := meter.Int64Counter(
		metricTruncated,
		metric.WithDescription("Mesh payloads dropped because a field ran past the end"),
	)
	if err != nil {
		otel.Handle(err)
	}
	truncatedCounter = counter
}

func recordTruncated(ctx context.Context, gateway string) {
	meterOnce.Do(initMeter)
	if truncatedCounter == nil {
		return
	}

	truncatedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("gateway", gateway)))
}
