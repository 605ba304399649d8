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

package nrplussink

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/meshcast/pkg/consumers/nrplus-sink"

	metricRecords      = "meshcast.nrplus.records"
	metricEvictedLines = "meshcast.nrplus.evicted_lines"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	recordsCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	evictedCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter, err := meter.Int64Counter(
		metricRecords,
		metric.WithDescription("Records reassembled from NR+ sink lines"),
	)
	if err != nil {
		otel.Handle(err)
	}
	recordsCounter = counter

	evicted, err := meter.Int64Counter(
		metricEvictedLines,
		metric.WithDescription("Buffered NR+ lines dropped without completing a record"),
	)
	if err != nil {
		otel.Handle(err)
	}
	evictedCounter = evicted
}

func recordEmitted(ctx context.Context, shape string) {
	meterOnce.Do(initMeter)
	if recordsCounter == nil {
		return
	}

	recordsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("shape", shape)))
}

func recordEvicted(ctx context.Context, count int) {
	meterOnce.Do(initMeter)
	if evictedCounter == nil || count == 0 {
		return
	}

	evictedCounter.Add(ctx, int64(count))
}
