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
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName  = "github.com/carverauto/meshcast/pkg/fanout"
	tracerName = meterName

	metricDelivered = "meshcast.fanout.delivered"
	metricGone      = "meshcast.fanout.gone"
	metricFailed    = "meshcast.fanout.failed"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	deliveredCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	goneCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	failedCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	deliveredCounter = newCounter(meter, metricDelivered, "Payloads delivered to viewer connections")
	goneCounter = newCounter(meter, metricGone, "Deliveries that found the connection gone")
	failedCounter = newCounter(meter, metricFailed, "Deliveries that failed with a transport error")
}

func newCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
	}

	return counter
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeGone
	outcomeFailed
)

func recordOutcome(ctx context.Context, o outcome, attrs ...metric.AddOption) {
	meterOnce.Do(initMeter)

	var counter metric.Int64Counter

	switch o {
	case outcomeDelivered:
		counter = deliveredCounter
	case outcomeGone:
		counter = goneCounter
	case outcomeFailed:
		counter = failedCounter
	}

	if counter == nil {
		return
	}

	counter.Add(ctx, 1, attrs...)
}
