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
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/meshcast/pkg/logger"
)

const (
	defaultMaxPullMessages = 50
	defaultPullExpiry      = 5 * time.Second
	fetchRetryDelay        = time.Second
)

type pullConsumer interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// Consumer pulls sink messages from a durable JetStream consumer.
type Consumer struct {
	streamName   string
	consumerName string
	consumer     pullConsumer
	logger       logger.Logger
}

// NewConsumer creates or retrieves a pull consumer for the given stream.
func NewConsumer(
	ctx context.Context, js jetstream.JetStream, streamName, consumerName, subject string, log logger.Logger,
) (*Consumer, error) {
	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		consumer, err = js.CreateConsumer(ctx, streamName, jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    3,
			MaxAckPending: 1000,
			FilterSubject: subject,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer %s on %s: %w", consumerName, streamName, err)
		}
	}

	log.Info().Str("stream_name", streamName).Str("consumer_name", consumerName).Msg("Pull consumer ready")

	return &Consumer{streamName: streamName, consumerName: consumerName, consumer: consumer, logger: log}, nil
}

func isFatalFetchError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, jetstream.ErrConsumerDeleted) ||
		errors.Is(err, jetstream.ErrConsumerNotFound)
}

// ProcessMessages fetches batches until ctx is done or the connection is lost.
// Every fetched message is acked once processed: records that fail to parse or
// notify are not redelivered.
func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) error {
	c.logger.Info().Str("stream_name", c.streamName).Str("consumer_name", c.consumerName).Msg("Starting pull consumer")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
		if err != nil {
			if isFatalFetchError(err) {
				return fmt.Errorf("fetch from %s: %w", c.streamName, err)
			}

			c.logger.Warn().Err(err).Msg("Failed to fetch messages")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchRetryDelay):
			}

			continue
		}

		batch := make([]jetstream.Msg, 0, defaultMaxPullMessages)
		for msg := range msgs.Messages() {
			batch = append(batch, msg)
		}

		if len(batch) > 0 {
			c.handleBatch(ctx, batch, processor)
		}

		if fetchErr := msgs.Error(); fetchErr != nil && !errors.Is(fetchErr, nats.ErrTimeout) {
			c.logger.Debug().Err(fetchErr).Msg("Fetch ended with error")
		}
	}
}

func (c *Consumer) handleBatch(ctx context.Context, batch []jetstream.Msg, processor *Processor) {
	envelopes := make([]Envelope, 0, len(batch))
	for _, msg := range batch {
		envelopes = append(envelopes, Envelope{Subject: msg.Subject(), Data: msg.Data()})
	}

	emitted := processor.ProcessBatch(ctx, envelopes)

	c.logger.Debug().Int("messages", len(batch)).Int("records", emitted).Msg("Processed sink batch")

	for _, msg := range batch {
		if err := msg.Ack(); err != nil {
			c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Failed to ack message")
		}
	}
}
