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
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/lifecycle"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/natsutil"
)

const defaultRetryDelay = 5 * time.Second

type connectFunc func(ctx context.Context) (*nats.Conn, jetstream.JetStream, *Consumer, error)

// Service implements lifecycle.Service for the NR+ sink consumer.
type Service struct {
	cfg       *Config
	logger    logger.Logger
	notifier  EventNotifier
	processor *Processor

	connectFactory connectFunc
	retryDelay     time.Duration

	mu     sync.Mutex
	nc     *nats.Conn
	js     jetstream.JetStream
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ServiceOption func(*Service)

// WithNotifier replaces the JetStream-backed notifier built at start.
func WithNotifier(n EventNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

// NewService validates cfg and prepares the service.
func NewService(cfg *Config, log logger.Logger, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, logger: log, retryDelay: defaultRetryDelay}

	for _, opt := range opts {
		opt(s)
	}

	s.connectFactory = s.connect

	return s, nil
}

// Start connects to NATS and begins processing messages. Lost connections are
// re-established in the background.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.run(runCtx)
	}()

	s.logger.Info().
		Str("stream_name", s.cfg.StreamName).
		Str("consumer_name", s.cfg.ConsumerName).
		Str("subject", s.cfg.Subject).
		Msg("NR+ sink consumer started")

	return nil
}

func (s *Service) run(ctx context.Context) {
	for {
		nc, js, consumer, err := s.connectFactory(ctx)
		if err == nil {
			s.setConn(nc, js)

			err = consumer.ProcessMessages(ctx, s.processor)
		}

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}

		s.logger.Warn().Err(err).Dur("retry_in", s.retryDelay).Msg("NR+ sink consumer lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}

// setConn records the live connection, closing a replaced one.
func (s *Service) setConn(nc *nats.Conn, js jetstream.JetStream) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nc != nil && s.nc != nc {
		s.nc.Close()
	}

	s.nc = nc
	s.js = js
}

// connect reuses the current connection while it is open. The notifier is
// bound to the first connection, which reconnects on its own.
func (s *Service) connect(ctx context.Context) (*nats.Conn, jetstream.JetStream, *Consumer, error) {
	s.mu.Lock()
	nc, js := s.nc, s.js
	s.mu.Unlock()

	fresh := nc == nil || nc.IsClosed()

	if fresh {
		var err error

		nc, js, err = natsutil.Connect(natsutil.ConnectOptions{
			URL:      s.cfg.NATSURL,
			Domain:   s.cfg.Domain,
			Name:     "meshcast-nrplus-sink",
			Security: s.cfg.Security,
			Logger:   s.logger,
		})
		if err != nil {
			return nil, nil, nil, err
		}
	}

	fail := func(err error) (*nats.Conn, jetstream.JetStream, *Consumer, error) {
		if fresh {
			nc.Close()
		}

		return nil, nil, nil, err
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     s.cfg.StreamName,
		Subjects: []string{s.cfg.Subject},
	}); err != nil {
		return fail(fmt.Errorf("failed to ensure stream %s: %w", s.cfg.StreamName, err))
	}

	if s.processor == nil {
		notifier := s.notifier
		if notifier == nil {
			transport := fanout.NewRelayTransport(nc, s.cfg.Fanout.DeliverySubjectPrefix, s.cfg.Fanout.DeliveryTimeout.Or(0))

			n, err := fanout.NewNotifierFromConfig(ctx, js, &s.cfg.Fanout, transport, s.logger)
			if err != nil {
				return fail(err)
			}

			notifier = n
		}

		s.notifier = notifier
		s.processor = NewProcessor(notifier, s.cfg.DevicePrefix(), s.cfg.MaxBufferedLines, s.logger)
	}

	consumer, err := NewConsumer(ctx, js, s.cfg.StreamName, s.cfg.ConsumerName, s.cfg.Subject, s.logger)
	if err != nil {
		return fail(err)
	}

	return nc, js, consumer, nil
}

// Stop halts the fetch loop, waits for pending registry cleanup and closes NATS.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()

		if s.notifier != nil {
			s.notifier.Wait()
		}

		close(done)
	}()

	var err error

	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.setConn(nil, nil)

	s.logger.Info().Msg("NR+ sink consumer stopped")

	return err
}

var _ lifecycle.Service = (*Service)(nil)
