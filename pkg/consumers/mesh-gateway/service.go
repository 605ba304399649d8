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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/nats-io/nats.go"

	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/lifecycle"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/natsutil"
)

const flushJobName = "counter-flush"

type ledReply struct {
	OK    bool   `json:"ok"`
	Topic string `json:"topic,omitempty"`
	Error string `json:"error,omitempty"`
}

// Service implements lifecycle.Service for the mesh gateway bridge.
type Service struct {
	cfg    *Config
	logger logger.Logger

	notifier  EventNotifier
	bridge    *Bridge
	publisher Publisher
	mqtt      *mqttBridge
	scheduler gocron.Scheduler
	nc        *nats.Conn
	ledSub    *nats.Subscription
	cancel    context.CancelFunc
}

type ServiceOption func(*Service)

// WithNotifier replaces the JetStream-backed notifier built at start.
func WithNotifier(n EventNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

func NewService(cfg *Config, log logger.Logger, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, logger: log}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start wires NATS, the counter flush job and the MQTT subscription.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if err := s.startNATS(runCtx); err != nil {
		cancel()

		return err
	}

	s.bridge = NewBridge(s.notifier, s.cfg.CounterFlushPace.Or(DefaultCounterFlushPace), s.logger)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		s.abort()

		return fmt.Errorf("create scheduler: %w", err)
	}

	s.scheduler = scheduler

	if _, err := scheduler.NewJob(
		gocron.DurationJob(s.cfg.CounterFlushInterval.Or(DefaultCounterFlushInterval)),
		gocron.NewTask(s.bridge.FlushCounters, runCtx),
		gocron.WithName(flushJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		s.abort()

		return fmt.Errorf("create %s job: %w", flushJobName, err)
	}

	scheduler.Start()

	client, err := connectMQTT(runCtx, s.cfg, s.logger, s.handleUplink)
	if err != nil {
		s.abort()

		return err
	}

	s.mqtt = client
	s.publisher = client

	s.logger.Info().
		Str("broker", s.cfg.MQTTBroker).
		Str("topic", s.cfg.Topic).
		Bool("receive_only", s.cfg.ReceiveOnly).
		Dur("counter_flush_interval", s.cfg.CounterFlushInterval.Or(DefaultCounterFlushInterval)).
		Msg("Mesh gateway bridge started")

	return nil
}

func (s *Service) startNATS(ctx context.Context) error {
	if s.cfg.NATSURL == "" {
		if s.notifier == nil {
			s.notifier = fanout.NewNotifier(nil, nil, nil, s.logger, fanout.WithDropAll(true))
		}

		return nil
	}

	nc, js, err := natsutil.Connect(natsutil.ConnectOptions{
		URL:      s.cfg.NATSURL,
		Domain:   s.cfg.Domain,
		Name:     "meshcast-mesh-gateway",
		Security: s.cfg.Security,
		Logger:   s.logger,
	})
	if err != nil {
		return err
	}

	s.nc = nc

	if s.notifier == nil {
		transport := fanout.NewRelayTransport(nc, s.cfg.Fanout.DeliverySubjectPrefix, s.cfg.Fanout.DeliveryTimeout.Or(0))

		n, err := fanout.NewNotifierFromConfig(ctx, js, &s.cfg.Fanout, transport, s.logger)
		if err != nil {
			nc.Close()

			return err
		}

		s.notifier = n
	}

	sub, err := nc.Subscribe(s.cfg.LEDSubject, s.handleLEDCommand)
	if err != nil {
		nc.Close()

		return fmt.Errorf("failed to subscribe to %s: %w", s.cfg.LEDSubject, err)
	}

	s.ledSub = sub

	return nil
}

func (s *Service) handleUplink(ctx context.Context, body []byte) {
	if err := s.bridge.HandleMessage(ctx, body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to handle gateway message")
	}
}

func (s *Service) handleLEDCommand(msg *nats.Msg) {
	reply := s.sendLED(msg.Data)

	if msg.Reply == "" {
		return
	}

	body, _ := json.Marshal(reply)
	if err := msg.Respond(body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to answer LED command")
	}
}

func (s *Service) sendLED(data []byte) ledReply {
	var cmd LEDCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return ledReply{Error: fmt.Errorf("%w: %w", ErrInvalidLEDCommand, err).Error()}
	}

	topic, body, err := cmd.Downlink()
	if err != nil {
		return ledReply{Error: err.Error()}
	}

	if s.publisher == nil {
		return ledReply{Error: "MQTT is not connected"}
	}

	if err := s.publisher.Publish(topic, downlinkQoS, body); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish LED command")

		return ledReply{Error: err.Error()}
	}

	s.logger.Info().
		Str("gateway", cmd.Gateway).
		Uint32("node", cmd.Node).
		Str("color", cmd.Color).
		Bool("on", cmd.On).
		Msg("LED command sent")

	return ledReply{OK: true, Topic: topic}
}

func (s *Service) abort() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}

	if s.nc != nil {
		s.nc.Close()
	}
}

// Stop flushes buffered counters one last time and releases connections.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error

	if s.mqtt != nil {
		s.mqtt.Close()
	}

	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.bridge != nil {
		s.bridge.FlushCounters(ctx)
	}

	if s.cancel != nil {
		s.cancel()
	}

	if s.ledSub != nil {
		if err := s.ledSub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}

	if s.notifier != nil {
		s.notifier.Wait()
	}

	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info().Msg("Mesh gateway bridge stopped")

	return errors.Join(errs...)
}

var _ lifecycle.Service = (*Service)(nil)
