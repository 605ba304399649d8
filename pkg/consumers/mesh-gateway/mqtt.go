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
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/models"
	"github.com/carverauto/meshcast/pkg/natsutil"
)

const (
	mqttTimeout       = 10 * time.Second
	subscribeQoS      = byte(1)
	disconnectQuiesce = 250
)

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

type mqttBridge struct {
	client mqtt.Client
	logger logger.Logger
}

// connectMQTT dials the broker and (re)subscribes to topic on every connect.
func connectMQTT(ctx context.Context, cfg *Config, log logger.Logger, handle func(context.Context, []byte)) (*mqttBridge, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetCleanSession(true).
		SetOrderMatters(false)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	if cfg.MQTTSecurity != nil && cfg.MQTTSecurity.Mode == models.SecurityModeMTLS {
		tlsConf, err := natsutil.TLSConfig(cfg.MQTTSecurity)
		if err != nil {
			return nil, fmt.Errorf("failed to build MQTT TLS config: %w", err)
		}

		opts.SetTLSConfig(tlsConf)
	}

	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		handle(ctx, msg.Payload())
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info().Str("broker", cfg.MQTTBroker).Msg("MQTT connected")

		token := c.Subscribe(cfg.Topic, subscribeQoS, onMessage)
		if !token.WaitTimeout(mqttTimeout) {
			log.Error().Str("topic", cfg.Topic).Msg("MQTT subscribe timed out")

			return
		}

		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", cfg.Topic).Msg("MQTT subscribe failed")

			return
		}

		log.Info().Str("topic", cfg.Topic).Msg("Subscribed")
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)

	// With connect retry enabled the token completes once the first attempt is
	// made; later attempts continue in the background.
	token := client.Connect()
	if token.WaitTimeout(mqttTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.MQTTBroker, token.Error())
	}

	return &mqttBridge{client: client, logger: log}, nil
}

func (m *mqttBridge) Publish(topic string, qos byte, payload []byte) error {
	token := m.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}

	return token.Error()
}

func (m *mqttBridge) Close() {
	m.client.Disconnect(disconnectQuiesce)
}
