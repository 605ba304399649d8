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

package main

import (
	"context"
	"flag"
	"log"

	"github.com/carverauto/meshcast/pkg/config/bootstrap"
	"github.com/carverauto/meshcast/pkg/lifecycle"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/version"
	"github.com/carverauto/meshcast/pkg/wsgateway"
)

func main() {
	configPath := flag.String("config", "/etc/meshcast/fanout-gateway.json", "Path to config file")
	flag.Parse()

	ctx := context.Background()

	var cfg wsgateway.Config
	bootstrapResult, err := bootstrap.Service(ctx, *configPath, &cfg, nil)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	defer func() { _ = bootstrapResult.Close() }()

	loggerConfig := cfg.Logging
	if loggerConfig == nil {
		loggerConfig = logger.DefaultConfig()
	}

	serviceLogger, err := lifecycle.CreateComponentLogger(ctx, "fanout-gateway", loggerConfig)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err) //nolint:gocritic // bootstrap connection is released on exit
	}
	defer func() { _ = lifecycle.ShutdownLogger() }()

	serviceLogger.Info().Object("build", version.Info{}).Msg("Starting fanout-gateway")

	svc := wsgateway.NewService(&cfg, serviceLogger)

	if err := lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		ServiceName: "fanout-gateway",
		Service:     svc,
		Logger:      serviceLogger,
	}); err != nil {
		log.Fatalf("Service failed: %v", err)
	}
}
