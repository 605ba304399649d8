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

import "errors"

var (
	ErrMissingNATSURL       = errors.New("NATS URL is required")
	ErrInvalidSubject       = errors.New("subject must end in a device wildcard")
	ErrInvalidBufferedLines = errors.New("max_buffered_lines must not be negative")
	ErrInvalidJSON          = errors.New("failed to unmarshal JSON configuration")
	errMissingDeviceID      = errors.New("subject carries no device id")
)
