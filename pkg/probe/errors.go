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

package probe

import "errors"

var (
	ErrInvalidVerdict     = errors.New("invalid probe verdict")
	ErrSimulatedFailure   = errors.New("simulated network failure")
	errInvalidLatency     = errors.New("max latency must not be below min latency")
	errInvalidProbability = errors.New("probability must be within [0, 1]")
)
