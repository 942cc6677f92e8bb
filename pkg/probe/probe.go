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

// Package probe determines whether a network address is reachable.
package probe

//go:generate mockgen -destination=mock_probe.go -package=probe github.com/carverauto/devicewatch/pkg/probe Prober

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/devicewatch/pkg/models"
)

// Prober checks one address and returns UP or DOWN. Any failure to reach a
// verdict is reported as a *ProbeError. Probe blocks the calling goroutine.
type Prober interface {
	Probe(ctx context.Context, address string) (models.DeviceStatus, error)
}

// ProbeError reports a probe that produced no verdict.
type ProbeError struct {
	Address string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Address, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Verify normalizes a prober result so callers only ever see a confirmed
// status or a *ProbeError.
func Verify(address string, status models.DeviceStatus, err error) (models.DeviceStatus, error) {
	if err != nil {
		var pe *ProbeError
		if errors.As(err, &pe) {
			return "", err
		}

		return "", &ProbeError{Address: address, Err: err}
	}

	if !status.IsConfirmed() {
		return "", &ProbeError{Address: address, Err: fmt.Errorf("%w: %q", ErrInvalidVerdict, status)}
	}

	return status, nil
}
