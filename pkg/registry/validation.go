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

package registry

import (
	"regexp"
	"strings"

	"github.com/carverauto/devicewatch/pkg/models"
)

// ipv4Pattern is a dotted-quad shape check. Octet ranges are not enforced.
var ipv4Pattern = regexp.MustCompile(`^(?:[0-9]{1,3}\.){3}[0-9]{1,3}$`)

// ValidateRegistration checks every field and reports all problems at once.
func ValidateRegistration(reg *models.Registration) error {
	if reg == nil {
		return models.ValidationErrors{{Field: "registration", Message: "registration is required"}}
	}

	var errs models.ValidationErrors

	if strings.TrimSpace(reg.Name) == "" {
		errs = append(errs, &models.ValidationError{Field: "name", Message: "Name is required."})
	}

	if !reg.Type.IsValid() {
		errs = append(errs, &models.ValidationError{Field: "type", Message: "Unknown device type."})
	}

	errs = append(errs, validateAddress(reg.IPAddress)...)

	if len(errs) > 0 {
		return errs
	}

	return nil
}

func validateAddress(address string) models.ValidationErrors {
	switch {
	case strings.TrimSpace(address) == "":
		return models.ValidationErrors{{Field: "ip_address", Message: "IP Address is required."}}
	case !ipv4Pattern.MatchString(address):
		return models.ValidationErrors{{Field: "ip_address", Message: "Please enter a valid IP address."}}
	}

	return nil
}

// validateSeed checks an inventory record. Seeded devices must already carry
// a confirmed status.
func validateSeed(d *models.Device) models.ValidationErrors {
	var errs models.ValidationErrors

	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, &models.ValidationError{Field: "name", Message: "Name is required."})
	}

	if !d.Type.IsValid() {
		errs = append(errs, &models.ValidationError{Field: "type", Message: "Unknown device type."})
	}

	if !d.Status.IsConfirmed() {
		errs = append(errs, &models.ValidationError{Field: "status", Message: "Status must be UP or DOWN."})
	}

	errs = append(errs, validateAddress(d.IPAddress)...)

	return errs
}
