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

package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every ValidationError via errors.Is.
	ErrValidation      = errors.New("validation failed")
	errInvalidDuration = fmt.Errorf("invalid duration")
)

// ValidationError reports a single malformed input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (*ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors collects every field error found in one input.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}

	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ErrorResponse is the JSON body returned for failed API requests.
type ErrorResponse struct {
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  []ValidationError `json:"fields,omitempty"`
}
