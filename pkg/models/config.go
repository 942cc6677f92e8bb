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
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that accepts either a Go duration
// string ("5s") or a number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	return d.set(v)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return err
	}

	if i, ok := v.(int); ok {
		v = float64(i)
	}

	return d.set(v)
}

func (d *Duration) set(v interface{}) error {
	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))

		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// NATSConfig configures the optional event publisher.
type NATSConfig struct {
	URL     string     `json:"url" yaml:"url"`
	Stream  string     `json:"stream" yaml:"stream"`
	Domain  string     `json:"domain,omitempty" yaml:"domain,omitempty"`
	Subject string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	Source  string     `json:"source,omitempty" yaml:"source,omitempty"`
	Timeout Duration   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	TLS     *TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// TLSConfig holds client certificate paths for mutual TLS. Relative paths
// are resolved against CertDir.
type TLSConfig struct {
	CertDir    string `json:"cert_dir,omitempty" yaml:"cert_dir,omitempty"`
	CertFile   string `json:"cert_file" yaml:"cert_file"`
	KeyFile    string `json:"key_file" yaml:"key_file"`
	CAFile     string `json:"ca_file" yaml:"ca_file"`
	ServerName string `json:"server_name,omitempty" yaml:"server_name,omitempty"`
}

// SimulationConfig tunes the simulated prober.
type SimulationConfig struct {
	MinLatency         Duration `json:"min_latency" yaml:"min_latency"`
	MaxLatency         Duration `json:"max_latency" yaml:"max_latency"`
	UpProbability      float64  `json:"up_probability" yaml:"up_probability"`
	FailureProbability float64  `json:"failure_probability" yaml:"failure_probability"`
}
