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

// Package version reports the build of the running binary.
package version

import "runtime"

// Set with -ldflags "-X github.com/carverauto/devicewatch/pkg/version.version=..."
//
//nolint:gochecknoglobals // ldflags injection
var (
	version = "dev"
	buildID = "dev"
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   version,
		BuildID:   buildID,
		GoVersion: runtime.Version(),
	}
}

// String renders the version with its build id, e.g. "1.2.0 (build: abc123)".
func (i Info) String() string {
	return i.Version + " (build: " + i.BuildID + ")"
}
