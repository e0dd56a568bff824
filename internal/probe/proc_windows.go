// Copyright 2024 github.com/ucirello, cirello.io, U. Cirello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build windows

package probe

import "os"

// GenericProber answers liveness only: os.Process.Signal only supports
// os.Kill on Windows, so an OpenProcess-based existence check stands in
// for the Unix Signal(0) idiom.
type GenericProber struct{}

// NewLinuxProber is kept as the constructor name across platforms so
// callers do not need a build-tagged switch of their own.
func NewLinuxProber() *GenericProber { return &GenericProber{} }

// Snapshot implements Prober.
func (p *GenericProber) Snapshot(pid int) Snapshot {
	// os.FindProcess opens a handle to the PID on Windows and fails when
	// it cannot; CPU and RSS are not read here, so a PID it can open is
	// reported as present but unobservable.
	if _, err := os.FindProcess(pid); err != nil {
		return NotFound(pid)
	}
	return Denied(pid)
}
