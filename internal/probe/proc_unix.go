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

//go:build !linux && !windows

package probe

import (
	"os"
	"syscall"
)

// GenericProber answers liveness only, through the portable
// FindProcess/Signal(0) idiom; systems without a /proc-like interface
// have no portable way to read CPU/RSS without cgo, so those fields are
// reported as "present but unobservable".
type GenericProber struct{}

// NewLinuxProber is kept as the constructor name across platforms so
// callers do not need a build-tagged switch of their own.
func NewLinuxProber() *GenericProber { return &GenericProber{} }

// Snapshot implements Prober.
func (p *GenericProber) Snapshot(pid int) Snapshot {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return NotFound(pid)
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return NotFound(pid)
	}
	return Denied(pid)
}
