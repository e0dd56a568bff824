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

// Package probe is the OS Probe (component B): given a PID, it returns a
// snapshot of liveness, status, CPU%, RSS, name, and cmdline, or a
// not-found/access-denied sentinel. CPU% is an instantaneous sample: the
// prober keeps the previous jiffy count per PID and divides the delta by
// wall-clock elapsed, so the very first observation of a PID reports 0
// rather than blocking to measure an interval.
package probe

import (
	"time"

	"pynodex.io/supervisord/internal/record"
)

// Snapshot is the result of probing one PID.
type Snapshot struct {
	PID           int
	Name          string
	Status        string
	CPUPercent    float64
	MemoryPercent float64
	RSSMB         float64
	Cmdline       string
	CreateTime    time.Time

	// Found is false when the PID does not exist.
	Found bool
	// AccessDenied is true when the PID exists but its details could not
	// be read; Status is then record.StatusAccessDenied and the metrics
	// are zeroed, per §4.2.
	AccessDenied bool
}

// NotFound builds the "process does not exist" sentinel result.
func NotFound(pid int) Snapshot {
	return Snapshot{PID: pid, Found: false}
}

// Denied builds the "present but unobservable" sentinel result.
func Denied(pid int) Snapshot {
	return Snapshot{PID: pid, Found: true, AccessDenied: true, Status: record.StatusAccessDenied}
}

// Prober returns a Snapshot for a PID.
type Prober interface {
	Snapshot(pid int) Snapshot
}
