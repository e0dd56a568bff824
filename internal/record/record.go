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

// Package record holds the authoritative ProcessRecord type and the
// small value types it is built from. The wire format and the on-disk
// registry both serialize this shape; unknown keys are dropped on
// decode, never rejected.
package record

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ConsoleSentinel marks a record created in no-capture mode: standard
// streams were inherited from the caller instead of redirected to a
// file.
const ConsoleSentinel = "N/A (console)"

// Status strings. Any other value is a live status string returned
// verbatim by the OS probe (e.g. "sleeping").
const (
	StatusRunning      = "running"
	StatusStopped      = "stopped"
	StatusDeadNotFound = "dead/not_found"
	StatusNoPID        = "no_pid"
	StatusAccessDenied = "Access Denied"
)

// LogMode selects how a child's standard streams are captured.
type LogMode string

// Log modes accepted by the launcher.
const (
	LogDefault    LogMode = "default"
	LogCustomPath LogMode = "custom-path"
	LogNoCapture  LogMode = "no-capture"
)

// MinPort and MaxPort bound the advisory port range of §3.
const (
	MinPort = 1024
	MaxPort = 65535
)

// Policy carries the restart and resource fields of §3. watch, cron and
// time_prefix_logs are reserved: stored and round-tripped, never acted
// on by the core.
type Policy struct {
	MaxCPURestart    float64 `json:"max_cpu_restart,omitempty"`
	MaxMemoryRestart string  `json:"max_memory_restart,omitempty"`
	RestartDelayMS   int     `json:"restart_delay_ms,omitempty"`
	NoAutorestart    bool    `json:"no_autorestart,omitempty"`
	Watch            bool    `json:"watch,omitempty"`
	Cron             string  `json:"cron,omitempty"`
	TimePrefixLogs   bool    `json:"time_prefix_logs,omitempty"`
}

// ProcessRecord is the persistent description of one managed child plus
// its last-known runtime facts (§3).
type ProcessRecord struct {
	Name      string            `json:"name"`
	Command   string            `json:"command"`
	Cwd       string            `json:"cwd,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Port      int               `json:"port,omitempty"`
	PID       int               `json:"pid,omitempty"`
	Status    string            `json:"status"`
	StartTime time.Time         `json:"start_time"`
	StdoutLog string            `json:"stdout_log"`
	StderrLog string            `json:"stderr_log"`
	Policy
}

// HasPort reports whether the record was started with an advisory port.
func (r *ProcessRecord) HasPort() bool { return r.Port != 0 }

// HasPID reports whether a PID was ever recorded.
func (r *ProcessRecord) HasPID() bool { return r.PID != 0 }

// ConsoleCapture reports whether the record's output is console-only
// rather than a pair of real log files.
func (r *ProcessRecord) ConsoleCapture() bool {
	return r.StdoutLog == ConsoleSentinel && r.StderrLog == ConsoleSentinel
}

// StartOptions is the set of inputs a caller supplies to start a new
// record. It is shared by the IPC "start" verb and any direct (daemon
// bootstrap) invocation.
type StartOptions struct {
	Name    string
	Command string
	Cwd     string
	Env     map[string]string
	Port    int
	Log     string // custom log path, only meaningful with LogMode == LogCustomPath
	LogMode LogMode
	Policy
}

var memLimitPattern = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*(MB|GB)\s*$`)

// ParseMemoryLimit parses the grammar of §6:
// `^\s*(\d+(?:\.\d+)?)\s*(MB|GB)\s*$` (case-insensitive), MB = 1 MiB,
// GB = 1024 MiB. Values that do not parse report ok == false, meaning
// "no limit".
func ParseMemoryLimit(s string) (limitMB float64, ok bool) {
	m := memLimitPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "GB") {
		v *= 1024
	}
	return v, true
}
