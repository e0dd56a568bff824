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

package registry

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"pynodex.io/supervisord/internal/record"
)

func newTestRecord(name string, port int) *record.ProcessRecord {
	return &record.ProcessRecord{
		Name:      name,
		Command:   "sleep 30",
		Status:    record.StatusRunning,
		PID:       1000 + port,
		Port:      port,
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		StdoutLog: "/var/log/" + name + "_stdout.log",
		StderrLog: "/var/log/" + name + "_stderr.log",
	}
}

func diffTables(want, got Table) string {
	return cmp.Diff(want, got)
}
