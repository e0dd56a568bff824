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

package record

import "testing"

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantMB    float64
		wantOK    bool
	}{
		{"plain mb", "200MB", 200, true},
		{"plain gb", "1GB", 1024, true},
		{"lowercase", "10mb", 10, true},
		{"fractional", "1.5GB", 1536, true},
		{"surrounding space", "  250 MB  ", 250, true},
		{"mixed case unit", "2Gb", 2048, true},
		{"no unit", "200", 0, false},
		{"garbage", "lots", 0, false},
		{"empty", "", 0, false},
		{"negative sign rejected", "-5MB", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMB, gotOK := ParseMemoryLimit(tt.input)
			if gotOK != tt.wantOK {
				t.Fatalf("ParseMemoryLimit(%q) ok = %v, want %v", tt.input, gotOK, tt.wantOK)
			}
			if gotOK && gotMB != tt.wantMB {
				t.Fatalf("ParseMemoryLimit(%q) = %v, want %v", tt.input, gotMB, tt.wantMB)
			}
		})
	}
}

func TestConsoleCapture(t *testing.T) {
	r := ProcessRecord{StdoutLog: ConsoleSentinel, StderrLog: ConsoleSentinel}
	if !r.ConsoleCapture() {
		t.Fatal("expected console capture to be true")
	}
	r.StderrLog = "/var/log/x_stderr.log"
	if r.ConsoleCapture() {
		t.Fatal("expected console capture to be false once paths diverge from the sentinel")
	}
}

func TestHasPortAndPID(t *testing.T) {
	r := ProcessRecord{}
	if r.HasPort() || r.HasPID() {
		t.Fatal("zero-value record should report no port and no pid")
	}
	r.Port = MinPort
	r.PID = 42
	if !r.HasPort() || !r.HasPID() {
		t.Fatal("expected HasPort/HasPID true once fields are set")
	}
}
