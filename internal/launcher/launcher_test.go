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

package launcher

import (
	"net"
	"testing"
	"time"

	"pynodex.io/supervisord/internal/appdir"
	"pynodex.io/supervisord/internal/record"
)

func TestStartRejectsNameCollision(t *testing.T) {
	l := New(appdir.New(t.TempDir()))
	existing := map[string]*record.ProcessRecord{
		"web": {Name: "web"},
	}
	_, err := l.Start(record.StartOptions{Name: "web", Command: "true"}, existing, true)
	if err == nil {
		t.Fatal("expected a collision error, got nil")
	}
}

func TestStartRejectsEmptyName(t *testing.T) {
	l := New(appdir.New(t.TempDir()))
	_, err := l.Start(record.StartOptions{Command: "true"}, nil, true)
	if err == nil {
		t.Fatal("expected an error for empty name, got nil")
	}
}

func TestStartRejectsMissingCwd(t *testing.T) {
	l := New(appdir.New(t.TempDir()))
	_, err := l.Start(record.StartOptions{Name: "web", Command: "true", Cwd: "/no/such/directory"}, nil, true)
	if err == nil {
		t.Fatal("expected an error for missing cwd, got nil")
	}
}

func TestCheckPortRange(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"below range", 80, true},
		{"above range", 70000, true},
		{"min boundary", record.MinPort, false},
		{"max boundary", record.MaxPort, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPort(tt.port, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkPort(%d) error = %v, wantErr %v", tt.port, err, tt.wantErr)
			}
		})
	}
}

func TestCheckPortRejectsDuplicateInRegistry(t *testing.T) {
	existing := map[string]*record.ProcessRecord{
		"web": {Name: "web", Port: 9000},
	}
	if err := checkPort(9000, existing); err == nil {
		t.Fatal("expected a collision error for a port already assigned in the registry")
	}
}

func TestCheckPortRejectsPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot bind a test listener: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	if err := checkPort(port, nil); err == nil {
		t.Fatal("expected an error for a port already bound by another listener")
	}
}

func TestStartNoCaptureDirectUsesConsoleSentinel(t *testing.T) {
	l := New(appdir.New(t.TempDir()))
	rec, err := l.Start(record.StartOptions{
		Name:    "console-app",
		Command: "true",
		LogMode: record.LogNoCapture,
	}, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.ConsoleCapture() {
		t.Errorf("expected console sentinel for stdout/stderr, got %q / %q", rec.StdoutLog, rec.StderrLog)
	}
}

func TestStartNoCaptureInsideDaemonStillWritesFiles(t *testing.T) {
	l := New(appdir.New(t.TempDir()))
	rec, err := l.Start(record.StartOptions{
		Name:    "daemon-app",
		Command: "true",
		LogMode: record.LogNoCapture,
	}, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ConsoleCapture() {
		t.Error("a daemon-managed process must always capture to a file, even when no-capture was requested")
	}
}

func TestStartDefaultCapturePopulatesLogPaths(t *testing.T) {
	dir := appdir.New(t.TempDir())
	l := New(dir)
	rec, err := l.Start(record.StartOptions{
		Name:    "web",
		Command: "echo hi",
	}, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.StdoutLog != dir.StdoutLog("web") {
		t.Errorf("StdoutLog = %q, want %q", rec.StdoutLog, dir.StdoutLog("web"))
	}
	if rec.StderrLog != dir.StderrLog("web") {
		t.Errorf("StderrLog = %q, want %q", rec.StderrLog, dir.StderrLog("web"))
	}
	if rec.Status != record.StatusRunning {
		t.Errorf("Status = %q, want %q", rec.Status, record.StatusRunning)
	}
	if rec.PID == 0 {
		t.Error("expected a non-zero PID after spawn")
	}

	// Give the short-lived child a moment to exit so the test does not
	// leak a zombie into the process table.
	time.Sleep(20 * time.Millisecond)
}

func TestStopNoSuchProcess(t *testing.T) {
	if got := Stop(0, 10*time.Millisecond, 10*time.Millisecond); got != StopNoSuchProcess {
		t.Errorf("Stop(0, ...) = %v, want StopNoSuchProcess", got)
	}
}
