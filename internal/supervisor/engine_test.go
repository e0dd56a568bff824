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

package supervisor

import (
	"log"
	"os"
	"testing"

	"pynodex.io/supervisord/internal/appdir"
	"pynodex.io/supervisord/internal/launcher"
	"pynodex.io/supervisord/internal/probe"
	"pynodex.io/supervisord/internal/record"
)

// fakeProber lets sweep tests drive deterministic probe results without
// touching real PIDs.
type fakeProber struct {
	snapshots map[int]probe.Snapshot
}

func (f *fakeProber) Snapshot(pid int) probe.Snapshot {
	if snap, ok := f.snapshots[pid]; ok {
		return snap
	}
	return probe.NotFound(pid)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := appdir.New(t.TempDir())
	if err := dir.Ensure(); err != nil {
		t.Fatalf("failed to create app dir: %v", err)
	}
	logger := log.New(os.Stderr, "test: ", 0)
	e := New(dir, logger)
	e.Prober = &fakeProber{snapshots: map[int]probe.Snapshot{}}
	return e
}

func TestStartThenListShowsRecord(t *testing.T) {
	e := newTestEngine(t)
	started, err := e.Start(record.StartOptions{Name: "web", Command: "true"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The fake prober reports not-found by default, which List turns into
	// dead/not_found; make the child look alive.
	e.Prober.(*fakeProber).snapshots[started.PID] = probe.Snapshot{PID: started.PID, Found: true, Status: record.StatusRunning}

	merged := e.List()
	rec, ok := merged["web"]
	if !ok {
		t.Fatal("expected \"web\" to appear in List()")
	}
	if rec.Status != record.StatusRunning {
		t.Errorf("Status = %q, want %q", rec.Status, record.StatusRunning)
	}
}

func TestStartRejectsDuplicateName(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Start(record.StartOptions{Name: "web", Command: "true"}, true); err != nil {
		t.Fatalf("unexpected error on first start: %v", err)
	}
	if _, err := e.Start(record.StartOptions{Name: "web", Command: "true"}, true); err == nil {
		t.Fatal("expected second start of the same name to fail")
	}
}

func TestStopUnknownNameFails(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Stop("ghost"); err == nil {
		t.Fatal("expected an error stopping an unregistered name")
	}
}

func TestStopRemovesRecordAfterExit(t *testing.T) {
	e := newTestEngine(t)
	rec, err := e.Start(record.StartOptions{Name: "short", Command: "true"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.Stop(rec.Name); err != nil {
		t.Fatalf("unexpected error stopping: %v", err)
	}

	merged := e.List()
	if _, ok := merged["short"]; ok {
		t.Error("expected the record to be removed after stop")
	}

	// Idempotent stop: a second call must report "unknown" per the
	// invariant in spec §8.
	if err := e.Stop(rec.Name); err == nil {
		t.Error("expected the second stop call to fail as unknown")
	}
}

func TestClearAllEmptiesRegistryAndRecreatesLogDir(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Start(record.StartOptions{Name: "a", Command: "true"}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Start(record.StartOptions{Name: "b", Command: "true"}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.Clear(AllTarget); err != nil {
		t.Fatalf("unexpected error clearing all: %v", err)
	}
	if len(e.List()) != 0 {
		t.Error("expected an empty registry after clear all")
	}
	fi, err := os.Stat(e.Dir.LogDir())
	if err != nil || !fi.IsDir() {
		t.Errorf("expected the log directory to exist after clear all, err=%v", err)
	}

	// Idempotent clear-all: running it twice must not error.
	if err := e.Clear(AllTarget); err != nil {
		t.Errorf("unexpected error on second clear all: %v", err)
	}
}

func TestRestartPreservesParameters(t *testing.T) {
	e := newTestEngine(t)
	opts := record.StartOptions{
		Name:    "web",
		Command: "sleep 5",
		Env:     map[string]string{"FOO": "bar"},
		Policy:  record.Policy{RestartDelayMS: 0},
	}
	before, err := e.Start(opts, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := e.Restart("web")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Restart count = %d, want 1", n)
	}

	after := e.List()["web"]
	if after.Command != before.Command {
		t.Errorf("Command changed across restart: %q != %q", after.Command, before.Command)
	}
	if after.Env["FOO"] != "bar" {
		t.Errorf("Env not preserved across restart: %+v", after.Env)
	}
	if after.PID == before.PID {
		t.Error("expected a new PID after restart")
	}

	// Restart already stopped the original child; make sure neither
	// child outlives the test.
	launcher.Stop(before.PID, 0, 0)
	launcher.Stop(after.PID, 0, 0)
}

func TestSweepMarksNotFoundAsDeadWithoutRestartWhenOptedOut(t *testing.T) {
	e := newTestEngine(t)
	rec, err := e.Start(record.StartOptions{Name: "flaky", Command: "true", Policy: record.Policy{NoAutorestart: true}}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate the child having already exited: the fake prober reports
	// not-found for every PID by default.
	e.Sweep()

	got := e.List()["flaky"]
	if got.Status != record.StatusDeadNotFound {
		t.Errorf("Status = %q, want %q", got.Status, record.StatusDeadNotFound)
	}
	if got.PID != rec.PID {
		t.Error("expected the PID to remain unchanged since NoAutorestart suppresses the restart")
	}
}

func TestSweepLeavesAccessDeniedRecordsUntouched(t *testing.T) {
	e := newTestEngine(t)
	rec, err := e.Start(record.StartOptions{Name: "locked", Command: "true"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.Prober.(*fakeProber).snapshots[rec.PID] = probe.Denied(rec.PID)
	e.Sweep()

	got := e.List()["locked"]
	if got.Status != record.StatusRunning {
		t.Errorf("expected an access-denied record to be left untouched, got status %q", got.Status)
	}
}
