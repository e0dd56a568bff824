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

//go:build linux

package probe

import (
	"os"
	"testing"
	"time"
)

func TestSnapshotSelf(t *testing.T) {
	p := NewLinuxProber()
	pid := os.Getpid()

	got := p.Snapshot(pid)
	if !got.Found {
		t.Fatalf("expected the test process itself to be found, got %+v", got)
	}
	if got.AccessDenied {
		t.Fatalf("did not expect access denied for self, got %+v", got)
	}
	if got.PID != pid {
		t.Fatalf("PID = %d, want %d", got.PID, pid)
	}
	if got.CPUPercent != 0 {
		t.Fatalf("first sample should report 0 CPU percent (no prior baseline), got %v", got.CPUPercent)
	}

	time.Sleep(20 * time.Millisecond)
	second := p.Snapshot(pid)
	if second.CPUPercent < 0 {
		t.Fatalf("CPU percent should never be negative, got %v", second.CPUPercent)
	}
}

func TestSnapshotNotFound(t *testing.T) {
	p := NewLinuxProber()
	// PID 1 exists but belongs to root; a very large PID almost
	// certainly does not exist.
	got := p.Snapshot(1 << 30)
	if got.Found {
		t.Fatalf("expected pid 2^30 to not be found, got %+v", got)
	}
}

func TestStateNameMapping(t *testing.T) {
	if stateNames['R'] != "running" {
		t.Fatalf("expected R to map to running")
	}
	if stateNames['Z'] != "zombie" {
		t.Fatalf("expected Z to map to zombie")
	}
}
