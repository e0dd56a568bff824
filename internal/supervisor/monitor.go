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
	"time"

	"pynodex.io/supervisord/internal/record"
)

// Sweep is the Policy Monitor (E): one pass over the registry, per
// spec §4.5. State changes are persisted before Sweep returns.
func (e *Engine) Sweep() {
	table := e.Store.Load()
	dirty := false

	for name, rec := range table {
		if !rec.HasPID() {
			if rec.Status == record.StatusRunning {
				// No PID but marked running: treated as crashed.
				rec.Status = record.StatusDeadNotFound
				dirty = true
				e.restartAndSync(table, name, rec)
			}
			continue
		}

		snap := e.Prober.Snapshot(rec.PID)
		switch {
		case !snap.Found:
			rec.Status = record.StatusDeadNotFound
			dirty = true
			e.restartAndSync(table, name, rec)
			continue
		case snap.AccessDenied:
			// Present but unobservable: leave untouched.
			continue
		}

		if rec.Status != snap.Status {
			rec.Status = snap.Status
			dirty = true
		}

		if rec.MaxCPURestart > 0 && snap.CPUPercent > rec.MaxCPURestart {
			e.Log.Printf("%q exceeded CPU ceiling (%.1f%% > %.1f%%), restarting", name, snap.CPUPercent, rec.MaxCPURestart)
			e.restartAndSync(table, name, rec)
			continue
		}

		if limitMB, ok := record.ParseMemoryLimit(rec.MaxMemoryRestart); ok && snap.RSSMB > limitMB {
			e.Log.Printf("%q exceeded memory ceiling (%.1fMB > %.1fMB), restarting", name, snap.RSSMB, limitMB)
			e.restartAndSync(table, name, rec)
			continue
		}
	}

	if dirty {
		if err := e.Store.Save(table); err != nil {
			e.Log.Printf("sweep: failed to persist registry: %v", err)
		}
	}
}

// restartAndSync invokes the restart helper (§4.5.1) and, if a restart
// was actually attempted, reconciles table[name] against what the
// helper persisted. restartOne runs its own independent Load/Save
// cycle against the registry file; left alone, Sweep's trailing
// whole-table Save would overwrite that work with the stale
// pre-restart entry still sitting in the local table, resurrecting the
// dead PID it just replaced (or, if the restart itself failed after
// already deleting the old entry, resurrecting a record that no longer
// exists on disk at all). Re-reading the single name after the
// restart and folding it back into table keeps the trailing Save a
// no-op for that entry instead of a regression.
func (e *Engine) restartAndSync(table map[string]*record.ProcessRecord, name string, rec *record.ProcessRecord) {
	if !e.maybeRestart(name, rec) {
		return
	}
	fresh := e.Store.Load()
	if newRec, ok := fresh[name]; ok {
		table[name] = newRec
	} else {
		delete(table, name)
	}
}

// maybeRestart invokes the restart helper (§4.5.1) unless the record
// opted out. The delay sleep blocks the sweep itself: it is one of the
// loop's three bounded suspension points (§5), not backgrounded. It
// reports whether a restart was attempted, not whether it succeeded.
func (e *Engine) maybeRestart(name string, rec *record.ProcessRecord) bool {
	if rec.NoAutorestart {
		return false
	}
	e.restartWithDelay(name, rec)
	return true
}

// restartWithDelay implements §4.5.1: sleep, Stop, Start with the
// original parameters. Failures are logged, never raised.
func (e *Engine) restartWithDelay(name string, rec *record.ProcessRecord) {
	if rec.RestartDelayMS > 0 {
		time.Sleep(time.Duration(rec.RestartDelayMS) * time.Millisecond)
	}
	if err := e.restartOne(name); err != nil {
		e.Log.Printf("auto-restart %q: %v", name, err)
	}
}
