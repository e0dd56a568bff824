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

// Package supervisor is the Lifecycle Engine (D) and Policy Monitor (E):
// it is the only writer of the registry, serializing start, stop,
// restart, reload, and clear transitions, and it periodically sweeps
// live processes against policy.
package supervisor

import (
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"pynodex.io/supervisord/internal/appdir"
	"pynodex.io/supervisord/internal/launcher"
	"pynodex.io/supervisord/internal/perr"
	"pynodex.io/supervisord/internal/probe"
	"pynodex.io/supervisord/internal/record"
	"pynodex.io/supervisord/internal/registry"
)

// AllTarget is the literal target name meaning "every record."
const AllTarget = "all"

const (
	gracefulWait = 5 * time.Second
	forcedWait   = 2 * time.Second
)

// Engine owns all registry mutation. One Engine instance is shared by
// the IPC server and the supervisor loop; it is safe only because
// callers invoke it from the single-threaded reconciliation loop (§5).
type Engine struct {
	Dir      appdir.Dir
	Store    *registry.Store
	Launcher *launcher.Launcher
	Prober   probe.Prober
	Log      *log.Logger
}

// New builds an Engine wired to the given application directory.
func New(dir appdir.Dir, logger *log.Logger) *Engine {
	return &Engine{
		Dir:      dir,
		Store:    registry.New(dir.RegistryFile(), logger),
		Launcher: launcher.New(dir),
		Prober:   probe.NewLinuxProber(),
		Log:      logger,
	}
}

// Start registers and launches a new record. direct is true when the
// request did not originate from the daemon-managed IPC path.
func (e *Engine) Start(opts record.StartOptions, direct bool) (*record.ProcessRecord, error) {
	table := e.Store.Load()
	rec, err := e.Launcher.Start(opts, table, direct)
	if err != nil {
		return nil, err
	}
	table[rec.Name] = rec
	if err := e.Store.Save(table); err != nil {
		return nil, perr.New(perr.Storage, "Engine.Start", err)
	}
	return rec, nil
}

// Stop implements §4.4's stop table for a single name. On every outcome
// except "forbidden by OS" the record is unconditionally removed.
func (e *Engine) Stop(name string) error {
	table := e.Store.Load()
	rec, ok := table[name]
	if !ok {
		return perr.New(perr.UserInput, "Engine.Stop", fmt.Errorf("no such process: %q", name))
	}

	outcome := launcher.Stop(rec.PID, gracefulWait, forcedWait)
	if outcome == launcher.StopForbidden {
		return perr.New(perr.OSDenied, "Engine.Stop", fmt.Errorf("operating system refused to stop %q", name))
	}

	delete(table, name)
	if err := e.Store.Save(table); err != nil {
		return perr.New(perr.Storage, "Engine.Stop", err)
	}
	return nil
}

// List returns the registry merged with a live probe snapshot per
// record, as §4.6's `list` verb specifies.
func (e *Engine) List() map[string]MergedRecord {
	table := e.Store.Load()
	out := make(map[string]MergedRecord, len(table))
	for name, rec := range table {
		merged := MergedRecord{ProcessRecord: *rec}
		if rec.HasPID() {
			snap := e.Prober.Snapshot(rec.PID)
			merged.Snapshot = snap
			// Reflect a crashed process into the displayed status too, so
			// a client reading status directly (not live.found) still
			// sees dead rather than the stale stored "running" value.
			if !snap.Found {
				merged.Status = record.StatusDeadNotFound
			}
		}
		out[name] = merged
	}
	return out
}

// MergedRecord is the `list` response shape: the stored record plus
// whatever the OS probe currently reports for its PID.
type MergedRecord struct {
	record.ProcessRecord
	Snapshot probe.Snapshot `json:"live,omitempty"`
}

// Save writes the current in-memory view back to (A). Since this
// engine never caches state between calls, Save is a pass-through
// load-then-save that exists to satisfy the `save` verb's contract of
// an explicit flush point for callers that expect one.
func (e *Engine) Save() error {
	table := e.Store.Load()
	if err := e.Store.Save(table); err != nil {
		return perr.New(perr.Storage, "Engine.Save", err)
	}
	return nil
}

// Restart performs Stop followed by Start with the original parameters,
// for target (a single name or AllTarget), in stable registry order.
// A per-name failure does not abort the batch; it returns the count of
// successful restarts.
func (e *Engine) Restart(target string) (int, error) {
	names, err := e.resolveTargets(target)
	if err != nil {
		return 0, err
	}
	successes := 0
	for _, name := range names {
		if err := e.restartOne(name); err != nil {
			e.Log.Printf("restart %q: %v", name, err)
			continue
		}
		successes++
	}
	return successes, nil
}

func (e *Engine) restartOne(name string) error {
	table := e.Store.Load()
	rec, ok := table[name]
	if !ok {
		return fmt.Errorf("no such process: %q", name)
	}
	opts := startOptionsFromRecord(rec)

	// Stop tolerates "already dead": a missing PID is not a failure
	// here, only an OS-forbidden kill is.
	if rec.HasPID() {
		if outcome := launcher.Stop(rec.PID, gracefulWait, forcedWait); outcome == launcher.StopForbidden {
			return fmt.Errorf("operating system refused to stop %q", name)
		}
	}

	// Re-read so the Start below observes a registry with the old
	// entry already gone (§4.4 re-entrancy rule).
	table = e.Store.Load()
	delete(table, name)
	if err := e.Store.Save(table); err != nil {
		return err
	}

	table = e.Store.Load()
	newRec, err := e.Launcher.Start(opts, table, false)
	if err != nil {
		return err
	}
	table[newRec.Name] = newRec
	return e.Store.Save(table)
}

// Reload starts a new instance before stopping the old one, retrying
// once via a stop-then-start if the first attempt collides (typically
// a port still held by the outgoing instance). This transiently
// violates name uniqueness by design (spec §9's open question);
// parity with the source is preserved rather than fixed.
func (e *Engine) Reload(target string) (int, error) {
	names, err := e.resolveTargets(target)
	if err != nil {
		return 0, err
	}
	successes := 0
	for _, name := range names {
		if err := e.reloadOne(name); err != nil {
			e.Log.Printf("reload %q: %v", name, err)
			continue
		}
		successes++
	}
	return successes, nil
}

func (e *Engine) reloadOne(name string) error {
	table := e.Store.Load()
	old, ok := table[name]
	if !ok {
		return fmt.Errorf("no such process: %q", name)
	}
	opts := startOptionsFromRecord(old)
	oldPID := old.PID

	newRec, err := e.Launcher.Start(opts, excludingSelf(table, name), false)
	if err != nil {
		// Start failed, typically a self-port conflict: stop the old
		// instance and retry exactly once.
		if oldPID != 0 {
			launcher.Stop(oldPID, gracefulWait, forcedWait)
		}
		table = e.Store.Load()
		delete(table, name)
		if err := e.Store.Save(table); err != nil {
			return err
		}
		table = e.Store.Load()
		newRec, err = e.Launcher.Start(opts, table, false)
		if err != nil {
			return err
		}
		table[newRec.Name] = newRec
		return e.Store.Save(table)
	}

	table = e.Store.Load()
	table[newRec.Name] = newRec
	if err := e.Store.Save(table); err != nil {
		return err
	}
	if oldPID != 0 {
		launcher.Stop(oldPID, gracefulWait, forcedWait)
	}
	return nil
}

// excludingSelf builds a collision-check view with name removed, so the
// reload path's first Start attempt is not rejected by its own
// about-to-be-replaced entry.
func excludingSelf(table map[string]*record.ProcessRecord, name string) map[string]*record.ProcessRecord {
	out := make(map[string]*record.ProcessRecord, len(table))
	for k, v := range table {
		if k == name {
			continue
		}
		out[k] = v
	}
	return out
}

// Clear stops and removes target (a single name or AllTarget), deleting
// its log files unless they hold the console sentinel. Clearing "all"
// also recreates the log directory from scratch.
func (e *Engine) Clear(target string) error {
	names, err := e.resolveTargets(target)
	if err != nil {
		return err
	}
	for _, name := range names {
		table := e.Store.Load()
		rec, ok := table[name]
		if !ok {
			continue
		}
		if rec.HasPID() {
			launcher.Stop(rec.PID, gracefulWait, forcedWait)
		}
		if !rec.ConsoleCapture() {
			os.Remove(rec.StdoutLog)
			if rec.StderrLog != rec.StdoutLog {
				os.Remove(rec.StderrLog)
			}
		}
		delete(table, name)
		if err := e.Store.Save(table); err != nil {
			return err
		}
	}
	if target == AllTarget {
		os.RemoveAll(e.Dir.LogDir())
		if err := os.MkdirAll(e.Dir.LogDir(), 0o700); err != nil {
			return perr.New(perr.Storage, "Engine.Clear", err)
		}
	}
	return nil
}

// resolveTargets expands target into the stable-ordered list of names
// it addresses: every registry key (sorted) for AllTarget, or the
// single name itself otherwise (existence is validated by the caller
// when it matters).
func (e *Engine) resolveTargets(target string) ([]string, error) {
	if target != AllTarget {
		return []string{target}, nil
	}
	table := e.Store.Load()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// startOptionsFromRecord replays a stored record's parameters verbatim,
// per spec §9: the command is never re-split, only ever carried as
// originally received.
func startOptionsFromRecord(rec *record.ProcessRecord) record.StartOptions {
	logMode := record.LogDefault
	log := ""
	switch {
	case rec.ConsoleCapture():
		logMode = record.LogNoCapture
	case rec.StdoutLog != "" && rec.StdoutLog == rec.StderrLog:
		// Custom-path mode is the only one that sends both streams to a
		// single file; distinct paths are the default capture pair.
		logMode = record.LogCustomPath
		log = rec.StdoutLog
	}
	return record.StartOptions{
		Name:    rec.Name,
		Command: rec.Command,
		Cwd:     rec.Cwd,
		Env:     rec.Env,
		Port:    rec.Port,
		Log:     log,
		LogMode: logMode,
		Policy:  rec.Policy,
	}
}
