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

// Package launcher is the Child Launcher (component C): it validates a
// start request against the current registry, composes the child's
// environment and output redirection, and spawns it detached from the
// daemon's own session.
package launcher

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"pynodex.io/supervisord/internal/appdir"
	"pynodex.io/supervisord/internal/perr"
	"pynodex.io/supervisord/internal/record"
)

// signalKind distinguishes a graceful request from a forced one; the
// build-tagged cmd_*.go files translate it to the platform's mechanism.
type signalKind int

const (
	termSignal signalKind = iota
	killSignal
)

// Launcher spawns children on behalf of the Lifecycle Engine.
type Launcher struct {
	Dir appdir.Dir
}

// New builds a Launcher rooted at dir.
func New(dir appdir.Dir) *Launcher {
	return &Launcher{Dir: dir}
}

// Start validates opts against existing (the registry as currently
// loaded) and spawns the child, returning the fresh record to register.
// direct is true when invoked from an unsupervised (non-daemon) caller,
// which changes how "no-capture" mode is honored (§4.3 step 4).
func (l *Launcher) Start(opts record.StartOptions, existing map[string]*record.ProcessRecord, direct bool) (*record.ProcessRecord, error) {
	if opts.Name == "" {
		return nil, perr.New(perr.UserInput, "launcher.Start", fmt.Errorf("name must not be empty"))
	}
	if _, ok := existing[opts.Name]; ok {
		return nil, perr.New(perr.Collision, "launcher.Start", fmt.Errorf("process %q already exists", opts.Name))
	}
	if opts.Cwd != "" {
		fi, err := os.Stat(opts.Cwd)
		if err != nil || !fi.IsDir() {
			return nil, perr.New(perr.UserInput, "launcher.Start", fmt.Errorf("cwd %q does not exist or is not a directory", opts.Cwd))
		}
	}
	if opts.Port != 0 {
		if err := checkPort(opts.Port, existing); err != nil {
			return nil, err
		}
	}

	env := composeEnv(opts.Env)

	stdoutPath, stderrPath, stdout, stderr, err := l.openCapture(opts, direct)
	if err != nil {
		return nil, perr.New(perr.Internal, "launcher.Start", err)
	}

	cmd := buildCommand(opts.Command)
	cmd.Dir = opts.Cwd
	cmd.Env = env
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}

	if err := cmd.Start(); err != nil {
		if stdout != nil {
			stdout.Close()
		}
		if stderr != nil && stderr != stdout {
			stderr.Close()
		}
		return nil, perr.New(perr.OSMissing, "launcher.Start", err)
	}

	// Reap the child when it exits, so an exited child does not linger as
	// a zombie that still answers processAlive and /proc lookups.
	go cmd.Wait()

	// The launcher's own copies are no longer needed once the child has
	// inherited the descriptors.
	if stdout != nil {
		stdout.Close()
	}
	if stderr != nil && stderr != stdout {
		stderr.Close()
	}

	rec := &record.ProcessRecord{
		Name:      opts.Name,
		Command:   opts.Command,
		Cwd:       opts.Cwd,
		Env:       opts.Env,
		Port:      opts.Port,
		PID:       cmd.Process.Pid,
		Status:    record.StatusRunning,
		StartTime: time.Now(),
		StdoutLog: stdoutPath,
		StderrLog: stderrPath,
		Policy:    opts.Policy,
	}
	return rec, nil
}

// StopOutcome is the result of Stop, which signals pid to terminate,
// waiting up to graceful before escalating to a forced kill and waiting
// up to forced more. See §4.4.
type StopOutcome int

// Stop outcomes.
const (
	StopSuccess StopOutcome = iota
	StopNoSuchProcess
	StopForbidden
)

// Stop implements the four outcomes of §4.4's stop table.
func Stop(pid int, graceful, forced time.Duration) StopOutcome {
	if pid <= 0 {
		return StopNoSuchProcess
	}
	if err := sendSignal(pid, termSignal); err != nil {
		if isNoSuchProcess(err) {
			return StopNoSuchProcess
		}
		if isForbidden(err) {
			return StopForbidden
		}
		// best-effort: fall through to escalate anyway
	}
	if waitForExit(pid, graceful) {
		return StopSuccess
	}
	if err := sendSignal(pid, killSignal); err != nil {
		if isNoSuchProcess(err) {
			return StopNoSuchProcess
		}
		if isForbidden(err) {
			return StopForbidden
		}
	}
	if waitForExit(pid, forced) {
		return StopSuccess
	}
	return StopForbidden
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return !processAlive(pid)
}

// checkPort enforces §4.3 step 2: range, uniqueness across the
// registry, and an advisory bind-then-close probe. It is advisory only
// — the design accepts the TOCTOU window (§9).
func checkPort(port int, existing map[string]*record.ProcessRecord) error {
	if port < record.MinPort || port > record.MaxPort {
		return perr.New(perr.UserInput, "launcher.checkPort", fmt.Errorf("port %d out of range [%d, %d]", port, record.MinPort, record.MaxPort))
	}
	for name, rec := range existing {
		if rec.Port == port {
			return perr.New(perr.Collision, "launcher.checkPort", fmt.Errorf("port %d already in use by %q", port, name))
		}
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return perr.New(perr.Collision, "launcher.checkPort", fmt.Errorf("port %d is already in use by another application or is reserved", port))
	}
	ln.Close()
	return nil
}

func composeEnv(overlay map[string]string) []string {
	env := os.Environ()
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}

// openCapture opens the log destinations for a new child per the log
// mode contract of §4.3 step 4, returning the paths to store in the
// record (or the console sentinel) and the file handles to redirect
// into, if any.
func (l *Launcher) openCapture(opts record.StartOptions, direct bool) (stdoutPath, stderrPath string, stdout, stderr *os.File, err error) {
	switch opts.LogMode {
	case record.LogNoCapture:
		if direct {
			return record.ConsoleSentinel, record.ConsoleSentinel, nil, nil, nil
		}
		// Invoked inside the daemon: substitute default paths so
		// capture always occurs, even though the caller asked for
		// console output.
		return l.openDefaultCapture(opts.Name)
	case record.LogCustomPath:
		path, err := filepath.Abs(opts.Log)
		if err != nil {
			return "", "", nil, nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return "", "", nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return "", "", nil, nil, err
		}
		return path, path, f, f, nil
	default: // record.LogDefault or unset
		return l.openDefaultCapture(opts.Name)
	}
}

func (l *Launcher) openDefaultCapture(name string) (stdoutPath, stderrPath string, stdout, stderr *os.File, err error) {
	if err := os.MkdirAll(l.Dir.LogDir(), 0o700); err != nil {
		return "", "", nil, nil, err
	}
	outPath := l.Dir.StdoutLog(name)
	errPath := l.Dir.StderrLog(name)
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return "", "", nil, nil, err
	}
	errFile, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		out.Close()
		return "", "", nil, nil, err
	}
	return outPath, errPath, out, errFile, nil
}
