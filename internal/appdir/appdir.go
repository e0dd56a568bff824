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

// Package appdir resolves the on-disk locations the daemon owns: the
// registry file, the log capture directory, the control socket, and the
// daemon's own PID and log files.
package appdir

import (
	"os"
	"path/filepath"
)

const (
	defaultDirName    = "pynodex"
	registryFileName  = "processes.json"
	logDirName        = "process_logs"
	socketFileName    = "pynodex_daemon.sock"
	pidFileName       = "pynodex_daemon.pid"
	daemonLogFileName = "pynodex_daemon.log"
)

// Dir describes the application directory and the paths derived from it.
// SocketName and LogDirName default to the stock file/directory names
// but may be overridden independently of Root, matching the daemon's
// --socket-name and --log-dir-name flags.
type Dir struct {
	Root       string
	SocketName string
	LogDirName string
}

// Default resolves the application directory under the invoking user's
// local data area, same as spec.md §6.
func Default() (Dir, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Dir{}, err
	}
	return Dir{
		Root:       filepath.Join(home, ".local", "share", defaultDirName),
		SocketName: socketFileName,
		LogDirName: logDirName,
	}, nil
}

// New builds a Dir rooted at an explicit path, used when --app-dir
// overrides the default.
func New(root string) Dir {
	return Dir{Root: root, SocketName: socketFileName, LogDirName: logDirName}
}

// Ensure creates the application directory and its log subdirectory.
func (d Dir) Ensure() error {
	if err := os.MkdirAll(d.Root, 0o700); err != nil {
		return err
	}
	return os.MkdirAll(d.LogDir(), 0o700)
}

// RegistryFile is the path of the persistent process table.
func (d Dir) RegistryFile() string { return filepath.Join(d.Root, registryFileName) }

// LogDir is the default per-child capture directory.
func (d Dir) LogDir() string {
	name := d.LogDirName
	if name == "" {
		name = logDirName
	}
	return filepath.Join(d.Root, name)
}

// SocketFile is the control socket path.
func (d Dir) SocketFile() string {
	name := d.SocketName
	if name == "" {
		name = socketFileName
	}
	return filepath.Join(d.Root, name)
}

// PIDFile holds the textual PID of the running supervisor.
func (d Dir) PIDFile() string { return filepath.Join(d.Root, pidFileName) }

// DaemonLogFile is the supervisor's own structured log.
func (d Dir) DaemonLogFile() string { return filepath.Join(d.Root, daemonLogFileName) }

// StdoutLog is the default capture path for a record's standard output.
func (d Dir) StdoutLog(name string) string {
	return filepath.Join(d.LogDir(), name+"_stdout.log")
}

// StderrLog is the default capture path for a record's standard error.
func (d Dir) StderrLog(name string) string {
	return filepath.Join(d.LogDir(), name+"_stderr.log")
}
