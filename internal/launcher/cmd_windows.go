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

//go:build windows

package launcher

import (
	"os"
	"os/exec"
)

// buildCommand wraps cmd in a shell invocation. Windows has no session
// concept; spawning with no attached console is the equivalent isolation
// from the daemon's own terminal signals.
func buildCommand(cmd string) *exec.Cmd {
	c := exec.Command("cmd", "/c", cmd)
	return c
}

// sendSignal delivers kind to pid. Windows only supports os.Kill through
// os.Process.Signal, so a graceful term request is approximated with
// os.Interrupt (best-effort; most Windows console apps ignore it) before
// the forced kill escalation.
func sendSignal(pid int, kind signalKind) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if kind == termSignal {
		return proc.Signal(os.Interrupt)
	}
	return proc.Kill()
}

// processAlive reports whether os.FindProcess can still open pid.
// Windows has no null-signal idiom, so this is the only liveness check
// made; no other exit detection is attempted.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func isNoSuchProcess(err error) bool {
	return os.IsNotExist(err)
}

func isForbidden(err error) bool {
	return os.IsPermission(err)
}
