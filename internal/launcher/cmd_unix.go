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

//go:build !windows

package launcher

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// buildCommand wraps cmd in a shell invocation so that the user's
// quoting, pipes, and redirection behave as typed; splitting on
// whitespace would break any of that.
func buildCommand(cmd string) *exec.Cmd {
	c := exec.Command("sh", "-c", cmd)
	// Its own session, so a signal aimed at the daemon's process group
	// does not propagate to the child transitively.
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return c
}

// sendSignal delivers kind to the process group led by pid. Setsid at
// spawn time made pid its own process group id.
func sendSignal(pid int, kind signalKind) error {
	sig := syscall.SIGKILL
	if kind == termSignal {
		sig = syscall.SIGTERM
	}
	return syscall.Kill(-pid, sig)
}

// processAlive probes pid with the null signal, the standard Unix
// liveness check that does not actually disturb the process.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH) || os.IsNotExist(err)
}

func isForbidden(err error) bool {
	return errors.Is(err, syscall.EPERM) || os.IsPermission(err)
}
