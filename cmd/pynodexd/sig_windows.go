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

package main

import "os"

// terminationSignals lists the signals that cause the daemon's own
// foreground loop to shut down cleanly. Windows only delivers
// os.Interrupt to console applications.
func terminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// sendTerm delivers the graceful shutdown signal to pid.
func sendTerm(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(os.Interrupt)
}

// processAlive reports whether pid still resolves to a process handle,
// that is, whether os.FindProcess can open it. No other liveness probe
// is made on Windows.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
