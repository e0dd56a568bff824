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

// Package perr classifies the daemon's errors into the kinds the IPC
// layer needs to decide whether a request failed the caller, a single
// record, or the whole process.
package perr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories the daemon distinguishes when
// deciding how to react to a failure.
type Kind int

// Error kinds.
const (
	// Internal covers anything unclassified; treated as a bug to log.
	Internal Kind = iota
	// UserInput means the caller supplied a bad name, port, or target.
	UserInput
	// Collision means a name or port is already taken.
	Collision
	// OSDenied means the kernel refused an operation on a PID we own.
	OSDenied
	// OSMissing means a PID or executable vanished.
	OSMissing
	// Storage means the registry file could not be read or written.
	Storage
	// Protocol means a client sent a malformed request.
	Protocol
)

func (k Kind) String() string {
	switch k {
	case UserInput:
		return "user-input"
	case Collision:
		return "collision"
	case OSDenied:
		return "os-denied"
	case OSMissing:
		return "os-missing"
	case Storage:
		return "storage"
	case Protocol:
		return "protocol"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with a Kind and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
