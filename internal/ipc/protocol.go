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

// Package ipc is the IPC Server (F): it decodes one newline-delimited
// JSON request per connection, dispatches it to the Lifecycle Engine,
// and encodes a symmetric response.
package ipc

import "pynodex.io/supervisord/internal/record"

// Verbs recognized in a Request's Type field.
const (
	VerbStart   = "start"
	VerbStop    = "stop"
	VerbList    = "list"
	VerbRestart = "restart"
	VerbReload  = "reload"
	VerbSave    = "save"
	VerbClear   = "clear"
)

// Request is the wire shape of a single client call, as tabulated in
// spec §4.6.
type Request struct {
	Type string      `json:"type"`
	Args RequestArgs `json:"args"`
}

// RequestArgs is the union of every verb's argument shape. Only the
// fields the verb cares about are read; the rest are ignored, giving
// forward compatibility with unknown keys (spec §6).
type RequestArgs struct {
	Name     string            `json:"name,omitempty"`
	Target   string            `json:"target,omitempty"`
	Command  string            `json:"command,omitempty"`
	Cwd      string            `json:"cwd,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Port     int               `json:"port,omitempty"`
	Log      string            `json:"log,omitempty"`
	NoDaemon bool              `json:"no_daemon,omitempty"`
	record.Policy
}

// Response is the wire shape returned for every verb.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func success(message string, data interface{}) Response {
	return Response{Status: StatusSuccess, Message: message, Data: data}
}

func failure(message string) Response {
	return Response{Status: StatusError, Message: message}
}
