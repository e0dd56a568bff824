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

package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"
	"net"

	"pynodex.io/supervisord/internal/perr"
	"pynodex.io/supervisord/internal/record"
	"pynodex.io/supervisord/internal/supervisor"
)

// Server dispatches one decoded Request at a time to an Engine. It
// holds no state of its own; the Engine is the single source of truth.
type Server struct {
	Engine *supervisor.Engine
	Log    *log.Logger
}

// New builds a Server bound to engine.
func New(engine *supervisor.Engine, logger *log.Logger) *Server {
	return &Server{Engine: engine, Log: logger}
}

// Serve handles exactly one connection to completion: it decodes a
// single newline-terminated JSON document, dispatches it, writes back
// a symmetric response, and closes the connection. A malformed
// document produces an error response and the connection is still
// closed afterwards (spec §4.6).
func (s *Server) Serve(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		s.writeResponse(conn, failure("empty or unreadable request"))
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeResponse(conn, failure("malformed request: "+err.Error()))
		return
	}

	resp := s.dispatch(req)
	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	enc := json.NewEncoder(conn)
	if err := enc.Encode(resp); err != nil {
		s.Log.Printf("ipc: failed to write response: %v", err)
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Type {
	case VerbStart:
		return s.handleStart(req.Args)
	case VerbStop:
		return s.handleStop(req.Args)
	case VerbList:
		return s.handleList()
	case VerbRestart:
		return s.handleRestart(req.Args)
	case VerbReload:
		return s.handleReload(req.Args)
	case VerbSave:
		return s.handleSave()
	case VerbClear:
		return s.handleClear(req.Args)
	default:
		return failure("unrecognized verb: " + req.Type)
	}
}

func (s *Server) handleStart(args RequestArgs) Response {
	opts := record.StartOptions{
		Name:    args.Name,
		Command: args.Command,
		Cwd:     args.Cwd,
		Env:     args.Env,
		Port:    args.Port,
		Policy:  args.Policy,
	}
	switch {
	case args.NoDaemon:
		opts.LogMode = record.LogNoCapture
	case args.Log != "":
		opts.LogMode = record.LogCustomPath
		opts.Log = args.Log
	default:
		opts.LogMode = record.LogDefault
	}

	rec, err := s.Engine.Start(opts, false)
	if err != nil {
		return failure(describe(err))
	}
	return success("started "+rec.Name, rec)
}

func (s *Server) handleStop(args RequestArgs) Response {
	if err := s.Engine.Stop(args.Name); err != nil {
		return failure(describe(err))
	}
	return success("stopped "+args.Name, nil)
}

func (s *Server) handleList() Response {
	return success("", s.Engine.List())
}

func (s *Server) handleRestart(args RequestArgs) Response {
	target := targetOrAll(args)
	n, err := s.Engine.Restart(target)
	if err != nil {
		return failure(describe(err))
	}
	return success("restarted", n)
}

func (s *Server) handleReload(args RequestArgs) Response {
	target := targetOrAll(args)
	n, err := s.Engine.Reload(target)
	if err != nil {
		return failure(describe(err))
	}
	return success("reloaded", n)
}

func (s *Server) handleSave() Response {
	if err := s.Engine.Save(); err != nil {
		return failure(describe(err))
	}
	return success("saved", nil)
}

func (s *Server) handleClear(args RequestArgs) Response {
	target := targetOrAll(args)
	if err := s.Engine.Clear(target); err != nil {
		return failure(describe(err))
	}
	return success("cleared", nil)
}

func targetOrAll(args RequestArgs) string {
	if args.Target != "" {
		return args.Target
	}
	if args.Name != "" {
		return args.Name
	}
	return supervisor.AllTarget
}

// describe renders err for a client-facing message, naming the error
// kind when one is attached.
func describe(err error) string {
	var pe *perr.Error
	if errors.As(err, &pe) {
		return pe.Kind.String() + ": " + pe.Error()
	}
	return err.Error()
}
