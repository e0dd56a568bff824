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

// Package loop is the Supervisor Loop (G): the single-threaded
// cooperative reconciliation tick that alternates between servicing
// one client connection and running a policy sweep.
package loop

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"time"

	"pynodex.io/supervisord/internal/ipc"
	"pynodex.io/supervisord/internal/supervisor"
)

// acceptTimeout bounds how long the loop waits for a client connection
// before falling through to a monitor sweep (spec §4.7).
const acceptTimeout = 1 * time.Second

// Loop owns the control socket and alternates accept-with-timeout with
// policy sweeps until its context is cancelled.
type Loop struct {
	SocketPath string
	Engine     *supervisor.Engine
	Server     *ipc.Server
	Log        *log.Logger
}

// New builds a Loop bound to engine, serving on socketPath.
func New(socketPath string, engine *supervisor.Engine, logger *log.Logger) *Loop {
	return &Loop{
		SocketPath: socketPath,
		Engine:     engine,
		Server:     ipc.New(engine, logger),
		Log:        logger,
	}
}

// Run listens on the control socket and services connections until ctx
// is cancelled, at which point the socket is closed and its file
// removed (spec §4.7). Every unhandled panic inside one iteration is
// recovered, logged, and the loop continues.
func (l *Loop) Run(ctx context.Context) error {
	os.Remove(l.SocketPath)
	ln, err := net.Listen("unix", l.SocketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(l.SocketPath, 0o600); err != nil {
		ln.Close()
		return err
	}
	defer func() {
		ln.Close()
		os.Remove(l.SocketPath)
	}()

	unixLn, ok := ln.(*net.UnixListener)
	if !ok {
		return errors.New("loop: control socket listener is not a UnixListener")
	}

	l.Log.Println("supervisor loop starting")
	for {
		select {
		case <-ctx.Done():
			l.Log.Println("supervisor loop stopping")
			return nil
		default:
		}

		unixLn.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := unixLn.Accept()
		if err != nil {
			if isTimeout(err) {
				l.runSweepSafely()
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			l.Log.Printf("accept: %v", err)
			continue
		}

		l.serveSafely(conn)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (l *Loop) serveSafely(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			l.Log.Printf("recovered from panic while servicing a connection: %v", r)
		}
	}()
	l.Server.Serve(conn)
}

func (l *Loop) runSweepSafely() {
	defer func() {
		if r := recover(); r != nil {
			l.Log.Printf("recovered from panic during monitor sweep: %v", r)
		}
	}()
	l.Engine.Sweep()
}
