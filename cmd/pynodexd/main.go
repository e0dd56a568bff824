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

// Command pynodexd is the supervisor daemon's own bootstrap binary. It
// creates the application directory, writes its own PID file, and runs
// the foreground reconciliation loop. Detaching it into the background
// is left to an external process manager (launchd, systemd, or
// equivalent), same as spec.md scopes daemon bootstrap.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	cli "github.com/urfave/cli/v2"

	"pynodex.io/supervisord/internal/appdir"
	"pynodex.io/supervisord/internal/loop"
	"pynodex.io/supervisord/internal/supervisor"
)

func main() {
	app := &cli.App{
		Name:  "pynodexd",
		Usage: "background process supervisor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "app-dir",
				Usage: "overrides the default `<home>/.local/share/pynodex` application directory",
			},
			&cli.StringFlag{
				Name:  "socket-name",
				Value: "pynodex_daemon.sock",
				Usage: "file `name` of the control socket within the application directory",
			},
			&cli.StringFlag{
				Name:  "log-dir-name",
				Value: "process_logs",
				Usage: "directory `name` for default child log capture within the application directory",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			statusCommand(),
			stopCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func resolveDir(c *cli.Context) (appdir.Dir, error) {
	dir, err := func() (appdir.Dir, error) {
		if root := c.String("app-dir"); root != "" {
			return appdir.New(root), nil
		}
		return appdir.Default()
	}()
	if err != nil {
		return appdir.Dir{}, err
	}
	if name := c.String("socket-name"); name != "" {
		dir.SocketName = name
	}
	if name := c.String("log-dir-name"); name != "" {
		dir.LogDirName = name
	}
	return dir, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "creates the application directory and runs the supervisor loop in the foreground",
		Action: func(c *cli.Context) error {
			dir, err := resolveDir(c)
			if err != nil {
				return err
			}
			if err := dir.Ensure(); err != nil {
				return fmt.Errorf("cannot prepare application directory: %w", err)
			}

			logFile, err := os.OpenFile(dir.DaemonLogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("cannot open daemon log: %w", err)
			}
			defer logFile.Close()

			logger := log.New(logFile, "", log.LstdFlags)
			logger.SetPrefix("supervisor: ")

			if err := os.WriteFile(dir.PIDFile(), []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
				return fmt.Errorf("cannot write pid file: %w", err)
			}
			defer os.Remove(dir.PIDFile())

			engine := supervisor.New(dir, logger)
			l := loop.New(dir.SocketFile(), engine, logger)

			ctx, stop := signal.NotifyContext(context.Background(), terminationSignals()...)
			defer stop()

			return l.Run(ctx)
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "reports whether the daemon referenced by the pid file is alive",
		Action: func(c *cli.Context) error {
			dir, err := resolveDir(c)
			if err != nil {
				return err
			}
			pid, err := readPIDFile(dir)
			if err != nil {
				fmt.Println("not running (no pid file)")
				return nil
			}
			if processAlive(pid) {
				fmt.Printf("running (pid %d)\n", pid)
				return nil
			}
			fmt.Printf("not running (stale pid file for %d)\n", pid)
			return nil
		},
	}
}

func stopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "sends a termination signal to the daemon referenced by the pid file; does not wait for it to exit",
		Action: func(c *cli.Context) error {
			dir, err := resolveDir(c)
			if err != nil {
				return err
			}
			pid, err := readPIDFile(dir)
			if err != nil {
				return fmt.Errorf("no pid file found: %w", err)
			}
			if err := sendTerm(pid); err != nil {
				return fmt.Errorf("cannot signal pid %d: %w", pid, err)
			}
			fmt.Printf("sent termination signal to pid %d\n", pid)
			return nil
		},
	}
}

func readPIDFile(dir appdir.Dir) (int, error) {
	raw, err := os.ReadFile(dir.PIDFile())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}
