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

// Package registry implements the Registry Store (component A): loading
// and atomically saving the persistent process table. It never aborts
// on a missing or corrupt file — both recover to an empty table.
package registry

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"pynodex.io/supervisord/internal/record"
)

// Table is the full set of records, keyed by name.
type Table map[string]*record.ProcessRecord

// Store loads and saves the registry file at Path. It is safe to reuse
// across the lifetime of the daemon; it holds no in-memory state of its
// own between calls, matching §4.4's re-entrancy rule: the engine reads
// fresh at the start of every operation and writes back at the end.
type Store struct {
	Path   string
	Logger *log.Logger
}

// New builds a Store backed by path, logging warnings to logger.
func New(path string, logger *log.Logger) *Store {
	return &Store{Path: path, Logger: logger}
}

func (s *Store) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// Load returns the current table. A missing file or one that fails to
// parse yields an empty table; neither case is an error returned to the
// caller, matching §4.1 and §7 ("Storage at read time degrades to
// empty-registry with a log warning").
func (s *Store) Load() Table {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logf("registry: cannot read %s: %v", s.Path, err)
		}
		return Table{}
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		s.logf("registry: %s is corrupted, starting from an empty table: %v", s.Path, err)
		return Table{}
	}
	if t == nil {
		t = Table{}
	}
	return t
}

// Save atomically replaces the on-disk representation of the table: it
// writes to a temporary sibling file, flushes it, and renames it over
// the destination. Intermediate directories are created as needed.
func (s *Store) Save(t Table) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.Path)
}
