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

//go:build linux

package probe

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// clockTicks is the number of jiffies per second. sysconf(_SC_CLK_TCK)
// would be authoritative, but reading it requires cgo; 100 is the
// near-universal Linux default and CLK_TCK lets tests override it.
func clockTicks() float64 {
	if v, err := strconv.Atoi(os.Getenv("CLK_TCK")); err == nil && v > 0 {
		return float64(v)
	}
	return 100
}

func pageSizeBytes() int64 {
	if v, err := strconv.Atoi(os.Getenv("PAGE_SIZE")); err == nil && v > 0 {
		return int64(v)
	}
	return int64(os.Getpagesize())
}

var stateNames = map[byte]string{
	'R': "running",
	'S': "sleeping",
	'D': "disk-sleep",
	'Z': "zombie",
	'T': "stopped",
	't': "tracing-stop",
	'X': "dead",
	'x': "dead",
	'I': "idle",
}

type sample struct {
	jiffies uint64
	at      time.Time
}

// LinuxProber reads /proc directly, the same idiom the retrieved pack
// uses for process accounting (ja7ad-consumption/pkg/system/proc).
type LinuxProber struct {
	mu   sync.Mutex
	last map[int]sample
}

// NewLinuxProber builds a Prober backed by /proc.
func NewLinuxProber() *LinuxProber {
	return &LinuxProber{last: make(map[int]sample)}
}

// Snapshot implements Prober.
func (p *LinuxProber) Snapshot(pid int) Snapshot {
	if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); err != nil {
		p.forget(pid)
		return NotFound(pid)
	}

	comm, state, utime, stime, startTicks, err := readStat(pid)
	if err != nil {
		return p.denyOrMissing(pid, err)
	}
	cmdline, err := readCmdline(pid)
	if err != nil {
		return p.denyOrMissing(pid, err)
	}
	rssMB, err := readRSSMB(pid)
	if err != nil {
		return p.denyOrMissing(pid, err)
	}
	totalMB, err := totalMemoryMB()
	if err != nil {
		totalMB = 0
	}

	now := time.Now()
	jiffies := utime + stime
	cpuPercent := p.deltaCPUPercent(pid, jiffies, now)

	boot := bootTime()
	createTime := boot.Add(time.Duration(float64(startTicks)/clockTicks()) * time.Second)

	status := string(state[:])
	if name, ok := stateNames[state[0]]; ok {
		status = name
	}

	memPercent := 0.0
	if totalMB > 0 {
		memPercent = rssMB / totalMB * 100
	}

	return Snapshot{
		PID:           pid,
		Name:          comm,
		Status:        status,
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		RSSMB:         rssMB,
		Cmdline:       cmdline,
		CreateTime:    createTime,
		Found:         true,
	}
}

func (p *LinuxProber) deltaCPUPercent(pid int, jiffies uint64, now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, ok := p.last[pid]
	p.last[pid] = sample{jiffies: jiffies, at: now}
	if !ok || jiffies < prev.jiffies {
		return 0
	}
	elapsed := now.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	deltaSeconds := float64(jiffies-prev.jiffies) / clockTicks()
	return deltaSeconds / elapsed * 100
}

func (p *LinuxProber) forget(pid int) {
	p.mu.Lock()
	delete(p.last, pid)
	p.mu.Unlock()
}

func (p *LinuxProber) denyOrMissing(pid int, err error) Snapshot {
	if os.IsPermission(err) {
		return Denied(pid)
	}
	if os.IsNotExist(err) {
		p.forget(pid)
		return NotFound(pid)
	}
	return Denied(pid)
}

// readStat parses /proc/<pid>/stat. comm (2nd field) is parenthesized
// and may contain spaces, so everything up to the last ") " is skipped.
func readStat(pid int) (comm string, state [1]byte, utime, stime, startTicks uint64, err error) {
	f, e := os.Open(fmt.Sprintf("/proc/%d/stat", pid))
	if e != nil {
		return "", state, 0, 0, 0, e
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return "", state, 0, 0, 0, fmt.Errorf("empty stat for pid %d", pid)
	}
	line := sc.Text()

	open := strings.IndexByte(line, '(')
	close := strings.LastIndex(line, ") ")
	if open < 0 || close < 0 || close < open {
		return "", state, 0, 0, 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	comm = line[open+1 : close]
	fields := strings.Fields(line[close+2:])

	get := func(idx int) uint64 {
		if idx >= len(fields) {
			return 0
		}
		v, _ := strconv.ParseUint(fields[idx], 10, 64)
		return v
	}
	if len(fields) > 0 {
		state[0] = fields[0][0]
	}
	utime = get(11)
	stime = get(12)
	startTicks = get(19)
	return comm, state, utime, stime, startTicks, nil
}

func readCmdline(pid int) (string, error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.TrimRight(string(b), "\x00"), "\x00")
	return strings.Join(parts, " "), nil
}

// readRSSMB prefers smaps_rollup (aggregated, kernel 4.14+); falls back
// to statm's resident page count.
func readRSSMB(pid int) (float64, error) {
	if f, err := os.Open(fmt.Sprintf("/proc/%d/smaps_rollup", pid)); err == nil {
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "Rss:") {
				fs := strings.Fields(sc.Text())
				if len(fs) >= 2 {
					kb, _ := strconv.ParseUint(fs[1], 10, 64)
					return float64(kb) / 1024, nil
				}
			}
		}
	}
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0, err
	}
	fs := strings.Fields(string(b))
	if len(fs) < 2 {
		return 0, fmt.Errorf("short statm for pid %d", pid)
	}
	pages, _ := strconv.ParseUint(fs[1], 10, 64)
	bytes := pages * uint64(pageSizeBytes())
	return float64(bytes) / (1024 * 1024), nil
}

func totalMemoryMB() (float64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "MemTotal:") {
			fs := strings.Fields(sc.Text())
			if len(fs) >= 2 {
				kb, _ := strconv.ParseUint(fs[1], 10, 64)
				return float64(kb) / 1024, nil
			}
		}
	}
	return 0, fmt.Errorf("MemTotal not found in /proc/meminfo")
}

func bootTime() time.Time {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return time.Unix(0, 0)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "btime ") {
			v, _ := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "btime ")), 10, 64)
			return time.Unix(v, 0)
		}
	}
	return time.Unix(0, 0)
}
