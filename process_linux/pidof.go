//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"btndump/process"
)

// ProcessEntry is one /proc entry matched by name
type ProcessEntry struct {
	PID  process.ProcessID
	Name string // best-effort: comm or exe basename
}

// ListByName returns all processes whose comm or exe basename equals name.
// name match is case-sensitive (like pidof).
func ListByName(name string) ([]ProcessEntry, error) {
	return listByName("/proc", name)
}

func listByName(procRoot string, name string) ([]ProcessEntry, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", procRoot, err)
	}

	selfPID := os.Getpid()
	var out []ProcessEntry

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue // not a PID dir
		}
		if pid == selfPID {
			continue // skip ourselves
		}

		comm, _ := os.ReadFile(filepath.Join(procRoot, e.Name(), "comm"))
		comm = bytesTrimNL(comm)
		if string(comm) == name {
			out = append(out, ProcessEntry{PID: process.ProcessID(pid), Name: string(comm)})
			continue
		}

		// comm is truncated to 15 bytes, fall back to the exe symlink
		exe, _ := os.Readlink(filepath.Join(procRoot, e.Name(), "exe"))
		if exe != "" && filepath.Base(exe) == name {
			out = append(out, ProcessEntry{PID: process.ProcessID(pid), Name: filepath.Base(exe)})
			continue
		}
	}

	return out, nil
}

// OneByName returns the first match for name (lowest PID), or os.ErrNotExist if none.
func OneByName(name string) (ProcessEntry, error) {
	return oneByName("/proc", name)
}

func oneByName(procRoot string, name string) (ProcessEntry, error) {
	ps, err := listByName(procRoot, name)
	if err != nil {
		return ProcessEntry{}, err
	}
	if len(ps) == 0 {
		return ProcessEntry{}, fmt.Errorf("no process named %q: %w", name, os.ErrNotExist)
	}
	// pick the lowest PID for determinism
	minIdx := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].PID < ps[minIdx].PID {
			minIdx = i
		}
	}
	return ps[minIdx], nil
}

func bytesTrimNL(b []byte) []byte {
	// Trim trailing '\n' if present (comm has a newline).
	for len(b) > 0 {
		switch b[len(b)-1] {
		case '\n', '\r', ' ', '\t':
			b = b[:len(b)-1]
		default:
			return b
		}
	}
	return b
}
