//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unsafe"

	"btndump/process"

	"golang.org/x/sys/windows"
)

// listModules enumerates the modules of pid with a toolhelp snapshot
func listModules(pid process.ProcessID) ([]process.Module, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var modules []process.Module

	entry := windows.ModuleEntry32{}
	entry.Size = uint32(unsafe.Sizeof(entry))

	for err = windows.Module32First(snapshot, &entry); err == nil; err = windows.Module32Next(snapshot, &entry) {
		modules = append(modules, process.Module{
			Name: windows.UTF16ToString(entry.Module[:]),
			Path: windows.UTF16ToString(entry.ExePath[:]),
			Base: process.ProcessMemoryAddress(entry.ModBaseAddr),
			Size: process.ProcessMemorySize(entry.ModBaseSize),
		})
	}

	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil, fmt.Errorf("Module32Next failed: %w", err)
	}

	return modules, nil
}

// ProcessEntry is one toolhelp process entry matched by name
type ProcessEntry struct {
	PID  process.ProcessID
	Name string
}

// ListByName returns all processes whose executable name equals name, ignoring case
func ListByName(name string) ([]ProcessEntry, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var out []ProcessEntry

	entry := windows.ProcessEntry32{}
	entry.Size = uint32(unsafe.Sizeof(entry))

	for err = windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		exe := windows.UTF16ToString(entry.ExeFile[:])
		if strings.EqualFold(exe, name) {
			out = append(out, ProcessEntry{PID: process.ProcessID(entry.ProcessID), Name: exe})
		}
	}

	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil, fmt.Errorf("Process32Next failed: %w", err)
	}

	return out, nil
}

// OneByName returns the match with the lowest PID, or os.ErrNotExist if none
func OneByName(name string) (ProcessEntry, error) {
	ps, err := ListByName(name)
	if err != nil {
		return ProcessEntry{}, err
	}
	if len(ps) == 0 {
		return ProcessEntry{}, fmt.Errorf("no process named %q: %w", name, os.ErrNotExist)
	}
	minIdx := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].PID < ps[minIdx].PID {
			minIdx = i
		}
	}
	return ps[minIdx], nil
}
