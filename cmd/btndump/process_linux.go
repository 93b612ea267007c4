//go:build linux

package main

import (
	"btndump/process"
	"btndump/process_linux"
)

// liveProcess is a live target that can also be saved to a dump directory
type liveProcess interface {
	process.Process
	Save(dirname string) error
}

func openProcess(pid process.ProcessID) (liveProcess, error) {
	p, err := process_linux.NewWithPID(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func findProcess(name string) (process.ProcessID, error) {
	entry, err := process_linux.OneByName(name)
	if err != nil {
		return 0, err
	}
	return entry.PID, nil
}
