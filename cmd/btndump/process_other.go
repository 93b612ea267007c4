//go:build !linux && !windows

package main

import (
	"errors"
	"runtime"

	"btndump/process"
)

var errUnsupported = errors.New("live processes are not supported on " + runtime.GOOS + ", use --from")

type liveProcess interface {
	process.Process
	Save(dirname string) error
}

func openProcess(pid process.ProcessID) (liveProcess, error) {
	return nil, errUnsupported
}

func findProcess(name string) (process.ProcessID, error) {
	return 0, errUnsupported
}
