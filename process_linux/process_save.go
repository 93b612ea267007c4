//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"btndump/process_blob"
)

// Save writes the memory map and every readable region to dirname in the
// format process_blob.ProcessDump loads.
func (p *LinuxProcess) Save(dirname string) error {
	pid := p.GetPID()
	if pid == 0 {
		return fmt.Errorf("process not opened")
	}

	p.log.Infoln("Saving process to directory:", dirname)

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to update memory map: %w", err)
	}

	mm, err := p.GetMemoryMap()
	if err != nil {
		return err
	}

	name := "unknown"
	if comm, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(int(pid)), "comm")); err == nil {
		name = strings.TrimSpace(string(comm))
	}

	_, _, err = process_blob.SaveDump(dirname, process_blob.Metadata{PID: pid, Name: name}, mm, p.ReadMemory, p.log)
	return err
}
