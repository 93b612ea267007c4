//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"sync"

	"btndump/process"
	"btndump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// LinuxProcess implements the process.Process interface for Linux systems
type LinuxProcess struct {
	pid process.ProcessID
	log *logger.Logger
	mm  []memory_map.MemoryMapItem
	mu  sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// New creates a new LinuxProcess instance
func New() *LinuxProcess {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*LinuxProcess, error) {
	p := New()
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	// Check if process exists
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist", pid)
	}

	p.mu.Lock()
	p.pid = pid
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pid = 0
	p.mm = nil

	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.NewLinuxMemoryMap().ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	// IsValidAddress2 requires the memory map to be sorted by address
	memory_map.SortByAddress(mm)

	p.mm = mm
	return nil
}

func (p *LinuxProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.isValidAddressInternal(addr)
}

// Internal helper function that assumes the mutex is already locked
func (p *LinuxProcess) isValidAddressInternal(addr process.ProcessMemoryAddress) bool {
	if addr <= 0x10000 {
		return false
	}

	if item := memory_map.IsValidAddress2(uint64(addr), p.mm); item != nil {
		return item.IsReadable()
	}

	return false
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	// Make a copy of the memory map to prevent external modification
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)

	return result, nil
}

// GetModules returns every file-backed module in the current memory map
func (p *LinuxProcess) GetModules() ([]process.Module, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, err
	}
	return process.ModulesFromMap(mm), nil
}

// GetModule returns the module whose basename or path equals name.
// The memory map is refreshed once when the first lookup misses, the module may have been loaded since Open.
func (p *LinuxProcess) GetModule(name string) (process.Module, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return process.Module{}, err
	}

	m, err := process.FindModule(mm, name)
	if err == nil {
		return m, nil
	}

	if err := p.UpdateMemoryMap(); err != nil {
		return process.Module{}, err
	}

	if mm, err = p.GetMemoryMap(); err != nil {
		return process.Module{}, err
	}

	m, err = process.FindModule(mm, name)
	if err != nil {
		return process.Module{}, fmt.Errorf("%w: %s in process %d", err, name, p.GetPID())
	}

	p.log.Debugln("Found module", m.Path, "at", m.Base.ToString(), m.Size.ToString())
	return m, nil
}

// ReadModule reads every readable mapping of m into one buffer of m.Size bytes
func (p *LinuxProcess) ReadModule(m process.Module) ([]byte, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, err
	}

	buf, copied := process.SnapshotModule(m, mm, p.ReadMemory)
	if copied == 0 {
		return nil, process.NewUnreadableError(m.Base, m.Size, fmt.Errorf("no readable mapping of %s", m.Name))
	}

	p.log.Debugln("Snapshot of", m.Name, "read", copied, "of", uint(m.Size), "bytes")
	return buf, nil
}
