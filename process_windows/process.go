//go:build windows

package process_windows

import (
	"fmt"
	"sync"
	"unsafe"

	"btndump/process"
	"btndump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

const (
	openAccess = windows.PROCESS_VM_READ | windows.PROCESS_QUERY_INFORMATION

	// highest user-mode address on x64
	maxUserAddress = 0x7FFFFFFFFFFF
)

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid     process.ProcessID
	handle  windows.Handle
	log     *logger.Logger
	mm      []memory_map.MemoryMapItem
	modules []process.Module
	mu      sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

// New creates a new WindowsProcess instance
func New() *WindowsProcess {
	return &WindowsProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*WindowsProcess, error) {
	p := New()
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *WindowsProcess) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle, err := windows.OpenProcess(openAccess, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess failed: %w", err)
	}

	p.pid = pid
	p.handle = handle
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	if err := p.updateMemoryMapInternal(); err != nil {
		p.log.Warn("Failed to initialize memory map: ", err)
	}

	p.log.Infoln("Process opened")
	return nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		if err := windows.CloseHandle(p.handle); err != nil {
			return fmt.Errorf("CloseHandle failed: %w", err)
		}
		p.handle = 0
	}

	p.pid = 0
	p.mm = nil
	p.modules = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMemoryMapInternal()
}

// updateMemoryMapInternal walks the address space with VirtualQueryEx and tags
// every region that falls inside a loaded module with the module path
func (p *WindowsProcess) updateMemoryMapInternal() error {
	if p.handle == 0 {
		return process.ErrProcessNotOpen
	}

	modules, err := listModules(p.pid)
	if err != nil {
		return err
	}

	var mm []memory_map.MemoryMapItem
	var mbi windows.MemoryBasicInformation
	for addr := uintptr(0); addr < maxUserAddress; {
		if err := windows.VirtualQueryEx(p.handle, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			break
		}

		if mbi.RegionSize == 0 {
			break
		}

		if mbi.State == windows.MEM_COMMIT {
			item := memory_map.MemoryMapItem{
				Address: uint64(mbi.BaseAddress),
				Size:    uint(mbi.RegionSize),
				Perms:   protectToPerms(mbi.Protect),
			}
			for _, m := range modules {
				if m.Contains(process.ProcessMemoryAddress(item.Address)) {
					item.Path = m.Path
					break
				}
			}
			mm = append(mm, item)
		}

		addr = mbi.BaseAddress + mbi.RegionSize
	}

	memory_map.SortByAddress(mm)

	p.mm = mm
	p.modules = modules
	return nil
}

// protectToPerms renders a PAGE_* protection in /proc/<pid>/maps notation
func protectToPerms(protect uint32) string {
	if protect&(windows.PAGE_NOACCESS|windows.PAGE_GUARD) != 0 {
		return "---p"
	}

	perms := []byte("---p")
	switch protect &^ 0xF00 {
	case windows.PAGE_READONLY:
		perms[0] = 'r'
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		perms[0], perms[1] = 'r', 'w'
	case windows.PAGE_EXECUTE:
		perms[2] = 'x'
	case windows.PAGE_EXECUTE_READ:
		perms[0], perms[2] = 'r', 'x'
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		perms[0], perms[1], perms[2] = 'r', 'w', 'x'
	}
	return string(perms)
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	item := memory_map.IsValidAddress2(uint64(addr), p.mm)
	return item != nil && item.IsReadable()
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

// GetModules returns the modules seen by the last memory map update
func (p *WindowsProcess) GetModules() ([]process.Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]process.Module, len(p.modules))
	copy(result, p.modules)
	return result, nil
}

// GetModule returns the module named name, compared case-insensitively.
// The module list is refreshed once on a miss.
func (p *WindowsProcess) GetModule(name string) (process.Module, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			if err := p.UpdateMemoryMap(); err != nil {
				return process.Module{}, err
			}
		}

		modules, err := p.GetModules()
		if err != nil {
			return process.Module{}, err
		}

		for _, m := range modules {
			if m.MatchesName(name) {
				p.log.Debugln("Found module", m.Path, "at", m.Base.ToString(), m.Size.ToString())
				return m, nil
			}
		}
	}

	return process.Module{}, fmt.Errorf("%w: %s in process %d", process.ErrModuleNotFound, name, p.GetPID())
}

// ReadModule reads every readable region of m into one buffer of m.Size bytes
func (p *WindowsProcess) ReadModule(m process.Module) ([]byte, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, err
	}

	buf, copied := process.SnapshotModule(m, mm, p.ReadMemory)
	if copied == 0 {
		return nil, process.NewUnreadableError(m.Base, m.Size, fmt.Errorf("no readable region of %s", m.Name))
	}

	p.log.Debugln("Snapshot of", m.Name, "read", copied, "of", uint(m.Size), "bytes")
	return buf, nil
}
