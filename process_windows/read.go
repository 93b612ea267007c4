//go:build windows

package process_windows

import (
	"fmt"
	"strings"

	"btndump/process"
	"btndump/process/memory_map"
	"btndump/process_blob"

	"golang.org/x/sys/windows"
)

// ReadMemory reads exactly size bytes at addr
func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}

	var bytesRead uintptr
	if err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead); err != nil {
		return nil, process.NewUnreadableError(addr, size, fmt.Errorf("ReadProcessMemory failed: %w", err))
	}

	if bytesRead != uintptr(size) {
		return nil, process.NewUnreadableError(addr, size, fmt.Errorf("read incomplete: expected %d, got %d", size, bytesRead))
	}

	return buf, nil
}

// ReadPOINTER reads a pointer value from the specified address
func (p *WindowsProcess) ReadPOINTER(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	data, err := p.ReadMemory(addr, process.PointerSize)
	if err != nil {
		return 0, err
	}

	ptr, _ := process.DecodePOINTER(data)
	return ptr, nil
}

// ReadNTS reads a null-terminated string of at most maxLength bytes, clamped to readable memory
func (p *WindowsProcess) ReadNTS(addr process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
	p.mu.Lock()
	span := memory_map.ReadableSpan(uint64(addr), p.mm)
	p.mu.Unlock()

	size := maxLength
	if uint64(size) > span {
		size = process.ProcessMemorySize(span)
	}

	if size == 0 {
		if maxLength == 0 {
			return "", &process.MalformedStringError{Address: addr, MaxLength: maxLength}
		}
		return "", process.NewUnreadableError(addr, maxLength, process.ErrAddressNotMapped)
	}

	data, err := p.ReadMemory(addr, size)
	if err != nil {
		return "", err
	}

	return process.DecodeNTS(addr, data, maxLength)
}

// Save writes the memory map and every readable region to dirname
func (p *WindowsProcess) Save(dirname string) error {
	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to update memory map: %w", err)
	}

	mm, err := p.GetMemoryMap()
	if err != nil {
		return err
	}

	modules, err := p.GetModules()
	if err != nil {
		return err
	}

	name := "unknown"
	for _, m := range modules {
		if strings.HasSuffix(strings.ToLower(m.Name), ".exe") {
			name = m.Name
			break
		}
	}

	p.log.Infoln("Saving process to directory:", dirname)

	_, _, err = process_blob.SaveDump(dirname, process_blob.Metadata{PID: p.GetPID(), Name: name}, mm, p.ReadMemory, p.log)
	return err
}
