//go:build linux

package process_linux

import (
	"fmt"
	"unsafe"

	"btndump/process"
	"btndump/process/memory_map"

	"golang.org/x/sys/unix"
)

// process_vm_readv uses the process_vm_readv syscall to read memory from another process
func process_vm_readv(
	pid process.ProcessID,
	remoteAddr process.ProcessMemoryAddress,
	bytesToRead process.ProcessMemorySize,
) ([]byte, error) {
	localBuf := make([]byte, bytesToRead)
	if bytesToRead == 0 {
		return localBuf, nil
	}

	localIov := unix.Iovec{
		Base: &localBuf[0],
		Len:  uint64(bytesToRead),
	}

	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  int(bytesToRead),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),                        // Remote process PID
		uintptr(unsafe.Pointer(&localIov)),  // Local iovec
		uintptr(1),                          // Number of local iovecs
		uintptr(unsafe.Pointer(&remoteIov)), // Remote iovec
		uintptr(1),                          // Number of remote iovecs
		uintptr(0),                          // Flags (reserved for future use)
	)

	if errno != 0 {
		return nil, fmt.Errorf("process_vm_readv failed: %w", errno)
	}

	if int(n) != int(bytesToRead) {
		return nil, fmt.Errorf("partial read: %d of %d bytes", n, bytesToRead)
	}

	return localBuf, nil
}

// ReadMemory reads exactly size bytes at addr
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	pid := p.pid
	valid := pid != 0 && p.isValidAddressInternal(addr)
	// Release the lock before the system call
	p.mu.Unlock()

	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	if !valid {
		return nil, process.NewUnreadableError(addr, size, process.ErrAddressNotMapped)
	}

	data, err := process_vm_readv(pid, addr, size)
	if err != nil {
		return nil, process.NewUnreadableError(addr, size, err)
	}

	return data, nil
}

// ReadPOINTER reads a pointer value from the specified address
func (p *LinuxProcess) ReadPOINTER(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	data, err := p.ReadMemory(addr, process.PointerSize)
	if err != nil {
		return 0, err
	}

	ptr, _ := process.DecodePOINTER(data)
	return ptr, nil
}

// ReadNTS reads a null-terminated string of at most maxLength bytes.
// The read is clamped to the readable memory following addr so a short string
// at the end of a mapping does not fail the whole read.
func (p *LinuxProcess) ReadNTS(addr process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
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
