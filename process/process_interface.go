package process

import (
	"btndump/process/memory_map"
)

// MemoryReader is the narrow accessor the extraction core consumes.
// Every method is synchronous and either returns the full value or an error;
// nothing is silently truncated.
type MemoryReader interface {
	// ReadMemory reads exactly size bytes at addr
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// ReadPOINTER reads a pointer value from the specified address
	ReadPOINTER(addr ProcessMemoryAddress) (ProcessMemoryAddress, error)

	// ReadNTS reads a null-terminated string of at most maxLength bytes including the terminator.
	// A read that finds no terminator fails with ErrMalformedString.
	ReadNTS(addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error)
}

// ModuleReader locates loaded modules and snapshots their bytes
type ModuleReader interface {
	// GetModule returns the module whose basename or path equals name
	GetModule(name string) (Module, error)

	// ReadModule returns a Module.Size byte snapshot of the module, unreadable pages are zero
	ReadModule(m Module) ([]byte, error)
}

// Target is everything a live extraction needs from a process
type Target interface {
	MemoryReader
	ModuleReader
}

// Process is the interface that defines operations for interacting with a system process
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// GetModules returns every file-backed module currently loaded
	GetModules() ([]Module, error)

	Target
}
