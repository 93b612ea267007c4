package process

import (
	"fmt"
)

// PointerSize is the size of a remote pointer, targets are 64-bit
const PointerSize ProcessMemorySize = 8

// ProcessMemoryAddress represents a memory address within a process.
// It is an opaque number and is only ever dereferenced through a MemoryReader.
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// IsNull reports whether the address is the null pointer
func (pma ProcessMemoryAddress) IsNull() bool {
	return pma == 0
}

// Add offsets the address by size bytes
func (pma ProcessMemoryAddress) Add(size ProcessMemorySize) ProcessMemoryAddress {
	return pma + ProcessMemoryAddress(size)
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}
