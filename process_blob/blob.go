package process_blob

import (
	"errors"

	"btndump/process"
)

var errOutOfBounds = errors.New("address out of bounds")

// ProcessBlob is a contiguous copy of process memory that still answers reads by remote address
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

var _ process.MemoryReader = (*ProcessBlob)(nil)

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

func (p *ProcessBlob) Base() process.ProcessMemoryAddress {
	return p.baseaddress
}

func (p *ProcessBlob) End() process.ProcessMemoryAddress {
	return p.baseaddress + process.ProcessMemoryAddress(len(p.data))
}

// Contains reports whether addr is backed by the blob
func (p *ProcessBlob) Contains(addr process.ProcessMemoryAddress) bool {
	return addr >= p.baseaddress && addr < p.End()
}

func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if !p.Contains(addr) || uint64(size) > uint64(p.End()-addr) {
		return nil, process.NewUnreadableError(addr, size, errOutOfBounds)
	}
	offset := addr - p.baseaddress
	result := make([]byte, size)
	copy(result, p.data[offset:uint64(offset)+uint64(size)])
	return result, nil
}

// ReadNTS reads a null-terminated string from the specified address with a maximum length.
// The read stops at the end of the blob, a string without terminator is malformed.
func (p *ProcessBlob) ReadNTS(addr process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
	if maxLength == 0 {
		return "", &process.MalformedStringError{Address: addr, MaxLength: maxLength}
	}

	if !p.Contains(addr) {
		return "", process.NewUnreadableError(addr, maxLength, errOutOfBounds)
	}

	size := maxLength
	if avail := process.ProcessMemorySize(p.End() - addr); avail < size {
		size = avail
	}

	data, err := p.ReadMemory(addr, size)
	if err != nil {
		return "", err
	}

	return process.DecodeNTS(addr, data, maxLength)
}

// ReadPOINTER reads a pointer value from the specified address
func (p *ProcessBlob) ReadPOINTER(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	data, err := p.ReadMemory(addr, process.PointerSize)
	if err != nil {
		return 0, err
	}

	ptr, _ := process.DecodePOINTER(data)
	return ptr, nil
}
