package process

import (
	"bytes"
	"encoding/binary"

	"btndump/process/memory_map"
)

// DecodePOINTER decodes a little-endian 64-bit pointer from the front of data
func DecodePOINTER(data []byte) (ProcessMemoryAddress, bool) {
	if len(data) < int(PointerSize) {
		return 0, false
	}
	return ProcessMemoryAddress(binary.LittleEndian.Uint64(data)), true
}

// DecodeNTS returns the bytes of data up to the first null.
// data is the result of a read of at most maxLength bytes at addr; when it holds no
// terminator the string is reported as malformed instead of being cut short.
func DecodeNTS(addr ProcessMemoryAddress, data []byte, maxLength ProcessMemorySize) (string, error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return string(data[:i]), nil
	}
	return "", &MalformedStringError{Address: addr, MaxLength: maxLength}
}

// ModuleFromRange converts a grouped memory map range into a Module
func ModuleFromRange(r memory_map.ModuleRange) Module {
	return Module{
		Name: BaseName(r.Path),
		Path: r.Path,
		Base: ProcessMemoryAddress(r.Address),
		Size: ProcessMemorySize(r.Size),
	}
}

// ModulesFromMap returns every file-backed module in a memory map
func ModulesFromMap(mm []memory_map.MemoryMapItem) []Module {
	ranges := memory_map.Modules(mm)
	result := make([]Module, 0, len(ranges))
	for _, r := range ranges {
		result = append(result, ModuleFromRange(r))
	}
	return result
}

// FindModule looks a module up by basename or full path in a memory map
func FindModule(mm []memory_map.MemoryMapItem, name string) (Module, error) {
	for _, m := range ModulesFromMap(mm) {
		if m.MatchesName(name) {
			return m, nil
		}
	}
	return Module{}, ErrModuleNotFound
}

// SnapshotModule copies every readable mapping of m into a zero-filled buffer of m.Size bytes.
// read is called once per readable mapping, failures leave that range zeroed.
func SnapshotModule(m Module, mm []memory_map.MemoryMapItem, read func(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)) ([]byte, int) {
	buf := make([]byte, m.Size)
	copied := 0
	for _, item := range mm {
		if item.Path != m.Path || !item.IsReadable() {
			continue
		}
		start := ProcessMemoryAddress(item.Address)
		if !m.Contains(start) {
			continue
		}
		data, err := read(start, ProcessMemorySize(item.Size))
		if err != nil {
			continue
		}
		copied += copy(buf[start-m.Base:], data)
	}
	return buf, copied
}
