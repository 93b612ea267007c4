package memory_map

import (
	"fmt"
	"sort"
	"strings"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Offset  uint64 // Offset into the backing file
	Path    string // Backing file or pseudo name ("[heap]"), empty when anonymous
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return IsReadablePerms(mmItem.Perms)
}

// IsReadablePerms checks a maps-style permission string ("r-xp") for read access.
// The Windows backend renders page protections in the same form.
func IsReadablePerms(perms string) bool {
	return len(perms) > 0 && perms[0] == 'r'
}

// End returns the first address past the region
func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

// IsFileBacked reports whether the region maps a file rather than anonymous or pseudo memory
func (mmItem MemoryMapItem) IsFileBacked() bool {
	return mmItem.Path != "" && !strings.HasPrefix(mmItem.Path, "[")
}

// ModuleRange is the address span covered by all mappings of one file
type ModuleRange struct {
	Path    string
	Address uint64
	Size    uint
}

// Modules groups file-backed mappings by path, in order of first appearance.
// A module spans from its lowest mapping to the end of its highest one, gaps included.
func Modules(memoryMap []MemoryMapItem) []ModuleRange {
	var result []ModuleRange
	index := make(map[string]int)

	for _, item := range memoryMap {
		if !item.IsFileBacked() {
			continue
		}

		i, ok := index[item.Path]
		if !ok {
			index[item.Path] = len(result)
			result = append(result, ModuleRange{Path: item.Path, Address: item.Address, Size: item.Size})
			continue
		}

		r := &result[i]
		start, end := r.Address, r.Address+uint64(r.Size)
		if item.Address < start {
			start = item.Address
		}
		if item.End() > end {
			end = item.End()
		}
		r.Address = start
		r.Size = uint(end - start)
	}

	return result
}

// SortByAddress orders a memory map in place, IsValidAddress2 depends on it
func SortByAddress(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// IsValidAddress2 returns the region containing addr in a memory map sorted by address
func IsValidAddress2(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].Address+uint64(memoryMap[i].Size) > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// ReadableSpan returns how many bytes starting at addr can be read without leaving
// readable memory, following adjacent readable regions. The map must be sorted.
func ReadableSpan(addr uint64, memoryMap []MemoryMapItem) uint64 {
	item := IsValidAddress2(addr, memoryMap)
	if item == nil || !item.IsReadable() {
		return 0
	}

	end := item.End()
	for i := range memoryMap {
		next := memoryMap[i]
		if next.Address != end || !next.IsReadable() {
			continue
		}
		end = next.End()
	}

	return end - addr
}
