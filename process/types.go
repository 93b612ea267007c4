package process

import "strings"

// ProcessID represents a unique identifier for a process
type ProcessID int

// Module is a loaded binary image inside a process
type Module struct {
	Name string               // basename, e.g. libclient.so
	Path string               // full path as reported by the loader
	Base ProcessMemoryAddress // lowest mapped address of the image
	Size ProcessMemorySize    // span from Base to the end of the last mapping
}

// End returns the first address past the module
func (m Module) End() ProcessMemoryAddress {
	return m.Base + ProcessMemoryAddress(m.Size)
}

// Contains reports whether addr falls inside the module
func (m Module) Contains(addr ProcessMemoryAddress) bool {
	return addr >= m.Base && addr < m.End()
}

// MatchesName reports whether name refers to this module, either by basename or by full
// path. Comparison ignores case so Windows module names match however they were written.
func (m Module) MatchesName(name string) bool {
	if name == "" {
		return false
	}
	return strings.EqualFold(m.Name, name) || strings.EqualFold(m.Path, name) || strings.EqualFold(BaseName(m.Path), name)
}

// BaseName returns the last element of a Linux or Windows path, whichever OS reads it
func BaseName(path string) string {
	return path[strings.LastIndexAny(path, `/\`)+1:]
}
