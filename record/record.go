// Package record holds the extracted {name, value} pairs and their canonical ordering.
package record

import (
	"fmt"
	"sort"

	"btndump/process"
)

// Record is one named entry, Value is relative to the module base
type Record struct {
	Name  string `json:"name" yaml:"name"`
	Value uint32 `json:"value" yaml:"value"`
}

// Absolute returns the address of the record inside a module loaded at base
func (r Record) Absolute(base process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	return base + process.ProcessMemoryAddress(r.Value)
}

func (r Record) String() string {
	return fmt.Sprintf("%s = 0x%X", r.Name, r.Value)
}

// Sort returns a copy of records ordered by name, compared byte by byte.
// Equal names keep their relative order.
func Sort(records []Record) []Record {
	result := make([]Record, len(records))
	copy(result, records)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}
