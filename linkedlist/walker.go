// Package linkedlist walks a singly linked list of named nodes living in another process.
package linkedlist

import (
	"errors"
	"fmt"

	"btndump/process"
	"btndump/record"
)

const (
	DefaultMaxNodes      = 10000
	DefaultMaxNameLength = 256
)

// ErrTraversalOverflow is returned when a list revisits a node or grows past the node cap
var ErrTraversalOverflow = errors.New("traversal overflow")

// Layout holds the byte offsets of the fields the walker needs inside a node
type Layout struct {
	NameOffset  process.ProcessMemorySize `yaml:"name_offset"`  // pointer to the node name
	NextOffset  process.ProcessMemorySize `yaml:"next_offset"`  // pointer to the next node
	ValueOffset process.ProcessMemorySize `yaml:"value_offset"` // field whose module-relative address is reported
}

// Walker reads list nodes through a process.MemoryReader
type Walker struct {
	Reader        process.MemoryReader
	ModuleBase    process.ProcessMemoryAddress
	Layout        Layout
	MaxNodes      int
	MaxNameLength process.ProcessMemorySize
}

// New returns a Walker with the default limits
func New(reader process.MemoryReader, moduleBase process.ProcessMemoryAddress, layout Layout) *Walker {
	return &Walker{
		Reader:        reader,
		ModuleBase:    moduleBase,
		Layout:        layout,
		MaxNodes:      DefaultMaxNodes,
		MaxNameLength: DefaultMaxNameLength,
	}
}

// Value is the address of the layout's value field relative to the module base,
// truncated to 32 bits
func (w *Walker) Value(node process.ProcessMemoryAddress) uint32 {
	return uint32(uint64(node) - uint64(w.ModuleBase) + uint64(w.Layout.ValueOffset))
}

// Walk reads the list head pointer stored at head and collects one record per node
// in link order. A null head is an empty list. On any error no records are returned.
func (w *Walker) Walk(head process.ProcessMemoryAddress) ([]record.Record, error) {
	node, err := w.Reader.ReadPOINTER(head)
	if err != nil {
		return nil, fmt.Errorf("list head at %s: %w", head.ToString(), err)
	}

	maxNodes := w.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	var records []record.Record
	visited := make(map[process.ProcessMemoryAddress]struct{})

	for !node.IsNull() {
		if _, ok := visited[node]; ok {
			return nil, fmt.Errorf("%w: node %s revisited after %d nodes", ErrTraversalOverflow, node.ToString(), len(records))
		}

		if len(records) >= maxNodes {
			return nil, fmt.Errorf("%w: more than %d nodes", ErrTraversalOverflow, maxNodes)
		}
		visited[node] = struct{}{}

		r, next, err := w.readNode(node)
		if err != nil {
			return nil, fmt.Errorf("node %d at %s: %w", len(records), node.ToString(), err)
		}

		records = append(records, r)
		node = next
	}

	return records, nil
}

func (w *Walker) readNode(node process.ProcessMemoryAddress) (record.Record, process.ProcessMemoryAddress, error) {
	maxNameLength := w.MaxNameLength
	if maxNameLength == 0 {
		maxNameLength = DefaultMaxNameLength
	}

	nameField := node.Add(w.Layout.NameOffset)
	namePtr, err := w.Reader.ReadPOINTER(nameField)
	if err != nil {
		return record.Record{}, 0, fmt.Errorf("name pointer: %w", err)
	}

	if namePtr.IsNull() {
		return record.Record{}, 0, fmt.Errorf("name pointer: %w", process.NewUnreadableError(nameField, process.PointerSize, errors.New("null name")))
	}

	name, err := w.Reader.ReadNTS(namePtr, maxNameLength)
	if err != nil {
		return record.Record{}, 0, fmt.Errorf("name: %w", err)
	}

	next, err := w.Reader.ReadPOINTER(node.Add(w.Layout.NextOffset))
	if err != nil {
		return record.Record{}, 0, fmt.Errorf("next pointer: %w", err)
	}

	return record.Record{Name: name, Value: w.Value(node)}, next, nil
}
