package linkedlist

import (
	"encoding/binary"
	"errors"
	"testing"

	"btndump/process"
	"btndump/process_blob"
	"btndump/record"
)

const (
	moduleBase = process.ProcessMemoryAddress(0x7f0000000000)
	headAddr   = moduleBase + 0x800
	stringBase = process.ProcessMemoryAddress(0x7f0000100000)
	nodeSize   = 0x90
)

var testLayout = Layout{NameOffset: 0x8, NextOffset: 0x88, ValueOffset: 0x30}

// fakeList lays out nodes inside a fake module and their names in a separate region
type fakeList struct {
	module  []byte
	strings []byte
}

func newFakeList() *fakeList {
	return &fakeList{module: make([]byte, 0x2000)}
}

func (f *fakeList) putPointer(addr process.ProcessMemoryAddress, value process.ProcessMemoryAddress) {
	binary.LittleEndian.PutUint64(f.module[addr-moduleBase:], uint64(value))
}

func (f *fakeList) name(s string) process.ProcessMemoryAddress {
	addr := stringBase + process.ProcessMemoryAddress(len(f.strings))
	f.strings = append(f.strings, append([]byte(s), 0)...)
	return addr
}

// node writes a node at moduleBase+offset and returns its address
func (f *fakeList) node(offset uint64, name string, next process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	addr := moduleBase + process.ProcessMemoryAddress(offset)
	f.putPointer(addr.Add(testLayout.NameOffset), f.name(name))
	f.putPointer(addr.Add(testLayout.NextOffset), next)
	return addr
}

func (f *fakeList) dump() *process_blob.ProcessDump {
	dump := process_blob.NewProcessDump()
	dump.AddRegion(moduleBase, f.module, "rw-p", "/lib/libclient.so")
	if len(f.strings) > 0 {
		dump.AddRegion(stringBase, f.strings, "r--p", "")
	}
	return dump
}

func TestWalkLinkOrderAndSort(t *testing.T) {
	f := newFakeList()
	a := f.node(0x100, "A", 0)
	b := f.node(0x200, "B", a)
	c := f.node(0x300, "C", b)
	f.putPointer(headAddr, c)

	records, err := New(f.dump(), moduleBase, testLayout).Walk(headAddr)
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 3 || records[0].Name != "C" || records[2].Name != "A" {
		t.Fatalf("expected link order C, B, A - got %v", records)
	}

	sorted := record.Sort(records)
	exp := []record.Record{
		{Name: "A", Value: 0x130},
		{Name: "B", Value: 0x230},
		{Name: "C", Value: 0x330},
	}

	for i := range exp {
		if sorted[i] != exp[i] {
			t.Fatalf("expected %v - got %v", exp, sorted)
		}
	}
}

func TestWalkNullHead(t *testing.T) {
	f := newFakeList()

	records, err := New(f.dump(), moduleBase, testLayout).Walk(headAddr)
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 0 {
		t.Fatalf("expected no records - got %v", records)
	}
}

func TestWalkCycle(t *testing.T) {
	f := newFakeList()
	a := moduleBase + 0x100
	b := f.node(0x200, "B", a)
	f.node(0x100, "A", b)
	f.putPointer(headAddr, a)

	records, err := New(f.dump(), moduleBase, testLayout).Walk(headAddr)
	if !errors.Is(err, ErrTraversalOverflow) {
		t.Fatalf("expected ErrTraversalOverflow - got %v", err)
	}

	if records != nil {
		t.Fatalf("expected no partial records - got %v", records)
	}
}

func TestWalkSelfLoop(t *testing.T) {
	f := newFakeList()
	a := f.node(0x100, "A", moduleBase+0x100)
	f.putPointer(headAddr, a)

	if _, err := New(f.dump(), moduleBase, testLayout).Walk(headAddr); !errors.Is(err, ErrTraversalOverflow) {
		t.Fatalf("expected ErrTraversalOverflow - got %v", err)
	}
}

func TestWalkMaxNodes(t *testing.T) {
	f := newFakeList()
	next := process.ProcessMemoryAddress(0)
	for i := uint64(0); i < 5; i++ {
		next = f.node(0x100+i*nodeSize, string(rune('a'+i)), next)
	}
	f.putPointer(headAddr, next)

	w := New(f.dump(), moduleBase, testLayout)

	w.MaxNodes = 5
	records, err := w.Walk(headAddr)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records - got %d", len(records))
	}

	w.MaxNodes = 4
	if _, err := w.Walk(headAddr); !errors.Is(err, ErrTraversalOverflow) {
		t.Fatalf("expected ErrTraversalOverflow - got %v", err)
	}
}

func TestWalkUnreadable(t *testing.T) {
	f := newFakeList()
	a := f.node(0x100, "A", 0x1234)
	f.putPointer(headAddr, a)

	records, err := New(f.dump(), moduleBase, testLayout).Walk(headAddr)
	if !errors.Is(err, process.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable - got %v", err)
	}

	var unreadable *process.UnreadableError
	if !errors.As(err, &unreadable) || unreadable.Address != 0x1234+process.ProcessMemoryAddress(testLayout.NameOffset) {
		t.Fatalf("expected unreadable name pointer of node 0x1234 - got %v", err)
	}

	if records != nil {
		t.Fatalf("expected no partial records - got %v", records)
	}

	if _, err := New(f.dump(), moduleBase, testLayout).Walk(0x10); !errors.Is(err, process.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable for the head - got %v", err)
	}
}

func TestWalkNullName(t *testing.T) {
	f := newFakeList()
	a := f.node(0x100, "A", 0)
	f.putPointer(a.Add(testLayout.NameOffset), 0)
	f.putPointer(headAddr, a)

	if _, err := New(f.dump(), moduleBase, testLayout).Walk(headAddr); !errors.Is(err, process.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable - got %v", err)
	}
}

func TestWalkMalformedName(t *testing.T) {
	f := newFakeList()
	a := f.node(0x100, "a-very-long-button-name", 0)
	f.putPointer(headAddr, a)

	w := New(f.dump(), moduleBase, testLayout)
	w.MaxNameLength = 8

	if _, err := w.Walk(headAddr); !errors.Is(err, process.ErrMalformedString) {
		t.Fatalf("expected ErrMalformedString - got %v", err)
	}
}

func TestValueIsRelative(t *testing.T) {
	layout := Layout{ValueOffset: 0x30}

	first := New(nil, 0x7f0000000000, layout).Value(0x7f0000001000)
	second := New(nil, 0x5500aa000000, layout).Value(0x5500aa001000)

	if first != second || first != 0x1030 {
		t.Fatalf("expected 0x1030 for both layouts - got 0x%x and 0x%x", first, second)
	}
}
