package memory_map

import (
	"strings"
	"testing"
)

const sampleMaps = `55d0c0a00000-55d0c0a01000 r--p 00000000 08:01 100 /usr/bin/game
55d0c0a01000-55d0c0a03000 r-xp 00001000 08:01 100 /usr/bin/game
7f0000000000-7f0000010000 r--p 00000000 08:01 200 /opt/game/bin/libclient.so
7f0000010000-7f0000020000 ---p 00000000 00:00 0
7f0000020000-7f0000040000 r-xp 00020000 08:01 200 /opt/game/bin/libclient.so
7f0000040000-7f0000041000 rw-p 00000000 00:00 0 [heap]
7ffd00000000-7ffd00001000 rw-p 00000000 00:00 0 /tmp/dir with space/file.bin
garbage line
`

func TestParseMemoryMap(t *testing.T) {
	mm, err := ParseMemoryMap(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatal(err)
	}

	if len(mm) != 7 {
		t.Fatalf("expected 7 regions - got %d", len(mm))
	}

	if mm[2].Path != "/opt/game/bin/libclient.so" || mm[2].Size != 0x10000 {
		t.Fatalf("unexpected region: %s", mm[2])
	}

	if mm[4].Offset != 0x20000 {
		t.Fatalf("expected offset 0x20000 - got 0x%x", mm[4].Offset)
	}

	if mm[3].Path != "" || mm[3].IsReadable() {
		t.Fatalf("expected anonymous unreadable gap - got %s", mm[3])
	}

	if mm[6].Path != "/tmp/dir with space/file.bin" {
		t.Fatalf("expected path with spaces - got %q", mm[6].Path)
	}
}

func TestModules(t *testing.T) {
	mm, err := ParseMemoryMap(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatal(err)
	}

	modules := Modules(mm)
	if len(modules) != 3 {
		t.Fatalf("expected 3 modules - got %d: %v", len(modules), modules)
	}

	client := modules[1]
	if client.Path != "/opt/game/bin/libclient.so" {
		t.Fatalf("expected libclient.so second - got %s", client.Path)
	}

	if client.Address != 0x7f0000000000 || client.Size != 0x40000 {
		t.Fatalf("expected span 0x7f0000000000+0x40000 - got 0x%x+0x%x", client.Address, client.Size)
	}
}

func TestIsValidAddress2(t *testing.T) {
	mm, err := ParseMemoryMap(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatal(err)
	}
	SortByAddress(mm)

	if item := IsValidAddress2(0x7f0000020010, mm); item == nil || item.Perms != "r-xp" {
		t.Fatalf("expected r-xp region - got %v", item)
	}

	if item := IsValidAddress2(0x1000, mm); item != nil {
		t.Fatalf("expected no region - got %s", item)
	}
}

func TestReadableSpan(t *testing.T) {
	mm := []MemoryMapItem{
		{Address: 0x1000, Size: 0x1000, Perms: "r--p"},
		{Address: 0x2000, Size: 0x1000, Perms: "rw-p"},
		{Address: 0x3000, Size: 0x1000, Perms: "---p"},
		{Address: 0x5000, Size: 0x1000, Perms: "r--p"},
	}

	tests := []struct {
		addr uint64
		exp  uint64
	}{
		{0x1000, 0x2000},
		{0x1ff0, 0x1010},
		{0x2800, 0x800},
		{0x3000, 0},
		{0x4000, 0},
		{0x5ffe, 2},
	}

	for _, test := range tests {
		if got := ReadableSpan(test.addr, mm); got != test.exp {
			t.Fatalf("span at 0x%x: expected 0x%x - got 0x%x", test.addr, test.exp, got)
		}
	}
}

func TestIsReadablePerms(t *testing.T) {
	tests := map[string]bool{
		"r-xp": true,
		"rw-p": true,
		"---p": false,
		"":     false,
	}

	for perms, exp := range tests {
		if got := IsReadablePerms(perms); got != exp {
			t.Fatalf("%q: expected %v - got %v", perms, exp, got)
		}
	}
}
